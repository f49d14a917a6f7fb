package render

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jordanlanch/campuspark/pkg/reports"
	"github.com/jung-kurt/gofpdf"
)

// pdfMaxRows caps the data table; larger result sets get a truncation
// note pointing at the CSV/XLSX formats.
const pdfMaxRows = 20

// PDFRenderer produces a paginated document with a branded header band,
// metadata block, optional KPI cards and summary table, a capped data
// table and a page X of Y footer.
type PDFRenderer struct{}

// Render builds the document in memory.
func (r *PDFRenderer) Render(rows []reports.Row, columns []string, opts Options) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s - %s report", SystemName, opts.ReportType), false)
	pdf.AliasNbPages("")

	generated := opts.generatedAt().Format("2006-01-02 15:04:05 MST")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("Generated %s - Page %d of {nb}", generated, pdf.PageNo()),
			"", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pageW, _ := pdf.GetPageSize()
	usable := pageW - 20

	// Branded header band.
	pdf.SetFillColor(31, 78, 121)
	pdf.Rect(0, 0, pageW, 22, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 15)
	pdf.SetXY(10, 5)
	pdf.CellFormat(usable, 7, SystemName, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetX(10)
	pdf.CellFormat(usable, 6, fmt.Sprintf("%s report (%s mode)", opts.ReportType, opts.Mode),
		"", 1, "L", false, 0, "")
	pdf.SetY(27)

	r.metadataBlock(pdf, usable, opts)

	if opts.ReportType == reports.ReportOverview && len(opts.Summary) > 0 {
		r.kpiCards(pdf, usable, opts.Summary)
	} else if len(opts.Summary) > 0 {
		r.summaryTable(pdf, usable, opts.Summary)
	}

	r.dataTable(pdf, usable, rows, columns, opts)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &Error{Format: "pdf", Err: err}
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) metadataBlock(pdf *gofpdf.Fpdf, usable float64, opts Options) {
	loc := opts.location()
	pdf.SetTextColor(40, 40, 40)
	pdf.SetFont("Helvetica", "", 9)

	lines := []string{
		fmt.Sprintf("Generated: %s (%s)", opts.generatedAt().Format("2006-01-02 15:04:05"), loc),
		fmt.Sprintf("Generated by: %s", opts.User),
		fmt.Sprintf("Sort: %s | Anonymized: %s", sortSummary(opts), yesNo(opts.Anonymized)),
		fmt.Sprintf("Filters: %s", filterSummary(opts.Filters, loc)),
	}
	for _, line := range lines {
		pdf.CellFormat(usable, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

// kpiCards lays the overview metrics out as a grid of bordered cards.
func (r *PDFRenderer) kpiCards(pdf *gofpdf.Fpdf, usable float64, summary map[string]any) {
	keys := sortedKeys(summary)
	const perRow = 4
	cardW := (usable - float64(perRow-1)*4) / perRow
	cardH := 18.0

	x0 := 10.0
	y := pdf.GetY()
	for i, k := range keys {
		col := i % perRow
		if col == 0 && i > 0 {
			y += cardH + 4
		}
		x := x0 + float64(col)*(cardW+4)

		pdf.SetDrawColor(31, 78, 121)
		pdf.SetFillColor(240, 244, 250)
		pdf.Rect(x, y, cardW, cardH, "FD")
		pdf.SetXY(x, y+3)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(cardW, 4, k, "", 2, "C", false, 0, "")
		pdf.SetFont("Helvetica", "B", 13)
		pdf.SetTextColor(31, 78, 121)
		pdf.SetX(x)
		pdf.CellFormat(cardW, 8, fmt.Sprintf("%v", summary[k]), "", 0, "C", false, 0, "")
	}
	pdf.SetXY(10, y+cardH+6)
}

func (r *PDFRenderer) summaryTable(pdf *gofpdf.Fpdf, usable float64, summary map[string]any) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(40, 40, 40)
	pdf.CellFormat(usable, 6, "Summary Statistics", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, k := range sortedKeys(summary) {
		pdf.CellFormat(70, 5, k, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 5, fmt.Sprintf("%v", summary[k]), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func (r *PDFRenderer) dataTable(pdf *gofpdf.Fpdf, usable float64, rows []reports.Row, columns []string, opts Options) {
	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(usable, 8, "No data available for the selected criteria", "", 1, "L", false, 0, "")
		return
	}

	colW := usable / float64(len(columns))
	labels := reports.Labels(opts.ReportType, columns)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(31, 78, 121)
	pdf.SetTextColor(255, 255, 255)
	for _, label := range labels {
		pdf.CellFormat(colW, 6, label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	table := reports.Columns(opts.ReportType)
	loc := opts.location()
	shown := rows
	if len(shown) > pdfMaxRows {
		shown = shown[:pdfMaxRows]
	}

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(40, 40, 40)
	for i, row := range shown {
		fill := i%2 == 1
		pdf.SetFillColor(240, 244, 250)
		for _, col := range columns {
			v := formatValue(row[col], table[col], loc)
			if len(v) > 28 {
				v = v[:25] + "..."
			}
			pdf.CellFormat(colW, 5, v, "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(rows) > pdfMaxRows {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(usable, 5,
			fmt.Sprintf("Showing %d of %d records. Use the CSV or Excel format for the complete data set.",
				pdfMaxRows, len(rows)),
			"", 1, "L", false, 0, "")
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
