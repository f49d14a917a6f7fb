package render

import (
	"fmt"
	"sort"
	"time"

	"github.com/jordanlanch/campuspark/pkg/reports"
	"github.com/xuri/excelize/v2"
)

// ExcelRenderer produces a three-sheet workbook: Summary (report metadata
// and statistics), Data (styled, type-formatted records) and Notes (column
// dictionary).
type ExcelRenderer struct{}

// Render builds the workbook in memory.
func (r *ExcelRenderer) Render(rows []reports.Row, columns []string, opts Options) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return nil, &Error{Format: "xlsx", Err: err}
	}
	if _, err := f.NewSheet("Data"); err != nil {
		return nil, &Error{Format: "xlsx", Err: err}
	}
	if _, err := f.NewSheet("Notes"); err != nil {
		return nil, &Error{Format: "xlsx", Err: err}
	}

	if err := r.buildSummary(f, len(rows), opts); err != nil {
		return nil, &Error{Format: "xlsx", Err: err}
	}
	if err := r.buildData(f, rows, columns, opts); err != nil {
		return nil, &Error{Format: "xlsx", Err: err}
	}
	if err := r.buildNotes(f, opts); err != nil {
		return nil, &Error{Format: "xlsx", Err: err}
	}

	idx, err := f.GetSheetIndex("Summary")
	if err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, &Error{Format: "xlsx", Err: err}
	}
	return buf.Bytes(), nil
}

func (r *ExcelRenderer) buildSummary(f *excelize.File, rowCount int, opts Options) error {
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	loc := opts.location()
	f.SetCellValue("Summary", "A1", SystemName)
	f.SetCellStyle("Summary", "A1", "A1", titleStyle)
	f.SetCellValue("Summary", "A2", fmt.Sprintf("%s report", opts.ReportType))

	meta := [][2]string{
		{"Generated By", opts.User},
		{"Generated At", opts.generatedAt().Format("2006-01-02 15:04:05 MST")},
		{"Mode", opts.Mode},
		{"Sort", sortSummary(opts)},
		{"Filters", filterSummary(opts.Filters, loc)},
		{"Anonymized", yesNo(opts.Anonymized)},
		{"Total Records", fmt.Sprintf("%d", rowCount)},
	}
	row := 4
	for _, kv := range meta {
		f.SetCellValue("Summary", fmt.Sprintf("A%d", row), kv[0])
		f.SetCellStyle("Summary", fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
		f.SetCellValue("Summary", fmt.Sprintf("B%d", row), kv[1])
		row++
	}

	if len(opts.Summary) > 0 {
		row++
		f.SetCellValue("Summary", fmt.Sprintf("A%d", row), "Summary Statistics")
		f.SetCellStyle("Summary", fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
		row++

		keys := make([]string, 0, len(opts.Summary))
		for k := range opts.Summary {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			f.SetCellValue("Summary", fmt.Sprintf("A%d", row), k)
			f.SetCellValue("Summary", fmt.Sprintf("B%d", row), opts.Summary[k])
			row++
		}
	}

	f.SetColWidth("Summary", "A", "A", 24)
	f.SetColWidth("Summary", "B", "B", 40)
	return nil
}

func (r *ExcelRenderer) buildData(f *excelize.File, rows []reports.Row, columns []string, opts Options) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	datetimeFmt := "yyyy-mm-dd hh:mm:ss"
	datetimeStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &datetimeFmt})
	if err != nil {
		return err
	}
	dateFmt := "yyyy-mm-dd"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return err
	}
	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	if err != nil {
		return err
	}

	labels := reports.Labels(opts.ReportType, columns)
	for i, label := range labels {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue("Data", cell, label)
		f.SetCellStyle("Data", cell, cell, headerStyle)
	}

	if len(rows) == 0 {
		f.SetCellValue("Data", "A2", "No data available for the selected criteria")
		return nil
	}

	table := reports.Columns(opts.ReportType)
	loc := opts.location()
	for i, row := range rows {
		for j, col := range columns {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			def := table[col]
			v := row[col]
			switch def.Type {
			case reports.TypeDatetime, reports.TypeDate:
				if t, ok := v.(time.Time); ok {
					f.SetCellValue("Data", cell, t.In(loc))
					if def.Type == reports.TypeDate {
						f.SetCellStyle("Data", cell, cell, dateStyle)
					} else {
						f.SetCellStyle("Data", cell, cell, datetimeStyle)
					}
				} else {
					f.SetCellValue("Data", cell, formatValue(v, def, loc))
				}
			case reports.TypeBoolean:
				if b, ok := v.(bool); ok {
					f.SetCellValue("Data", cell, yesNo(b))
				} else {
					f.SetCellValue("Data", cell, formatValue(v, def, loc))
				}
			case reports.TypeNumber:
				switch n := v.(type) {
				case int64, int, float64:
					f.SetCellValue("Data", cell, n)
					f.SetCellStyle("Data", cell, cell, numberStyle)
				default:
					f.SetCellValue("Data", cell, formatValue(v, def, loc))
				}
			default:
				f.SetCellValue("Data", cell, formatValue(v, def, loc))
			}
		}
	}

	// Freeze the header row and span it with an autofilter.
	if err := f.SetPanes("Data", &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	lastCol, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.AutoFilter("Data", "A1:"+lastCol, nil); err != nil {
		return err
	}

	endCol, _ := excelize.ColumnNumberToName(len(columns))
	f.SetColWidth("Data", "A", endCol, 18)
	return nil
}

func (r *ExcelRenderer) buildNotes(f *excelize.File, opts Options) error {
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	f.SetCellValue("Notes", "A1", "Export Notes")
	f.SetCellStyle("Notes", "A1", "A1", labelStyle)
	f.SetCellValue("Notes", "A2", fmt.Sprintf("Exported from %s on %s by %s",
		SystemName, opts.generatedAt().Format("2006-01-02 15:04:05 MST"), opts.User))

	f.SetCellValue("Notes", "A4", "Field")
	f.SetCellValue("Notes", "B4", "Description")
	f.SetCellStyle("Notes", "A4", "B4", labelStyle)

	table := reports.Columns(opts.ReportType)
	fields := make([]string, 0, len(table))
	for field := range table {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	row := 5
	for _, field := range fields {
		def := table[field]
		desc := fmt.Sprintf("%s (%s)", def.Label, def.Type)
		if def.PII {
			desc += ", PII"
		}
		if def.Derived {
			desc += ", derived"
		}
		f.SetCellValue("Notes", fmt.Sprintf("A%d", row), field)
		f.SetCellValue("Notes", fmt.Sprintf("B%d", row), desc)
		row++
	}

	if opts.Anonymized {
		row++
		f.SetCellValue("Notes", fmt.Sprintf("A%d", row),
			"Personally identifying fields in this export were anonymized; masked values are stable pseudonyms, not the original data.")
	}

	f.SetColWidth("Notes", "A", "A", 22)
	f.SetColWidth("Notes", "B", "B", 70)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
