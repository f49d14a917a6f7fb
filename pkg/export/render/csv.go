package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jordanlanch/campuspark/pkg/reports"
)

// csvBatchSize is the number of data rows flushed per chunk on the
// streamed path.
const csvBatchSize = 100

// CSVRenderer emits a commented metadata preamble, a header line of column
// labels, then one line per row. Strings containing commas, quotes or
// newlines are double-quoted with internal quotes doubled.
type CSVRenderer struct{}

// Render produces the whole artifact in memory. Large result sets should
// prefer RenderTo.
func (r *CSVRenderer) Render(rows []reports.Row, columns []string, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.RenderTo(&buf, rows, columns, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderTo streams the artifact: metadata chunk, header chunk, then data
// chunks of csvBatchSize rows.
func (r *CSVRenderer) RenderTo(w io.Writer, rows []reports.Row, columns []string, opts Options) error {
	if err := r.writeMetadata(w, len(rows), columns, opts); err != nil {
		return &Error{Format: "csv", Err: err}
	}

	labels := reports.Labels(opts.ReportType, columns)
	if _, err := io.WriteString(w, joinCSV(labels)+"\n"); err != nil {
		return &Error{Format: "csv", Err: err}
	}

	if len(rows) == 0 {
		_, err := io.WriteString(w, "# No data available for the selected criteria\n")
		if err != nil {
			return &Error{Format: "csv", Err: err}
		}
		return nil
	}

	table := reports.Columns(opts.ReportType)
	loc := opts.location()
	var batch strings.Builder
	for i, row := range rows {
		fields := make([]string, len(columns))
		for j, col := range columns {
			fields[j] = formatValue(row[col], table[col], loc)
		}
		batch.WriteString(joinCSV(fields))
		batch.WriteByte('\n')

		if (i+1)%csvBatchSize == 0 || i == len(rows)-1 {
			if _, err := io.WriteString(w, batch.String()); err != nil {
				return &Error{Format: "csv", Err: err}
			}
			batch.Reset()
		}
	}
	return nil
}

func (r *CSVRenderer) writeMetadata(w io.Writer, rowCount int, columns []string, opts Options) error {
	filtersJSON, err := json.Marshal(opts.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal filters: %w", err)
	}

	at := opts.generatedAt()
	lines := []string{
		"# " + SystemName,
		fmt.Sprintf("# Report: %s", opts.ReportType),
		fmt.Sprintf("# Generated By: %s", opts.User),
		fmt.Sprintf("# Generated: %s (%s)", at.Format("2006-01-02T15:04:05Z07:00"), at.Location()),
		fmt.Sprintf("# Filters: %s", filtersJSON),
		fmt.Sprintf("# Columns: %s", strings.Join(columns, ", ")),
		fmt.Sprintf("# Mode: %s", opts.Mode),
		fmt.Sprintf("# Sort: %s", sortSummary(opts)),
		fmt.Sprintf("# Total Rows: %d", rowCount),
		fmt.Sprintf("# Anonymized: %t", opts.Anonymized),
		"#",
	}
	_, err = io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

// escapeCSV quotes a field when it contains a comma, quote or newline,
// doubling internal quotes.
func escapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func joinCSV(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = escapeCSV(f)
	}
	return strings.Join(escaped, ",")
}
