package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jordanlanch/campuspark/pkg/export/validate"
	"github.com/jordanlanch/campuspark/pkg/reports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accessOptions() Options {
	return Options{
		ReportType:  reports.ReportAccess,
		User:        "u-1001",
		Mode:        "full",
		GeneratedAt: time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC),
		Location:    time.UTC,
	}
}

func accessRows() []reports.Row {
	return []reports.Row{
		{
			"event_id":      int64(1),
			"plate_number":  "KA-01-AB-1234",
			"owner_name":    "Jane Doe",
			"vehicle_type":  "car",
			"entry_type":    "entry",
			"gate_location": "North Gate",
			"status":        "granted",
			"event_time":    time.Date(2026, 8, 14, 8, 5, 0, 0, time.UTC),
		},
		{
			"event_id":      int64(2),
			"plate_number":  "KA-05-XY-9999",
			"owner_name":    "John Roe",
			"vehicle_type":  "bike",
			"entry_type":    "exit",
			"gate_location": "South Gate",
			"status":        "granted",
			"event_time":    time.Date(2026, 8, 14, 17, 45, 0, 0, time.UTC),
		},
	}
}

func TestCSVRenderer_Render(t *testing.T) {
	buf, err := (&CSVRenderer{}).Render(accessRows(), reports.DefaultColumns(reports.ReportAccess), accessOptions())
	require.NoError(t, err)

	out := string(buf)
	assert.Contains(t, out, "# "+SystemName)
	assert.Contains(t, out, "# Report: access")
	assert.Contains(t, out, "# Generated By: u-1001")
	assert.Contains(t, out, "# Mode: full")
	assert.Contains(t, out, "# Sort: default")
	assert.Contains(t, out, "# Total Rows: 2")
	assert.Contains(t, out, "# Anonymized: false")

	// Header uses display labels, not field names
	assert.Contains(t, out, "Event ID,Plate Number,Owner,Vehicle Type,Entry/Exit,Gate,Status,Time")
	assert.Contains(t, out, "1,KA-01-AB-1234,Jane Doe,car,entry,North Gate,granted,2026-08-14T08:05:00Z")
	assert.Contains(t, out, "2,KA-05-XY-9999,John Roe,bike,exit,South Gate,granted,2026-08-14T17:45:00Z")
}

func TestCSVRenderer_PassesValidation(t *testing.T) {
	rows := accessRows()
	buf, err := (&CSVRenderer{}).Render(rows, reports.DefaultColumns(reports.ReportAccess), accessOptions())
	require.NoError(t, err)

	expected := len(rows)
	res := validate.Validate(buf, "csv", validate.Expected{Rows: &expected})
	assert.True(t, res.Valid, res.Error)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 2, res.Metadata["rows"])
	assert.Equal(t, 8, res.Metadata["columns"])
}

func TestCSVRenderer_EscapesSpecialCharacters(t *testing.T) {
	rows := []reports.Row{{
		"event_id":      int64(1),
		"gate_location": `North "Main", Gate`,
		"owner_name":    "Line\nBreak",
	}}
	buf, err := (&CSVRenderer{}).Render(rows, []string{"event_id", "gate_location", "owner_name"}, accessOptions())
	require.NoError(t, err)

	out := string(buf)
	assert.Contains(t, out, `"North ""Main"", Gate"`)
	assert.Contains(t, out, "\"Line\nBreak\"")
}

func TestCSVRenderer_EmptyRowSet(t *testing.T) {
	buf, err := (&CSVRenderer{}).Render(nil, reports.DefaultColumns(reports.ReportAccess), accessOptions())
	require.NoError(t, err)

	out := string(buf)
	assert.Contains(t, out, "# Total Rows: 0")
	assert.Contains(t, out, "# No data available for the selected criteria")
	// Header is still present
	assert.Contains(t, out, "Event ID,Plate Number")
}

func TestCSVRenderer_AnonymizedMetadata(t *testing.T) {
	opts := accessOptions()
	opts.User = "Anonymous"
	opts.Anonymized = true

	buf, err := (&CSVRenderer{}).Render(accessRows(), reports.DefaultColumns(reports.ReportAccess), opts)
	require.NoError(t, err)

	out := string(buf)
	assert.Contains(t, out, "# Generated By: Anonymous")
	assert.Contains(t, out, "# Anonymized: true")
}

func TestCSVRenderer_RenderToStreams(t *testing.T) {
	rows := make([]reports.Row, 250)
	for i := range rows {
		rows[i] = reports.Row{"event_id": int64(i), "status": "granted"}
	}

	var buf bytes.Buffer
	err := (&CSVRenderer{}).RenderTo(&buf, rows, []string{"event_id", "status"}, accessOptions())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	dataLines := 0
	for _, line := range lines {
		if !strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "Event ID") {
			dataLines++
		}
	}
	assert.Equal(t, 250, dataLines)
}

func TestFilename(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	opts := Options{
		ReportType:  reports.ReportViolations,
		Filters:     reports.Filters{DateFrom: &from, DateTo: &to},
		GeneratedAt: time.Date(2026, 9, 1, 12, 0, 5, 0, time.UTC),
		Location:    time.UTC,
	}

	name := Filename(opts, "u-1001", "csv")
	assert.Equal(t, "violations-report-20260801_20260831-uu-1001-20260901-120005.csv", name)

	opts.Anonymized = true
	name = Filename(opts, "u-1001", "pdf")
	assert.Equal(t, "violations-report-20260801_20260831-uu-1001-anonymized-20260901-120005.pdf", name)
}

func TestFormatValue(t *testing.T) {
	loc := time.UTC
	ts := time.Date(2026, 8, 14, 8, 5, 0, 0, time.UTC)

	assert.Equal(t, "", formatValue(nil, reports.ColumnDef{}, loc))
	assert.Equal(t, "2026-08-14", formatValue(ts, reports.ColumnDef{Type: reports.TypeDate}, loc))
	assert.Equal(t, "2026-08-14T08:05:00Z", formatValue(ts, reports.ColumnDef{Type: reports.TypeDatetime}, loc))
	assert.Equal(t, "true", formatValue(true, reports.ColumnDef{}, loc))
	assert.Equal(t, "150", formatValue(float64(150), reports.ColumnDef{}, loc))
	assert.Equal(t, "150.50", formatValue(150.5, reports.ColumnDef{}, loc))
	assert.Equal(t, "42", formatValue(int64(42), reports.ColumnDef{}, loc))
	assert.Equal(t, "plain", formatValue("plain", reports.ColumnDef{}, loc))
}
