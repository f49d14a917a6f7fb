// Package render turns report row sets into export artifacts. The three
// formats share one Renderer contract and one type-aware value formatter.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jordanlanch/campuspark/pkg/reports"
)

// SystemName appears in artifact headers and metadata blocks.
const SystemName = "CampusPark Vehicle Access Portal"

// Options carries the presentation context for a render.
type Options struct {
	ReportType  reports.ReportType
	User        string // acting user, or "Anonymous" when anonymizing
	Filters     reports.Filters
	Mode        string // view | full
	SortBy      string
	SortDir     string
	Anonymized  bool
	Summary     map[string]any // precomputed aggregation map for view mode
	GeneratedAt time.Time
	Location    *time.Location // fixed export timezone
}

// Renderer produces an export artifact from a row set and column
// selection.
type Renderer interface {
	Render(rows []reports.Row, columns []string, opts Options) ([]byte, error)
}

// Error marks a renderer failure; the worker records it as the job's
// terminal error.
type Error struct {
	Format string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s render failed: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ForFormat returns the renderer for an export format.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "csv":
		return &CSVRenderer{}, nil
	case "xlsx":
		return &ExcelRenderer{}, nil
	case "pdf":
		return &PDFRenderer{}, nil
	default:
		return nil, fmt.Errorf("no renderer for format %q", format)
	}
}

// Extension returns the file extension for a format.
func Extension(format string) string {
	return "." + format
}

func (o Options) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.UTC
}

func (o Options) generatedAt() time.Time {
	at := o.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	return at.In(o.location())
}

// Filename derives the deterministic artifact name from report type,
// format, date range, user and the anonymization flag.
func Filename(opts Options, userID, format string) string {
	var b strings.Builder
	b.WriteString(string(opts.ReportType))
	b.WriteString("-report")
	if opts.Filters.DateFrom != nil && opts.Filters.DateTo != nil {
		b.WriteString("-" + opts.Filters.DateFrom.Format("20060102"))
		b.WriteString("_" + opts.Filters.DateTo.Format("20060102"))
	}
	b.WriteString("-u" + userID)
	if opts.Anonymized {
		b.WriteString("-anonymized")
	}
	b.WriteString("-" + opts.generatedAt().Format("20060102-150405"))
	b.WriteString(Extension(format))
	return b.String()
}

// formatValue renders a scalar for text output (CSV, PDF) according to the
// column's semantic type. Dates come out as ISO-8601; nil is empty.
func formatValue(v any, def reports.ColumnDef, loc *time.Location) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case time.Time:
		if def.Type == reports.TypeDate {
			return t.In(loc).Format("2006-01-02")
		}
		return t.In(loc).Format("2006-01-02T15:04:05Z07:00")
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', 2, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// filterSummary renders the applied filters as short "key=value" pairs for
// metadata blocks.
func filterSummary(f reports.Filters, loc *time.Location) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	if f.DateFrom != nil {
		add("from", f.DateFrom.In(loc).Format("2006-01-02"))
	}
	if f.DateTo != nil {
		add("to", f.DateTo.In(loc).Format("2006-01-02"))
	}
	add("status", f.Status)
	add("entry_type", f.EntryType)
	add("location", f.Location)
	add("violation_type", f.ViolationType)
	add("vehicle_type", f.VehicleType)
	add("department", f.Department)
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// sortSummary renders the sort spec for metadata blocks.
func sortSummary(opts Options) string {
	if opts.SortBy == "" {
		return "default"
	}
	dir := opts.SortDir
	if dir == "" {
		dir = "asc"
	}
	return opts.SortBy + " " + dir
}
