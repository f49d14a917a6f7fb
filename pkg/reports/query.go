package reports

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Filters is the closed set of filter shapes the portal's report screens
// can send. Absent filters stay out of the WHERE clause and bind list.
type Filters struct {
	DateFrom      *time.Time `json:"date_from,omitempty"`
	DateTo        *time.Time `json:"date_to,omitempty"`
	Status        string     `json:"status,omitempty"`
	EntryType     string     `json:"entry_type,omitempty"`
	Location      string     `json:"location,omitempty"`
	ViolationType string     `json:"violation_type,omitempty"`
	VehicleType   string     `json:"vehicle_type,omitempty"`
	Department    string     `json:"department,omitempty"`
}

// RowFetcher executes a parameterized read query against the data store
// and returns an ordered, homogeneous row set.
type RowFetcher interface {
	FetchRows(ctx context.Context, query string, args ...any) ([]Row, error)
}

// baseQueries holds the per-type joins across the portal schema. The
// select lists line up with the column tables in columns.go; derived
// columns are computed here.
var baseQueries = map[ReportType]string{
	ReportUsers: `SELECT u.id AS user_id, u.name, u.email, u.phone, u.designation,
		d.name AS department, u.status,
		(SELECT COUNT(*) FROM vehicles v WHERE v.owner_id = u.id) AS vehicle_count,
		(SELECT COUNT(*) FROM violations vi JOIN vehicles v2 ON vi.vehicle_id = v2.id WHERE v2.owner_id = u.id) AS violation_count,
		u.created_at
	FROM users u
	LEFT JOIN departments d ON u.department_id = d.id`,

	ReportVehicles: `SELECT v.id AS vehicle_id, v.plate_number, vt.name AS vehicle_type,
		u.name AS owner_name, u.email AS owner_email, d.name AS department, v.status,
		(SELECT COUNT(*) FROM access_events ae WHERE ae.vehicle_id = v.id) AS access_count,
		v.registered_at
	FROM vehicles v
	JOIN users u ON v.owner_id = u.id
	LEFT JOIN vehicle_types vt ON v.vehicle_type_id = vt.id
	LEFT JOIN departments d ON u.department_id = d.id`,

	ReportAccess: `SELECT ae.id AS event_id, v.plate_number, u.name AS owner_name,
		vt.name AS vehicle_type, ae.entry_type, g.name AS gate_location, ae.status,
		ae.event_time
	FROM access_events ae
	JOIN vehicles v ON ae.vehicle_id = v.id
	JOIN users u ON v.owner_id = u.id
	LEFT JOIN vehicle_types vt ON v.vehicle_type_id = vt.id
	LEFT JOIN gates g ON ae.gate_id = g.id`,

	ReportViolations: `SELECT vi.id AS violation_id, v.plate_number, u.name AS owner_name,
		u.email AS owner_email, vit.name AS violation_type, vi.location, vi.fine_amount,
		vi.status, (vi.resolved_at IS NOT NULL) AS resolved, vi.reported_at
	FROM violations vi
	JOIN vehicles v ON vi.vehicle_id = v.id
	JOIN users u ON v.owner_id = u.id
	LEFT JOIN violation_types vit ON vi.violation_type_id = vit.id`,

	ReportOverview: `SELECT metric, value, period, computed_at
	FROM overview_metrics`,
}

// timeColumns is each report type's primary timestamp column, targeted by
// the date-range filter.
var timeColumns = map[ReportType]string{
	ReportUsers:      "u.created_at",
	ReportVehicles:   "v.registered_at",
	ReportAccess:     "ae.event_time",
	ReportViolations: "vi.reported_at",
	ReportOverview:   "computed_at",
}

// statusColumns maps the status equality filter per type.
var statusColumns = map[ReportType]string{
	ReportUsers:      "u.status",
	ReportVehicles:   "v.status",
	ReportAccess:     "ae.status",
	ReportViolations: "vi.status",
}

// sortColumns maps sortable report fields to their SQL expressions. Only
// non-derived columns from the report's column table are sortable; sort
// fields are never interpolated from raw request input.
var sortColumns = map[ReportType]map[string]string{
	ReportUsers: {
		"user_id": "u.id", "name": "u.name", "email": "u.email",
		"designation": "u.designation", "department": "d.name",
		"status": "u.status", "created_at": "u.created_at",
	},
	ReportVehicles: {
		"vehicle_id": "v.id", "plate_number": "v.plate_number",
		"vehicle_type": "vt.name", "owner_name": "u.name",
		"department": "d.name", "status": "v.status",
		"registered_at": "v.registered_at",
	},
	ReportAccess: {
		"event_id": "ae.id", "plate_number": "v.plate_number",
		"owner_name": "u.name", "entry_type": "ae.entry_type",
		"gate_location": "g.name", "status": "ae.status",
		"event_time": "ae.event_time",
	},
	ReportViolations: {
		"violation_id": "vi.id", "plate_number": "v.plate_number",
		"owner_name": "u.name", "violation_type": "vit.name",
		"location": "vi.location", "fine_amount": "vi.fine_amount",
		"status": "vi.status", "reported_at": "vi.reported_at",
	},
	ReportOverview: {
		"metric": "metric", "value": "value", "period": "period",
	},
}

// SortableField reports whether field is a valid sort key for the report
// type.
func SortableField(rt ReportType, field string) bool {
	_, ok := sortColumns[rt][field]
	return ok
}

// BuildQuery translates a report type plus filter set into a parameterized
// SQL query. Every filter value is bound; the ORDER BY expression comes
// from the allow-list above.
func BuildQuery(rt ReportType, f Filters, sortBy, sortDir string) (string, []any, error) {
	base, ok := baseQueries[rt]
	if !ok {
		return "", nil, fmt.Errorf("unknown report type: %s", rt)
	}

	var (
		where []string
		args  []any
	)
	bind := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	tcol := timeColumns[rt]
	if f.DateFrom != nil {
		bind(tcol+" >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		bind(tcol+" <= $%d", *f.DateTo)
	}
	if f.Status != "" {
		if scol, ok := statusColumns[rt]; ok {
			bind(scol+" = $%d", f.Status)
		}
	}
	if f.EntryType != "" && rt == ReportAccess {
		bind("ae.entry_type = $%d", f.EntryType)
	}
	if f.Location != "" {
		switch rt {
		case ReportAccess:
			bind("g.name = $%d", f.Location)
		case ReportViolations:
			bind("vi.location = $%d", f.Location)
		}
	}
	if f.ViolationType != "" && rt == ReportViolations {
		bind("vit.name = $%d", f.ViolationType)
	}
	if f.VehicleType != "" && (rt == ReportVehicles || rt == ReportAccess) {
		bind("vt.name = $%d", f.VehicleType)
	}
	if f.Department != "" && (rt == ReportUsers || rt == ReportVehicles) {
		bind("d.name = $%d", f.Department)
	}

	query := base
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}

	if sortBy != "" {
		expr, ok := sortColumns[rt][sortBy]
		if !ok {
			return "", nil, fmt.Errorf("unknown sort field %q for report type %s", sortBy, rt)
		}
		dir := "ASC"
		if strings.EqualFold(sortDir, "desc") {
			dir = "DESC"
		}
		query += fmt.Sprintf("\n\tORDER BY %s %s", expr, dir)
	} else {
		query += fmt.Sprintf("\n\tORDER BY %s DESC", timeColumns[rt])
	}

	return query, args, nil
}
