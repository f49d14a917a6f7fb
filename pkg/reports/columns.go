package reports

// ReportType identifies one of the reporting domains exports can be
// generated for.
type ReportType string

const (
	ReportOverview   ReportType = "overview"
	ReportUsers      ReportType = "users"
	ReportVehicles   ReportType = "vehicles"
	ReportAccess     ReportType = "access"
	ReportViolations ReportType = "violations"
)

// FieldType is the semantic type of a report column, used for type-aware
// cell formatting in the renderers.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypeBoolean  FieldType = "boolean"
)

// ColumnDef describes a single report column.
type ColumnDef struct {
	Label   string
	Type    FieldType
	PII     bool
	Derived bool // computed in the query, not a raw stored column
}

// Row is a single result row as returned by the data store: field name to
// scalar value, with date/datetime fields as time.Time.
type Row map[string]any

// columnTables maps every report type to its column metadata.
var columnTables = map[ReportType]map[string]ColumnDef{
	ReportOverview: {
		"metric":      {Label: "Metric", Type: TypeString},
		"value":       {Label: "Value", Type: TypeNumber, Derived: true},
		"period":      {Label: "Period", Type: TypeString},
		"computed_at": {Label: "Computed At", Type: TypeDatetime, Derived: true},
	},
	ReportUsers: {
		"user_id":         {Label: "User ID", Type: TypeNumber},
		"name":            {Label: "Name", Type: TypeString, PII: true},
		"email":           {Label: "Email", Type: TypeString, PII: true},
		"phone":           {Label: "Phone", Type: TypeString, PII: true},
		"designation":     {Label: "Designation", Type: TypeString},
		"department":      {Label: "Department", Type: TypeString},
		"status":          {Label: "Status", Type: TypeString},
		"vehicle_count":   {Label: "Vehicles", Type: TypeNumber, Derived: true},
		"violation_count": {Label: "Violations", Type: TypeNumber, Derived: true},
		"created_at":      {Label: "Registered On", Type: TypeDatetime},
	},
	ReportVehicles: {
		"vehicle_id":    {Label: "Vehicle ID", Type: TypeNumber},
		"plate_number":  {Label: "Plate Number", Type: TypeString, PII: true},
		"vehicle_type":  {Label: "Type", Type: TypeString},
		"owner_name":    {Label: "Owner", Type: TypeString, PII: true},
		"owner_email":   {Label: "Owner Email", Type: TypeString, PII: true},
		"department":    {Label: "Department", Type: TypeString},
		"status":        {Label: "Status", Type: TypeString},
		"access_count":  {Label: "Access Events", Type: TypeNumber, Derived: true},
		"registered_at": {Label: "Registered On", Type: TypeDate},
	},
	ReportAccess: {
		"event_id":      {Label: "Event ID", Type: TypeNumber},
		"plate_number":  {Label: "Plate Number", Type: TypeString, PII: true},
		"owner_name":    {Label: "Owner", Type: TypeString, PII: true},
		"vehicle_type":  {Label: "Vehicle Type", Type: TypeString},
		"entry_type":    {Label: "Entry/Exit", Type: TypeString},
		"gate_location": {Label: "Gate", Type: TypeString},
		"status":        {Label: "Status", Type: TypeString},
		"event_time":    {Label: "Time", Type: TypeDatetime},
	},
	ReportViolations: {
		"violation_id":   {Label: "Violation ID", Type: TypeNumber},
		"plate_number":   {Label: "Plate Number", Type: TypeString, PII: true},
		"owner_name":     {Label: "Owner", Type: TypeString, PII: true},
		"owner_email":    {Label: "Owner Email", Type: TypeString, PII: true},
		"violation_type": {Label: "Violation Type", Type: TypeString},
		"location":       {Label: "Location", Type: TypeString},
		"fine_amount":    {Label: "Fine", Type: TypeNumber},
		"status":         {Label: "Status", Type: TypeString},
		"resolved":       {Label: "Resolved", Type: TypeBoolean, Derived: true},
		"reported_at":    {Label: "Reported On", Type: TypeDatetime},
	},
}

// defaultColumns is the ordered column selection used when a request does
// not pick columns explicitly.
var defaultColumns = map[ReportType][]string{
	ReportOverview: {"metric", "value", "period"},
	ReportUsers: {
		"user_id", "name", "email", "phone", "designation", "department",
		"status", "vehicle_count", "violation_count", "created_at",
	},
	ReportVehicles: {
		"vehicle_id", "plate_number", "vehicle_type", "owner_name",
		"department", "status", "access_count", "registered_at",
	},
	ReportAccess: {
		"event_id", "plate_number", "owner_name", "vehicle_type",
		"entry_type", "gate_location", "status", "event_time",
	},
	ReportViolations: {
		"violation_id", "plate_number", "owner_name", "violation_type",
		"location", "fine_amount", "status", "reported_at",
	},
}

// ValidReportType reports whether s names a known report type.
func ValidReportType(s string) bool {
	_, ok := columnTables[ReportType(s)]
	return ok
}

// Columns returns the column metadata table for a report type.
func Columns(rt ReportType) map[string]ColumnDef {
	return columnTables[rt]
}

// Column looks up a single column definition.
func Column(rt ReportType, field string) (ColumnDef, bool) {
	def, ok := columnTables[rt][field]
	return def, ok
}

// DefaultColumns returns the ordered default column selection for a report
// type.
func DefaultColumns(rt ReportType) []string {
	cols := defaultColumns[rt]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

// Labels maps a column selection to display labels, falling back to the
// raw field name for unknown columns.
func Labels(rt ReportType, columns []string) []string {
	labels := make([]string, len(columns))
	for i, col := range columns {
		if def, ok := columnTables[rt][col]; ok {
			labels[i] = def.Label
		} else {
			labels[i] = col
		}
	}
	return labels
}
