package export

import (
	"time"

	"github.com/jordanlanch/campuspark/pkg/export/validate"
	"github.com/jordanlanch/campuspark/pkg/reports"
)

// Status is a job's lifecycle state. The only transitions are
// queued → running → done and queued → running → error.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Mode selects between summary (view) and raw per-record (full)
// rendering.
const (
	ModeView = "view"
	ModeFull = "full"
)

// Job is the unit of export work. Created by admission, mutated only by
// the worker that owns it, never deleted here.
type Job struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	ReportType reports.ReportType `json:"report_type"`
	Format     string             `json:"format"`
	Filters    reports.Filters    `json:"filters"`
	Columns    []string           `json:"columns,omitempty"`
	Mode       string             `json:"mode"`
	SortBy     string             `json:"sort_by,omitempty"`
	SortDir    string             `json:"sort_dir,omitempty"`
	Anonymize  bool               `json:"anonymize"`

	Status           Status           `json:"status"`
	RowCount         int              `json:"row_count"`
	FilePath         string           `json:"file_path,omitempty"`
	FileHash         string           `json:"file_hash,omitempty"`
	ValidationReport *validate.Report `json:"validation_report,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DoneResult carries everything persisted on the done transition.
type DoneResult struct {
	RowCount int
	FilePath string
	FileHash string
	Report   validate.Report
}
