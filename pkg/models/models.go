package models

import (
	"time"

	"github.com/jordanlanch/campuspark/pkg/export/validate"
	"github.com/jordanlanch/campuspark/pkg/reports"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// ExportRequest is the export admission payload
type ExportRequest struct {
	ReportType string          `json:"report_type" validate:"required"`
	Format     string          `json:"format" validate:"required,oneof=csv xlsx pdf"`
	Filters    reports.Filters `json:"filters"`
	Columns    []string        `json:"columns"`
	Mode       string          `json:"mode" validate:"required,oneof=view full"`
	SortBy     string          `json:"sort_by"`
	SortDir    string          `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
	Anonymize  bool            `json:"anonymize"`
}

// ExportResponse describes one export job
type ExportResponse struct {
	ID               string           `json:"id"`
	Status           string           `json:"status"`
	ReportType       string           `json:"report_type"`
	Format           string           `json:"format"`
	Mode             string           `json:"mode"`
	Anonymize        bool             `json:"anonymize"`
	RowCount         int              `json:"row_count,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	ValidationReport *validate.Report `json:"validation_report,omitempty"`
	CreatedAt        string           `json:"created_at"`
	StartedAt        string           `json:"started_at,omitempty"`
	CompletedAt      string           `json:"completed_at,omitempty"`
}

// ExportListResponse is a paginated list of export jobs
type ExportListResponse struct {
	Data       []ExportResponse `json:"data"`
	Pagination PaginationInfo   `json:"pagination"`
}

// PaginationInfo describes a result page
type PaginationInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// FormatTime renders an optional timestamp as RFC3339 or empty.
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
