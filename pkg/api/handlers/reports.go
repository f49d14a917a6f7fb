package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/jordanlanch/campuspark/pkg/api/errors"
	"github.com/jordanlanch/campuspark/pkg/reports"
	"github.com/labstack/echo/v4"
)

// ReportsHandler handles report aggregation endpoints
type ReportsHandler struct {
	reports *reports.Service
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(svc *reports.Service) *ReportsHandler {
	return &ReportsHandler{reports: svc}
}

// Summary handles GET /api/v1/reports/:type/summary
func (h *ReportsHandler) Summary(c echo.Context) error {
	reportType := c.Param("type")
	if !reports.ValidReportType(reportType) {
		return apierrors.ValidationError(c, []string{"report_type"})
	}

	filters, err := parseFilters(c)
	if err != nil {
		return apierrors.ValidationError(c, []string{err.Error()})
	}

	summary, err := h.reports.Summary(c.Request().Context(), reports.ReportType(reportType), filters)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"report_type": reportType,
		"summary":     summary,
	})
}

// InvalidateCache handles DELETE /api/v1/reports/cache
func (h *ReportsHandler) InvalidateCache(c echo.Context) error {
	reportType := c.QueryParam("report_type")
	if reportType != "" && !reports.ValidReportType(reportType) {
		return apierrors.ValidationError(c, []string{"report_type"})
	}

	removed := h.reports.Invalidate(reportType)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"invalidated": removed,
	})
}

type filterError string

func (e filterError) Error() string { return string(e) }

// parseFilters reads the report filter set from query parameters. Dates
// accept YYYY-MM-DD or RFC3339.
func parseFilters(c echo.Context) (reports.Filters, error) {
	f := reports.Filters{
		Status:        c.QueryParam("status"),
		EntryType:     c.QueryParam("entry_type"),
		Location:      c.QueryParam("location"),
		ViolationType: c.QueryParam("violation_type"),
		VehicleType:   c.QueryParam("vehicle_type"),
		Department:    c.QueryParam("department"),
	}

	if raw := c.QueryParam("date_from"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return f, filterError("date_from")
		}
		f.DateFrom = &t
	}
	if raw := c.QueryParam("date_to"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return f, filterError("date_to")
		}
		f.DateTo = &t
	}
	return f, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
