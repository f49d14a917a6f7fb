package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jordanlanch/campuspark/pkg/cache"
	"github.com/jordanlanch/campuspark/pkg/reports"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestReports(t *testing.T) *ReportsHandler {
	c := cache.NewMemory(0)
	t.Cleanup(c.Close)

	fetcher := &stubFetcher{rows: []reports.Row{
		{"status": "active"},
		{"status": "active"},
		{"status": "suspended"},
	}}
	return NewReportsHandler(reports.NewService(fetcher, c, time.Minute, nil))
}

func TestReportsHandler_Summary(t *testing.T) {
	handler := setupTestReports(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/users/summary?status=active", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("type")
	c.SetParamValues("users")

	require.NoError(t, handler.Summary(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "users", resp["report_type"])

	summary, ok := resp["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), summary["total_records"])
	assert.Equal(t, float64(2), summary["status_active"])
}

func TestReportsHandler_SummaryInvalidType(t *testing.T) {
	handler := setupTestReports(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/payroll/summary", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("type")
	c.SetParamValues("payroll")

	require.NoError(t, handler.Summary(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsHandler_SummaryBadDate(t *testing.T) {
	handler := setupTestReports(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/users/summary?date_from=not-a-date", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("type")
	c.SetParamValues("users")

	require.NoError(t, handler.Summary(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsHandler_InvalidateCache(t *testing.T) {
	handler := setupTestReports(t)

	e := echo.New()

	// Populate the cache through the summary path
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/users/summary", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("type")
	c.SetParamValues("users")
	require.NoError(t, handler.Summary(c))

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/reports/cache?report_type=users", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, handler.InvalidateCache(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["invalidated"])
}

func TestReportsHandler_InvalidateCacheUnknownType(t *testing.T) {
	handler := setupTestReports(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/reports/cache?report_type=payroll", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler.InvalidateCache(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
