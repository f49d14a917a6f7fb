package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	apierrors "github.com/jordanlanch/campuspark/pkg/api/errors"
	"github.com/jordanlanch/campuspark/pkg/export"
	"github.com/jordanlanch/campuspark/pkg/middleware"
	"github.com/jordanlanch/campuspark/pkg/models"
	"github.com/labstack/echo/v4"
)

// ExportHandler handles export job endpoints
type ExportHandler struct {
	exports   *export.Service
	validator *validator.Validate
}

// NewExportHandler creates a new export handler
func NewExportHandler(exports *export.Service) *ExportHandler {
	return &ExportHandler{
		exports:   exports,
		validator: validator.New(),
	}
}

// Create handles POST /api/v1/exports
func (h *ExportHandler) Create(c echo.Context) error {
	var req models.ExportRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.BindError(c, err)
	}
	if err := h.validator.Struct(&req); err != nil {
		return apierrors.BindError(c, err)
	}

	userID := c.Get(middleware.UserIDKey).(string)

	job, err := h.exports.Submit(c.Request().Context(), userID, export.SubmitRequest{
		ReportType: req.ReportType,
		Format:     req.Format,
		Filters:    req.Filters,
		Columns:    req.Columns,
		Mode:       req.Mode,
		SortBy:     req.SortBy,
		SortDir:    req.SortDir,
		Anonymize:  req.Anonymize,
	})
	if err != nil {
		var verr *export.ValidationError
		if errors.As(err, &verr) {
			return apierrors.ValidationError(c, verr.Fields)
		}
		var rerr *export.RateLimitError
		if errors.As(err, &rerr) {
			return apierrors.RateLimitError(c, rerr.Error())
		}
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusCreated, toExportResponse(job))
}

// List handles GET /api/v1/exports
func (h *ExportHandler) List(c echo.Context) error {
	userID := c.Get(middleware.UserIDKey).(string)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	jobs, total, err := h.exports.List(c.Request().Context(), userID, limit, (page-1)*limit)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	data := make([]models.ExportResponse, 0, len(jobs))
	for _, job := range jobs {
		data = append(data, toExportResponse(job))
	}

	totalPages := (total + limit - 1) / limit
	return c.JSON(http.StatusOK, models.ExportListResponse{
		Data: data,
		Pagination: models.PaginationInfo{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	})
}

// Get handles GET /api/v1/exports/:id
func (h *ExportHandler) Get(c echo.Context) error {
	userID := c.Get(middleware.UserIDKey).(string)

	job, err := h.exports.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, export.ErrJobNotFound) {
			return apierrors.NotFoundError(c, "export job")
		}
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, toExportResponse(job))
}

// Download handles GET /api/v1/exports/:id/download
func (h *ExportHandler) Download(c echo.Context) error {
	userID := c.Get(middleware.UserIDKey).(string)

	data, contentType, filename, err := h.exports.Artifact(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, export.ErrJobNotFound) {
			return apierrors.NotFoundError(c, "export job")
		}
		if errors.Is(err, export.ErrJobNotReady) {
			return apierrors.ConflictError(c, "Export is not finished yet. Check its status and retry.")
		}
		return apierrors.InternalError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, contentType, data)
}

func toExportResponse(job *export.Job) models.ExportResponse {
	resp := models.ExportResponse{
		ID:           job.ID,
		Status:       string(job.Status),
		ReportType:   string(job.ReportType),
		Format:       job.Format,
		Mode:         job.Mode,
		Anonymize:    job.Anonymize,
		RowCount:     job.RowCount,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		StartedAt:    models.FormatTime(job.StartedAt),
		CompletedAt:  models.FormatTime(job.CompletedAt),
	}
	if job.Status == export.StatusDone {
		resp.ValidationReport = job.ValidationReport
	}
	return resp
}
