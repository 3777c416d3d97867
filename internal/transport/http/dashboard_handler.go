package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "ctsales/internal/errors"
	"ctsales/internal/middleware"
	"ctsales/internal/services"
)

// DashboardHandler handles dashboard HTTP requests with RFC 7807 compliance
type DashboardHandler struct {
	service      DashboardServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/facets", h.GetFacets)
	r.Get("/summary", h.GetSummary)
	r.Post("/query", h.Query)
	r.Post("/reset", h.Reset)
	r.Post("/export", h.Export)

	return r
}

// GetFacets handles GET /api/dashboard/facets
func (h *DashboardHandler) GetFacets(w http.ResponseWriter, r *http.Request) {
	facets := h.service.Facets(r.Context())

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   facets,
	})
}

// GetSummary handles GET /api/dashboard/summary
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.service.Summary(r.Context())

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"total_rows":         summary.TotalRows,
			"kept":               summary.Kept,
			"dropped":            summary.Dropped(),
			"dropped_bad_row":    summary.DroppedBadRow,
			"dropped_bad_date":   summary.DroppedBadDate,
			"dropped_bad_amount": summary.DroppedBadAmount,
			"dropped_no_town":    summary.DroppedNoTown,
		},
	})
}

// Query handles POST /api/dashboard/query
func (h *DashboardHandler) Query(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var req services.FilterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"INVALID_REQUEST",
			"Invalid request body",
			map[string]interface{}{
				"error": err.Error(),
			},
		))
		return
	}

	h.logger.InfoContext(r.Context(), "applying dashboard filter",
		slog.String("request_id", reqID),
		slog.Int("towns", len(req.Towns)),
		slog.Int("residential_types", len(req.ResidentialTypes)),
		slog.String("weight", req.Weight),
	)

	result, err := h.service.Query(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "query failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrInvalidFilter) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest,
				"INVALID_FILTER",
				err.Error(),
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// Reset handles POST /api/dashboard/reset
func (h *DashboardHandler) Reset(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "resetting dashboard filters",
		slog.String("request_id", reqID),
	)

	result := h.service.Reset(r.Context())

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// Export handles POST /api/dashboard/export?format=csv|xlsx
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	format := r.URL.Query().Get("format")
	if format == "" {
		format = services.FormatCSV
	}
	if format != services.FormatCSV && format != services.FormatXLSX {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(
			"format", fmt.Sprintf("Invalid export format: %s. Must be one of: csv, xlsx", format)))
		return
	}

	var req services.FilterRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusBadRequest,
				"INVALID_REQUEST",
				"Invalid request body",
				map[string]interface{}{
					"error": err.Error(),
				},
			))
			return
		}
	}

	h.logger.InfoContext(r.Context(), "exporting filtered rows",
		slog.String("request_id", reqID),
		slog.String("format", format),
	)

	contentType := "text/csv; charset=utf-8"
	if format == services.FormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	filename := fmt.Sprintf("ct-sales-%s.%s", time.Now().Format("20060102-150405"), format)
	aw := &attachmentWriter{
		ResponseWriter: w,
		contentType:    contentType,
		filename:       filename,
	}

	if err := h.service.Export(r.Context(), req, format, aw); err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("format", format),
		)

		// Headers may already be on the wire; only report if not
		if !aw.wrote {
			if errors.Is(err, services.ErrInvalidFilter) || errors.Is(err, services.ErrInvalidExportFormat) {
				h.errorHandler.HandleError(w, r, apierrors.New(
					http.StatusBadRequest,
					"INVALID_FILTER",
					err.Error(),
				))
				return
			}
			h.errorHandler.HandleError(w, r, apierrors.ExportError(format, err))
		}
	}
}

// attachmentWriter defers the download headers until the export has
// produced its first byte, so validation failures still render as a
// plain JSON problem response.
type attachmentWriter struct {
	http.ResponseWriter
	contentType string
	filename    string
	wrote       bool
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	if !a.wrote {
		a.Header().Set("Content-Type", a.contentType)
		a.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.filename))
		a.wrote = true
	}
	return a.ResponseWriter.Write(p)
}
