package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stitchline-erp/stitchline-erp/internal/platform/httpx"
)

// Handler serves the audit read surface.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// Routes mounts the audit endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/audit/unit-changes", h.Query)
	r.Get("/audit/unit-changes/summary", h.Summary)
	r.Get("/audit/unit-changes/export", h.Export)
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	result, err := h.service.Query(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit query failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	summary, err := h.service.Summarize(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit summary failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	rows, err := h.service.All(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data, err := ExportXLSX(rows)
	if err != nil {
		h.logger.Error("audit export render failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="unit-changes.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseFilters(r *http.Request) (QueryFilters, error) {
	q := r.URL.Query()
	filters := QueryFilters{
		TableName: q.Get("table"),
		FieldName: q.Get("field"),
		ChangedBy: q.Get("actor"),
	}
	if raw := q.Get("record_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return QueryFilters{}, err
		}
		filters.RecordID = id
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return QueryFilters{}, err
		}
		filters.From = ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return QueryFilters{}, err
		}
		filters.To = ts
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("limit"))
	return filters, nil
}
