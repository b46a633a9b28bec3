package units

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stitchline-erp/stitchline-erp/internal/platform/httpx"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// ResolverPort lets the handler expose free-text resolution without
// depending on the resolver package.
type ResolverPort interface {
	FindUnit(ctx context.Context, raw string) (Unit, error)
	ClearCache()
}

// Handler serves the unit catalog JSON surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	resolver ResolverPort
	validate *validator.Validate
}

// NewHandler builds the catalog handler.
func NewHandler(logger *slog.Logger, service *Service, resolver ResolverPort) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, resolver: resolver, validate: validator.New()}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Get("/units", h.List)
	r.Get("/units/{id}", h.Get)
	r.Post("/units", h.Create)
	r.Delete("/units/{id}", h.Deactivate)
	r.Post("/units/{id}/aliases", h.CreateAlias)
	r.Get("/units/resolve", h.Resolve)
	r.Post("/units/convert", h.Convert)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filters := shared.ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
	}
	result, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list units failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"units": result, "total": total})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid unit id")
		return
	}
	unit, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input CreateUnitInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	unit, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create unit failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	// The resolver index predates this unit; drop it so the next lookup
	// rebuilds with the new terms.
	h.resolver.ClearCache()
	httpx.JSON(w, http.StatusCreated, unit)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid unit id")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.resolver.ClearCache()
	httpx.JSON(w, http.StatusOK, map[string]any{"deactivated": id})
}

func (h *Handler) CreateAlias(w http.ResponseWriter, r *http.Request) {
	unitID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid unit id")
		return
	}
	var alias Alias
	if err := httpx.DecodeJSON(r, &alias); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	alias.UnitID = unitID
	created, err := h.service.CreateAlias(r.Context(), alias)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.resolver.ClearCache()
	httpx.JSON(w, http.StatusCreated, created)
}

// Resolve matches free text against the catalog. A miss is a 404 with a
// problem body, not a server error.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("text")
	unit, err := h.resolver.FindUnit(r.Context(), raw)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

type convertRequest struct {
	Value      decimal.Decimal `json:"value"`
	FromUnitID int64           `json:"from_unit_id" validate:"gt=0"`
	ToUnitID   int64           `json:"to_unit_id" validate:"gt=0"`
}

// Convert translates a value between two catalog units of one category.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	from, err := h.service.repo.GetDetail(r.Context(), req.FromUnitID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := h.service.repo.GetDetail(r.Context(), req.ToUnitID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := Convert(req.Value, from, to)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Conversion Refused", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"value":  req.Value,
		"from":   from.Symbol,
		"to":     to.Symbol,
		"result": Round(result, to),
	})
}
