package migration

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stitchline-erp/stitchline-erp/internal/platform/httpx"
	"github.com/stitchline-erp/stitchline-erp/jobs/tasks"
)

// Enqueuer queues background tasks; satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Handler exposes migration kickoff and progress polling.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	runs     *RunStore
	enqueuer Enqueuer
}

// NewHandler builds the migration handler.
func NewHandler(logger *slog.Logger, service *Service, runs *RunStore, enqueuer Enqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, runs: runs, enqueuer: enqueuer}
}

// Routes mounts the migration endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/migration/targets", h.Targets)
	r.Get("/migration/targets/{name}/preview", h.Preview)
	r.Post("/migration/targets/{name}/runs", h.Start)
	r.Get("/migration/runs/{runID}", h.RunStatus)
}

func (h *Handler) Targets(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"targets": h.service.Targets()})
}

// Preview reports mapping statistics without applying anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	target, err := h.service.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	values, err := h.service.DistinctValues(r.Context(), target)
	if err != nil {
		h.logger.Error("migration preview failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	stats, err := h.service.Statistics(r.Context(), values)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"target": target.Name, "stats": stats})
}

// Start queues a background run and returns its run id immediately.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	target, err := h.service.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := tasks.UnitRemapPayload{
		RunID:  uuid.NewString(),
		Target: target.Name,
		Actor:  r.Header.Get("X-Actor"),
	}
	task, err := tasks.NewUnitRemapTask(payload)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.enqueuer.EnqueueContext(r.Context(), task); err != nil {
		h.logger.Error("enqueue migration run failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	report := RunReport{RunID: payload.RunID, Target: target.Name, Status: StatusQueued}
	if h.runs != nil {
		if err := h.runs.Save(r.Context(), report); err != nil {
			h.logger.Warn("save queued run failed", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusAccepted, report)
}

func (h *Handler) RunStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.runs.Get(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
