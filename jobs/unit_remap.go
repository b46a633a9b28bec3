package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stitchline-erp/stitchline-erp/internal/jobs"
	"github.com/stitchline-erp/stitchline-erp/internal/migration"
	"github.com/stitchline-erp/stitchline-erp/jobs/tasks"
)

// UnitRemapJob runs a queued free-text unit migration and publishes its
// report so the HTTP surface can poll progress.
type UnitRemapJob struct {
	Service *migration.Service
	Runs    *migration.RunStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewUnitRemapJob initialises the remap handler.
func NewUnitRemapJob(service *migration.Service, runs *migration.RunStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *UnitRemapJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnitRemapJob{
		Service: service,
		Runs:    runs,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one queued migration run.
func (j *UnitRemapJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("unit remap: handler not configured")
	}
	var payload tasks.UnitRemapPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Target == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(tasks.TaskUnitRemap)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	j.saveStatus(ctx, migration.RunReport{
		RunID:     payload.RunID,
		Target:    payload.Target,
		Status:    migration.StatusRunning,
		StartedAt: j.clock(),
	})

	report, err := j.Service.Run(ctx, payload.Target, payload.Actor)
	report.RunID = payload.RunID
	if err != nil {
		// Target lookup failures return an empty report; fill in enough for
		// the poller to see the run failed.
		if report.Status == "" {
			report.Target = payload.Target
			report.Status = migration.StatusFailed
			report.Error = err.Error()
			report.FinishedAt = j.clock()
		}
		j.saveStatus(ctx, report)
		resultErr = err
		return err
	}
	j.saveStatus(ctx, report)
	j.Logger.Info("unit remap completed",
		slog.String("run_id", payload.RunID),
		slog.String("target", payload.Target),
		slog.Float64("success_rate", report.Stats.SuccessRate))
	return nil
}

func (j *UnitRemapJob) saveStatus(ctx context.Context, report migration.RunReport) {
	if j.Runs == nil {
		return
	}
	if err := j.Runs.Save(ctx, report); err != nil {
		j.Logger.Warn("unit remap: save run report", slog.Any("error", err))
	}
}
