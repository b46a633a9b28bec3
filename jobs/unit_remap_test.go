package jobs

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/stitchline-erp/stitchline-erp/internal/jobs"
	"github.com/stitchline-erp/stitchline-erp/internal/migration"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
	"github.com/stitchline-erp/stitchline-erp/jobs/tasks"
)

type fixedRows struct {
	values map[string][]int64
}

func (r *fixedRows) DistinctValues(ctx context.Context, target migration.Target) ([]string, error) {
	var out []string
	for v := range r.values {
		out = append(out, v)
	}
	return out, nil
}

func (r *fixedRows) RowsWithValue(ctx context.Context, target migration.Target, raw string) ([]int64, error) {
	return r.values[raw], nil
}

func (r *fixedRows) ApplyUnitToRows(ctx context.Context, target migration.Target, ids []int64, unitID int64) (int64, error) {
	return int64(len(ids)), nil
}

type fixedResolver struct{}

func (fixedResolver) FindUnit(ctx context.Context, raw string) (units.Unit, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "kg") {
		return units.Unit{ID: 1, Name: "Kilogram"}, nil
	}
	return units.Unit{}, shared.ErrNotFound
}

type noopAudit struct{}

func (noopAudit) RecordMigrationMapping(ctx context.Context, tableName string, recordID int64, fieldName, oldText string, newUnitID int64, actor string) bool {
	return true
}

func (noopAudit) RecordUnmappedMigration(ctx context.Context, tableName string, recordID int64, fieldName, oldText, actor string) bool {
	return true
}

func newRemapFixture(t *testing.T) (*UnitRemapJob, *migration.RunStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &fixedRows{values: map[string][]int64{"kg": {1, 2}, "bundle": {3}}}
	targets := []migration.Target{{Name: "material-unit", Table: "material_master", TextColumn: "unit_name", UnitColumn: "unit_id"}}
	svc := migration.NewService(repo, fixedResolver{}, noopAudit{}, targets, nil)
	runs := migration.NewRunStore(client)

	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	return NewUnitRemapJob(svc, runs, nil, metrics), runs
}

func TestUnitRemapHandle(t *testing.T) {
	job, runs := newRemapFixture(t)
	ctx := context.Background()

	task, err := tasks.NewUnitRemapTask(tasks.UnitRemapPayload{RunID: "run-9", Target: "material-unit", Actor: "amira"})
	require.NoError(t, err)

	require.NoError(t, job.Handle(ctx, task))

	report, err := runs.Get(ctx, "run-9")
	require.NoError(t, err)
	require.Equal(t, migration.StatusDone, report.Status)
	require.Equal(t, "run-9", report.RunID, "the queued run id survives the service-generated one")
	require.Equal(t, 2, report.Stats.Total)
	require.Equal(t, 1, report.Stats.Mapped)
	require.Equal(t, 1, report.Stats.Unmapped)
	require.Equal(t, int64(2), report.RowsPerValue["kg"])
}

func TestUnitRemapHandleBadPayload(t *testing.T) {
	job, _ := newRemapFixture(t)

	err := job.Handle(context.Background(), asynq.NewTask(tasks.TaskUnitRemap, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(tasks.TaskUnitRemap, []byte(`{"run_id":"x"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry, "missing target is never retried")
}

func TestUnitRemapHandleUnknownTarget(t *testing.T) {
	job, runs := newRemapFixture(t)
	ctx := context.Background()

	task, err := tasks.NewUnitRemapTask(tasks.UnitRemapPayload{RunID: "run-10", Target: "payroll"})
	require.NoError(t, err)

	require.Error(t, job.Handle(ctx, task))

	report, err := runs.Get(ctx, "run-10")
	require.NoError(t, err)
	require.Equal(t, migration.StatusFailed, report.Status)
	require.NotEmpty(t, report.Error)
}
