package migration

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

func newTestRunStore(t *testing.T) (*RunStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRunStore(client), mr
}

func TestRunStoreSaveAndGet(t *testing.T) {
	store, _ := newTestRunStore(t)
	ctx := context.Background()

	report := RunReport{
		RunID:     "run-123",
		Target:    "material-unit",
		Status:    StatusDone,
		Stats:     Stats{Total: 3, Mapped: 2, Unmapped: 1, SuccessRate: 66.7},
		StartedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, report))

	got, err := store.Get(ctx, "run-123")
	require.NoError(t, err)
	require.Equal(t, report.Target, got.Target)
	require.Equal(t, report.Status, got.Status)
	require.InDelta(t, 66.7, got.Stats.SuccessRate, 0.001)
}

func TestRunStoreSaveOverwrites(t *testing.T) {
	store, _ := newTestRunStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, RunReport{RunID: "run-1", Status: StatusQueued}))
	require.NoError(t, store.Save(ctx, RunReport{RunID: "run-1", Status: StatusDone}))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, StatusDone, got.Status)
}

func TestRunStoreGetMissing(t *testing.T) {
	store, _ := newTestRunStore(t)

	_, err := store.Get(context.Background(), "no-such-run")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRunStoreReportsExpire(t *testing.T) {
	store, mr := newTestRunStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, RunReport{RunID: "run-1", Status: StatusDone}))

	mr.FastForward(runRetention + time.Minute)

	_, err := store.Get(ctx, "run-1")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
