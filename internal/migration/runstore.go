package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// runKeyPrefix namespaces run reports in Redis.
const runKeyPrefix = "stitchline:migration:run:"

// runRetention keeps finished reports long enough for operators to collect
// them after a background run.
const runRetention = 24 * time.Hour

// RunStore keeps migration run reports in Redis so the HTTP surface can poll
// the progress of a background run.
type RunStore struct {
	client *redis.Client
}

// NewRunStore builds the store.
func NewRunStore(client *redis.Client) *RunStore {
	return &RunStore{client: client}
}

// Save upserts a run report.
func (s *RunStore) Save(ctx context.Context, report RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("migration: marshal run: %w", err)
	}
	if err := s.client.Set(ctx, runKeyPrefix+report.RunID, data, runRetention).Err(); err != nil {
		return fmt.Errorf("migration: save run: %w", err)
	}
	return nil
}

// Get fetches a run report by id.
func (s *RunStore) Get(ctx context.Context, runID string) (RunReport, error) {
	data, err := s.client.Get(ctx, runKeyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return RunReport{}, fmt.Errorf("%w: run %q", shared.ErrNotFound, runID)
	}
	if err != nil {
		return RunReport{}, fmt.Errorf("migration: load run: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return RunReport{}, fmt.Errorf("migration: unmarshal run: %w", err)
	}
	return report, nil
}
