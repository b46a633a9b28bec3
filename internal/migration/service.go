package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stitchline-erp/stitchline-erp/internal/audit"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
)

// ResolverPort matches raw text to catalog units.
type ResolverPort interface {
	FindUnit(ctx context.Context, raw string) (units.Unit, error)
}

// AuditPort records mapped and unmapped outcomes per affected row.
type AuditPort interface {
	RecordMigrationMapping(ctx context.Context, tableName string, recordID int64, fieldName, oldText string, newUnitID int64, actor string) bool
	RecordUnmappedMigration(ctx context.Context, tableName string, recordID int64, fieldName, oldText, actor string) bool
}

// Service orchestrates bulk reconciliation of a legacy free-text unit column.
type Service struct {
	repo     Repository
	resolver ResolverPort
	auditor  AuditPort
	targets  map[string]Target
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the migration service over an allow-list of targets.
func NewService(repo Repository, resolver ResolverPort, auditor AuditPort, targets []Target, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	index := make(map[string]Target, len(targets))
	for _, t := range targets {
		index[t.Name] = t
	}
	return &Service{repo: repo, resolver: resolver, auditor: auditor, targets: index, logger: logger, now: time.Now}
}

// Targets lists the allow-listed migration targets.
func (s *Service) Targets() []Target {
	result := make([]Target, 0, len(s.targets))
	for _, t := range s.targets {
		result = append(result, t)
	}
	return result
}

// Lookup resolves a target by name.
func (s *Service) Lookup(name string) (Target, error) {
	target, ok := s.targets[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: migration target %q", shared.ErrNotFound, name)
	}
	return target, nil
}

// DistinctValues returns the unique raw values of the target's text column.
func (s *Service) DistinctValues(ctx context.Context, target Target) ([]string, error) {
	return s.repo.DistinctValues(ctx, target)
}

// BuildMapping resolves each distinct value exactly once. A resolver miss is
// an unmapped decision, not an error; catalog failures propagate unchanged.
func (s *Service) BuildMapping(ctx context.Context, values []string) (Mapping, error) {
	mapping := make(Mapping, len(values))
	for _, value := range values {
		unit, err := s.resolver.FindUnit(ctx, value)
		if errors.Is(err, shared.ErrNotFound) {
			mapping[value] = MappedValue{}
			continue
		}
		if err != nil {
			return nil, err
		}
		mapping[value] = MappedValue{UnitID: unit.ID, Mapped: true}
	}
	return mapping, nil
}

// Statistics resolves the values and reports mapping success.
func (s *Service) Statistics(ctx context.Context, values []string) (Stats, error) {
	mapping, err := s.BuildMapping(ctx, values)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(values, mapping), nil
}

// ApplyMapping writes every mapped value with one UPDATE per value, audits
// each affected row, and returns affected-row counts per raw value. Unmapped
// values are audited as unmapped for manual follow-up but never applied.
func (s *Service) ApplyMapping(ctx context.Context, target Target, mapping Mapping, actor string) (map[string]int64, error) {
	affected := make(map[string]int64, len(mapping))
	for raw, decision := range mapping {
		ids, err := s.repo.RowsWithValue(ctx, target, raw)
		if err != nil {
			return nil, err
		}
		if !decision.Mapped {
			for _, id := range ids {
				s.auditor.RecordUnmappedMigration(ctx, target.Table, id, target.UnitColumn, raw, actor)
			}
			continue
		}
		count, err := s.repo.ApplyUnitToRows(ctx, target, ids, decision.UnitID)
		if err != nil {
			return nil, err
		}
		affected[raw] = count
		for _, id := range ids {
			s.auditor.RecordMigrationMapping(ctx, target.Table, id, target.UnitColumn, raw, decision.UnitID, actor)
		}
	}
	return affected, nil
}

// Run executes the whole reconciliation flow for one target.
func (s *Service) Run(ctx context.Context, targetName, actor string) (RunReport, error) {
	target, err := s.Lookup(targetName)
	if err != nil {
		return RunReport{}, err
	}
	if actor == "" {
		actor = audit.MigrationActor
	}
	report := RunReport{
		RunID:     uuid.NewString(),
		Target:    target.Name,
		Status:    StatusRunning,
		StartedAt: s.now(),
	}

	values, err := s.DistinctValues(ctx, target)
	if err != nil {
		return s.fail(report, err), err
	}
	mapping, err := s.BuildMapping(ctx, values)
	if err != nil {
		return s.fail(report, err), err
	}
	affected, err := s.ApplyMapping(ctx, target, mapping, actor)
	if err != nil {
		return s.fail(report, err), err
	}

	report.Stats = ComputeStats(values, mapping)
	report.RowsPerValue = affected
	report.Status = StatusDone
	report.FinishedAt = s.now()
	s.logger.Info("migration run finished",
		slog.String("run_id", report.RunID),
		slog.String("target", target.Name),
		slog.Int("distinct_values", report.Stats.Total),
		slog.Int("mapped", report.Stats.Mapped),
		slog.Int("unmapped", report.Stats.Unmapped))
	return report, nil
}

func (s *Service) fail(report RunReport, err error) RunReport {
	report.Status = StatusFailed
	report.Error = err.Error()
	report.FinishedAt = s.now()
	s.logger.Error("migration run failed",
		slog.String("run_id", report.RunID),
		slog.String("target", report.Target),
		slog.Any("error", err))
	return report
}
