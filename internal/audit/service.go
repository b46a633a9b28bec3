package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stitchline-erp/stitchline-erp/internal/observability"
)

// MigrationActor is recorded when a bulk migration writes audit rows without
// a human actor.
const MigrationActor = "migration_system"

// Service appends and reads unit change audit rows. Writes are best-effort:
// a failed audit write must never fail the business operation it is attached
// to, so Record returns false instead of an error.
//
// The audit table may live in either of two partitions depending on
// deployment. Every call walks the candidate list in order and uses the
// first target that responds, logging which one served it; the choice is
// never sticky.
type Service struct {
	targets []Store
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService builds the audit service. targets are tried in the given order
// on every call; metrics may be nil.
func NewService(logger *slog.Logger, metrics *observability.Metrics, targets ...Store) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{targets: targets, logger: logger, metrics: metrics, now: time.Now}
}

// Record appends one audit row. Identical calls append identical rows; the
// log is append-only and deliberately not deduplicated.
func (s *Service) Record(ctx context.Context, tableName string, recordID int64, fieldName string, oldUnitID, newUnitID *int64, actor, reason string) bool {
	change := Change{
		TableName:    tableName,
		RecordID:     recordID,
		FieldName:    fieldName,
		OldUnitID:    oldUnitID,
		NewUnitID:    newUnitID,
		ChangedBy:    actor,
		ChangedAt:    s.now(),
		ChangeReason: reason,
	}
	for _, target := range s.targets {
		if err := target.Insert(ctx, change); err != nil {
			s.metrics.ObserveAuditWrite(target.Name(), "error")
			s.logger.Warn("audit write failed, trying next target",
				slog.String("target", target.Name()),
				slog.Any("error", err))
			continue
		}
		s.metrics.ObserveAuditWrite(target.Name(), "ok")
		s.logger.Debug("audit row written",
			slog.String("target", target.Name()),
			slog.String("table", tableName),
			slog.Int64("record_id", recordID))
		return true
	}
	s.logger.Error("audit write failed on every target",
		slog.String("table", tableName),
		slog.Int64("record_id", recordID),
		slog.String("reason", reason))
	return false
}

// RecordMigrationMapping appends a row for a free-text column successfully
// migrated to a numeric unit reference.
func (s *Service) RecordMigrationMapping(ctx context.Context, tableName string, recordID int64, fieldName, oldText string, newUnitID int64, actor string) bool {
	if actor == "" {
		actor = MigrationActor
	}
	return s.Record(ctx, tableName, recordID, fieldName, nil, &newUnitID, actor, MigrationMappedReason(oldText))
}

// RecordUnmappedMigration appends a row for text the resolver could not
// match. These rows surface unmapped values for manual follow-up; they are
// never silently dropped.
func (s *Service) RecordUnmappedMigration(ctx context.Context, tableName string, recordID int64, fieldName, oldText, actor string) bool {
	if actor == "" {
		actor = MigrationActor
	}
	return s.Record(ctx, tableName, recordID, fieldName, nil, nil, actor, MigrationUnmappedReason(oldText))
}

// Query reads one page of the log, most recent first.
func (s *Service) Query(ctx context.Context, filters QueryFilters) (Result, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, target, err := s.query(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	s.logger.Debug("audit query served", slog.String("target", target))

	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// All reads every matching row without paging, for exports.
func (s *Service) All(ctx context.Context, filters QueryFilters) ([]Change, error) {
	rows, _, err := s.query(ctx, filters, exportRowCap, 0)
	return rows, err
}

// Summarize aggregates matching rows per table and per reason kind.
func (s *Service) Summarize(ctx context.Context, filters QueryFilters) (Summary, error) {
	var lastErr error
	for _, target := range s.targets {
		summary, err := target.Summary(ctx, filters)
		if err != nil {
			lastErr = err
			s.logger.Warn("audit summary failed, trying next target",
				slog.String("target", target.Name()),
				slog.Any("error", err))
			continue
		}
		return summary, nil
	}
	return Summary{}, noTargetErr(lastErr)
}

// exportRowCap bounds unpaged reads so an export cannot pull the whole table
// into memory unbounded.
const exportRowCap = 100_000

func (s *Service) query(ctx context.Context, filters QueryFilters, limit, offset int) ([]Change, string, error) {
	var lastErr error
	for _, target := range s.targets {
		rows, err := target.Query(ctx, filters, limit, offset)
		if err != nil {
			lastErr = err
			s.logger.Warn("audit query failed, trying next target",
				slog.String("target", target.Name()),
				slog.Any("error", err))
			continue
		}
		return rows, target.Name(), nil
	}
	return nil, "", noTargetErr(lastErr)
}

// noTargetErr distinguishes "every target failed" from "no targets were ever
// configured", where there is no underlying error to wrap.
func noTargetErr(lastErr error) error {
	if lastErr == nil {
		return errors.New("audit: no targets configured")
	}
	return fmt.Errorf("audit: no target available: %w", lastErr)
}
