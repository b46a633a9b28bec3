package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is one candidate audit partition.
type Store interface {
	Name() string
	Insert(ctx context.Context, change Change) error
	Query(ctx context.Context, filters QueryFilters, limit, offset int) ([]Change, error)
	Summary(ctx context.Context, filters QueryFilters) (Summary, error)
}

type pgStore struct {
	name string
	pool *pgxpool.Pool
}

// NewStore builds a Store over one partition's pool. name identifies the
// target in logs and metrics ("primary" / "fallback").
func NewStore(name string, pool *pgxpool.Pool) Store {
	return &pgStore{name: name, pool: pool}
}

func (s *pgStore) Name() string {
	return s.name
}

func (s *pgStore) Insert(ctx context.Context, change Change) error {
	at := change.ChangedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO unit_change_audit (table_name, record_id, field_name, old_unit_id, new_unit_id, changed_by, changed_at, change_reason) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		change.TableName, change.RecordID, change.FieldName, change.OldUnitID, change.NewUnitID, change.ChangedBy, at, change.ChangeReason)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// filterClause builds the shared WHERE tail for Query and Summary.
func filterClause(filters QueryFilters) (string, []interface{}) {
	clause := ` WHERE 1=1`
	args := []interface{}{}
	n := 0
	add := func(cond string, value interface{}) {
		n++
		clause += ` AND ` + cond + `$` + strconv.Itoa(n)
		args = append(args, value)
	}
	if filters.TableName != "" {
		add("table_name = ", filters.TableName)
	}
	if filters.RecordID > 0 {
		add("record_id = ", filters.RecordID)
	}
	if filters.FieldName != "" {
		add("field_name = ", filters.FieldName)
	}
	if filters.ChangedBy != "" {
		add("changed_by = ", filters.ChangedBy)
	}
	if !filters.From.IsZero() {
		add("changed_at >= ", filters.From)
	}
	if !filters.To.IsZero() {
		add("changed_at <= ", filters.To)
	}
	return clause, args
}

func (s *pgStore) Query(ctx context.Context, filters QueryFilters, limit, offset int) ([]Change, error) {
	clause, args := filterClause(filters)
	query := `SELECT id, table_name, record_id, field_name, old_unit_id, new_unit_id, changed_by, changed_at, change_reason FROM unit_change_audit` + clause +
		` ORDER BY changed_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.ID, &c.TableName, &c.RecordID, &c.FieldName, &c.OldUnitID, &c.NewUnitID, &c.ChangedBy, &c.ChangedAt, &c.ChangeReason); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (s *pgStore) Summary(ctx context.Context, filters QueryFilters) (Summary, error) {
	clause, args := filterClause(filters)
	summary := Summary{PerTable: map[string]int64{}, PerReason: map[string]int64{}}

	rows, err := s.pool.Query(ctx, `SELECT table_name, split_part(change_reason, ':', 1), COUNT(*) FROM unit_change_audit`+clause+` GROUP BY 1, 2`, args...)
	if err != nil {
		return Summary{}, fmt.Errorf("audit: summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table, reason string
		var count int64
		if err := rows.Scan(&table, &reason, &count); err != nil {
			return Summary{}, fmt.Errorf("audit: scan summary: %w", err)
		}
		summary.PerTable[table] += count
		summary.PerReason[reason] += count
		summary.TotalChanges += count
	}
	return summary, rows.Err()
}
