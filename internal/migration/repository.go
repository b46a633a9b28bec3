package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the remapping SQL against the business partition.
type Repository interface {
	DistinctValues(ctx context.Context, target Target) ([]string, error)
	RowsWithValue(ctx context.Context, target Target, raw string) ([]int64, error)
	ApplyUnitToRows(ctx context.Context, target Target, ids []int64, unitID int64) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the migration repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// DistinctValues returns unique non-null, non-blank raw values in one query.
func (r *repository) DistinctValues(ctx context.Context, target Target) ([]string, error) {
	table := pgx.Identifier{target.Table}.Sanitize()
	column := pgx.Identifier{target.TextColumn}.Sanitize()
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND btrim(%s) <> '' ORDER BY 1`, column, table, column, column)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("migration: distinct values: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("migration: scan value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// RowsWithValue returns ids of rows still carrying the raw text with no unit
// reference set. Scoping to NULL unit references is what makes a rerun
// idempotent.
func (r *repository) RowsWithValue(ctx context.Context, target Target, raw string) ([]int64, error) {
	table := pgx.Identifier{target.Table}.Sanitize()
	textCol := pgx.Identifier{target.TextColumn}.Sanitize()
	unitCol := pgx.Identifier{target.UnitColumn}.Sanitize()
	query := fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1 AND %s IS NULL ORDER BY id`, table, textCol, unitCol)

	rows, err := r.pool.Query(ctx, query, raw)
	if err != nil {
		return nil, fmt.Errorf("migration: rows for value: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("migration: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ApplyUnitToRows sets the unit reference on the given rows in one statement,
// still guarded by the NULL check in case of a concurrent run.
func (r *repository) ApplyUnitToRows(ctx context.Context, target Target, ids []int64, unitID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	table := pgx.Identifier{target.Table}.Sanitize()
	unitCol := pgx.Identifier{target.UnitColumn}.Sanitize()
	query := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE id = ANY($2) AND %s IS NULL`, table, unitCol, unitCol)

	tag, err := r.pool.Exec(ctx, query, unitID, ids)
	if err != nil {
		return 0, fmt.Errorf("migration: apply mapping: %w", err)
	}
	return tag.RowsAffected(), nil
}
