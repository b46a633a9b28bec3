package materials

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// Repository provides access to the business partition.
type Repository interface {
	GetMaterial(ctx context.Context, id int64) (Material, error)
	ListMaterials(ctx context.Context, filters shared.ListFilters) ([]Material, int, error)
	CreateMaterial(ctx context.Context, m Material) (Material, error)
	UpdateMaterial(ctx context.Context, id int64, m Material) error

	GetSampleMaterial(ctx context.Context, id int64) (SampleMaterial, error)
	ListSampleMaterials(ctx context.Context, sampleID int64) ([]SampleMaterial, error)
	CreateSampleMaterial(ctx context.Context, sm SampleMaterial) (SampleMaterial, error)
	UpdateSampleMaterial(ctx context.Context, id int64, sm SampleMaterial) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the repository on the business partition pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const materialColumns = `id, code, name, COALESCE(description, ''), COALESCE(unit_id, 0), COALESCE(weight_unit_id, 0), created_at, updated_at`

func scanMaterial(row pgx.Row) (Material, error) {
	var m Material
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.UnitID, &m.WeightUnitID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *repository) GetMaterial(ctx context.Context, id int64) (Material, error) {
	m, err := scanMaterial(r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM material_master WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Material{}, shared.ErrNotFound
	}
	if err != nil {
		return Material{}, fmt.Errorf("materials: get %d: %w", id, err)
	}
	return m, nil
}

func (r *repository) ListMaterials(ctx context.Context, filters shared.ListFilters) ([]Material, int, error) {
	query := `SELECT ` + materialColumns + ` FROM material_master WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM material_master WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countQuery += ` AND (name ILIKE $1 OR code ILIKE $1)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("materials: count: %w", err)
	}

	query += ` ORDER BY name`

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("materials: list: %w", err)
	}
	defer rows.Close()

	var result []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("materials: scan: %w", err)
		}
		result = append(result, m)
	}
	return result, total, rows.Err()
}

func (r *repository) CreateMaterial(ctx context.Context, m Material) (Material, error) {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	err := r.pool.QueryRow(ctx, `INSERT INTO material_master (code, name, description, unit_id, weight_unit_id, created_at, updated_at) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, 0), NULLIF($5, 0), $6, $7) RETURNING id`,
		m.Code, m.Name, m.Description, m.UnitID, m.WeightUnitID, m.CreatedAt, m.UpdatedAt).Scan(&m.ID)
	if err != nil {
		return Material{}, fmt.Errorf("materials: create: %w", err)
	}
	return m, nil
}

func (r *repository) UpdateMaterial(ctx context.Context, id int64, m Material) error {
	tag, err := r.pool.Exec(ctx, `UPDATE material_master SET name = $1, description = NULLIF($2, ''), unit_id = NULLIF($3, 0), weight_unit_id = NULLIF($4, 0), updated_at = $5 WHERE id = $6`,
		m.Name, m.Description, m.UnitID, m.WeightUnitID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("materials: update %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const sampleMaterialColumns = `id, sample_id, material_name, quantity, COALESCE(unit_id, 0), COALESCE(weight_unit_id, 0), created_at, updated_at`

func scanSampleMaterial(row pgx.Row) (SampleMaterial, error) {
	var sm SampleMaterial
	err := row.Scan(&sm.ID, &sm.SampleID, &sm.MaterialName, &sm.Quantity, &sm.UnitID, &sm.WeightUnitID, &sm.CreatedAt, &sm.UpdatedAt)
	return sm, err
}

func (r *repository) GetSampleMaterial(ctx context.Context, id int64) (SampleMaterial, error) {
	sm, err := scanSampleMaterial(r.pool.QueryRow(ctx, `SELECT `+sampleMaterialColumns+` FROM sample_required_materials WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return SampleMaterial{}, shared.ErrNotFound
	}
	if err != nil {
		return SampleMaterial{}, fmt.Errorf("materials: get sample line %d: %w", id, err)
	}
	return sm, nil
}

func (r *repository) ListSampleMaterials(ctx context.Context, sampleID int64) ([]SampleMaterial, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sampleMaterialColumns+` FROM sample_required_materials WHERE sample_id = $1 ORDER BY id`, sampleID)
	if err != nil {
		return nil, fmt.Errorf("materials: list sample lines: %w", err)
	}
	defer rows.Close()

	var result []SampleMaterial
	for rows.Next() {
		sm, err := scanSampleMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("materials: scan sample line: %w", err)
		}
		result = append(result, sm)
	}
	return result, rows.Err()
}

func (r *repository) CreateSampleMaterial(ctx context.Context, sm SampleMaterial) (SampleMaterial, error) {
	now := time.Now()
	sm.CreatedAt = now
	sm.UpdatedAt = now
	err := r.pool.QueryRow(ctx, `INSERT INTO sample_required_materials (sample_id, material_name, quantity, unit_id, weight_unit_id, created_at, updated_at) VALUES ($1, $2, $3, NULLIF($4, 0), NULLIF($5, 0), $6, $7) RETURNING id`,
		sm.SampleID, sm.MaterialName, sm.Quantity, sm.UnitID, sm.WeightUnitID, sm.CreatedAt, sm.UpdatedAt).Scan(&sm.ID)
	if err != nil {
		return SampleMaterial{}, fmt.Errorf("materials: create sample line: %w", err)
	}
	return sm, nil
}

func (r *repository) UpdateSampleMaterial(ctx context.Context, id int64, sm SampleMaterial) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sample_required_materials SET material_name = $1, quantity = $2, unit_id = NULLIF($3, 0), weight_unit_id = NULLIF($4, 0), updated_at = $5 WHERE id = $6`,
		sm.MaterialName, sm.Quantity, sm.UnitID, sm.WeightUnitID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("materials: update sample line %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
