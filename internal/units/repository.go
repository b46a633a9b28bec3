package units

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// Repository provides access to the unit catalog partition.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)

	List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error)
	ListActive(ctx context.Context) ([]Unit, error)
	Get(ctx context.Context, id int64) (Unit, error)
	Create(ctx context.Context, u Unit) (Unit, error)
	Update(ctx context.Context, id int64, u Unit) error
	Deactivate(ctx context.Context, id int64) error

	ListAliases(ctx context.Context) ([]Alias, error)
	CreateAlias(ctx context.Context, a Alias) (Alias, error)

	SearchByNamePattern(ctx context.Context, pattern string) (Unit, error)
	GetDetail(ctx context.Context, id int64) (Detail, error)
	GetDetailsByIDs(ctx context.Context, ids []int64) ([]Detail, error)
	ActiveIDs(ctx context.Context, ids []int64) ([]int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the catalog repository on the catalog partition pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const unitColumns = `id, category_id, name, symbol, unit_system, COALESCE(region, ''), to_base_factor, COALESCE(alternate_names, ''), is_base, is_active, decimal_places`

const detailColumns = `u.id, u.name, u.symbol, u.category_id, c.name, u.unit_system, u.is_base, u.decimal_places, u.to_base_factor`

// writeErr maps unique constraint failures (duplicate name or symbol in a
// category, second base unit, duplicate alias) onto the shared sentinel so
// the HTTP layer answers 409 instead of 500.
func writeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("units: %s: %s: %w", op, pgErr.ConstraintName, shared.ErrDuplicate)
	}
	return fmt.Errorf("units: %s: %w", op, err)
}

func scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.CategoryID, &u.Name, &u.Symbol, &u.System, &u.Region, &u.ToBaseFactor, &u.AlternateNames, &u.IsBase, &u.IsActive, &u.DecimalPlaces)
	return u, err
}

func scanDetail(row pgx.Row) (Detail, error) {
	var d Detail
	err := row.Scan(&d.ID, &d.Name, &d.Symbol, &d.CategoryID, &d.CategoryName, &d.System, &d.IsBase, &d.DecimalPlaces, &d.ToBaseFactor)
	return d, err
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(description, ''), base_unit_name, base_unit_symbol, display_order, is_active FROM unit_categories ORDER BY display_order, name`)
	if err != nil {
		return nil, fmt.Errorf("units: list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.BaseUnitName, &c.BaseUnitSymbol, &c.DisplayOrder, &c.IsActive); err != nil {
			return nil, fmt.Errorf("units: scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(description, ''), base_unit_name, base_unit_symbol, display_order, is_active FROM unit_categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.BaseUnitName, &c.BaseUnitSymbol, &c.DisplayOrder, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, shared.ErrNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("units: get category %d: %w", id, err)
	}
	return c, nil
}

func (r *repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO unit_categories (name, description, base_unit_name, base_unit_symbol, display_order, is_active) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6) RETURNING id`,
		c.Name, c.Description, c.BaseUnitName, c.BaseUnitSymbol, c.DisplayOrder, c.IsActive).Scan(&c.ID)
	if err != nil {
		return Category{}, writeErr("create category", err)
	}
	return c, nil
}

// List uses a dynamic query because of filter combinations.
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR symbol ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM units WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countQuery += ` AND (name ILIKE $1 OR symbol ILIKE $1)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("units: count: %w", err)
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

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
		return nil, 0, fmt.Errorf("units: list: %w", err)
	}
	defer rows.Close()

	var result []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("units: scan: %w", err)
		}
		result = append(result, u)
	}
	return result, total, rows.Err()
}

func (r *repository) ListActive(ctx context.Context) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+unitColumns+` FROM units WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("units: list active: %w", err)
	}
	defer rows.Close()

	var result []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("units: scan: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Unit, error) {
	u, err := scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, shared.ErrNotFound
	}
	if err != nil {
		return Unit{}, fmt.Errorf("units: get %d: %w", id, err)
	}
	return u, nil
}

func (r *repository) Create(ctx context.Context, u Unit) (Unit, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO units (category_id, name, symbol, unit_system, region, to_base_factor, alternate_names, is_base, is_active, decimal_places) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9, $10) RETURNING id`,
		u.CategoryID, u.Name, u.Symbol, u.System, u.Region, u.ToBaseFactor, u.AlternateNames, u.IsBase, u.IsActive, u.DecimalPlaces).Scan(&u.ID)
	if err != nil {
		return Unit{}, writeErr("create", err)
	}
	return u, nil
}

func (r *repository) Update(ctx context.Context, id int64, u Unit) error {
	tag, err := r.pool.Exec(ctx, `UPDATE units SET name = $1, symbol = $2, unit_system = $3, region = NULLIF($4, ''), to_base_factor = $5, alternate_names = NULLIF($6, ''), decimal_places = $7 WHERE id = $8`,
		u.Name, u.Symbol, u.System, u.Region, u.ToBaseFactor, u.AlternateNames, u.DecimalPlaces, id)
	if err != nil {
		return writeErr(fmt.Sprintf("update %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a unit. Units are never hard-deleted once business
// records may reference them.
func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE units SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("units: deactivate %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListAliases(ctx context.Context) ([]Alias, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, unit_id, alias_name, COALESCE(alias_symbol, ''), COALESCE(region, ''), preferred FROM unit_aliases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("units: list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []Alias
	for rows.Next() {
		var a Alias
		if err := rows.Scan(&a.ID, &a.UnitID, &a.Name, &a.Symbol, &a.Region, &a.Preferred); err != nil {
			return nil, fmt.Errorf("units: scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

func (r *repository) CreateAlias(ctx context.Context, a Alias) (Alias, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO unit_aliases (unit_id, alias_name, alias_symbol, region, preferred) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5) RETURNING id`,
		a.UnitID, a.Name, a.Symbol, a.Region, a.Preferred).Scan(&a.ID)
	if err != nil {
		return Alias{}, writeErr("create alias", err)
	}
	return a, nil
}

// SearchByNamePattern is the resolver's slow path: a case-insensitive
// substring match on active unit names, shortest name first so "gram" beats
// "kilogram" for the input "gram".
func (r *repository) SearchByNamePattern(ctx context.Context, pattern string) (Unit, error) {
	u, err := scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE is_active AND name ILIKE $1 ORDER BY LENGTH(name), id LIMIT 1`, "%"+pattern+"%"))
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, shared.ErrNotFound
	}
	if err != nil {
		return Unit{}, fmt.Errorf("units: search pattern: %w", err)
	}
	return u, nil
}

// GetDetail resolves one active unit. A deactivated unit is gone as far as
// readers are concerned: references to it dangle and resolve to not found.
func (r *repository) GetDetail(ctx context.Context, id int64) (Detail, error) {
	d, err := scanDetail(r.pool.QueryRow(ctx, `SELECT `+detailColumns+` FROM units u JOIN unit_categories c ON c.id = u.category_id WHERE u.id = $1 AND u.is_active`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, shared.ErrNotFound
	}
	if err != nil {
		return Detail{}, fmt.Errorf("units: detail %d: %w", id, err)
	}
	return d, nil
}

// GetDetailsByIDs resolves many unit ids in one round trip. Deactivated units
// are absent from the result, same as ids that never existed.
func (r *repository) GetDetailsByIDs(ctx context.Context, ids []int64) ([]Detail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+detailColumns+` FROM units u JOIN unit_categories c ON c.id = u.category_id WHERE u.id = ANY($1) AND u.is_active`, ids)
	if err != nil {
		return nil, fmt.Errorf("units: details by ids: %w", err)
	}
	defer rows.Close()

	var details []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("units: scan detail: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ActiveIDs returns the subset of ids that exist and are active, in one query.
func (r *repository) ActiveIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM units WHERE is_active AND id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("units: active ids: %w", err)
	}
	defer rows.Close()

	var active []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("units: scan id: %w", err)
		}
		active = append(active, id)
	}
	return active, rows.Err()
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if strings.EqualFold(sortDir, "desc") {
		dir = "DESC"
	}
	switch sortBy {
	case "symbol":
		return "symbol " + dir
	case "category":
		return "category_id " + dir + ", name"
	default:
		return "name " + dir
	}
}
