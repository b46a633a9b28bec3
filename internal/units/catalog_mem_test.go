package units

import (
	"context"
	"strings"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// memCatalog is an in-memory Repository for service and validation tests.
// queries counts storage round trips; failWith makes every call fail.
type memCatalog struct {
	categories map[int64]Category
	units      map[int64]Unit
	aliases    []Alias
	nextID     int64
	queries    int
	failWith   error
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		categories: make(map[int64]Category),
		units:      make(map[int64]Unit),
	}
}

func (m *memCatalog) addCategory(c Category) Category {
	m.nextID++
	c.ID = m.nextID
	m.categories[c.ID] = c
	return c
}

func (m *memCatalog) addUnit(u Unit) Unit {
	m.nextID++
	u.ID = m.nextID
	u.IsActive = true
	m.units[u.ID] = u
	return u
}

func (m *memCatalog) touch() error {
	m.queries++
	return m.failWith
}

func (m *memCatalog) ListCategories(ctx context.Context) ([]Category, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	result := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		result = append(result, c)
	}
	return result, nil
}

func (m *memCatalog) GetCategory(ctx context.Context, id int64) (Category, error) {
	if err := m.touch(); err != nil {
		return Category{}, err
	}
	c, ok := m.categories[id]
	if !ok {
		return Category{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memCatalog) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if err := m.touch(); err != nil {
		return Category{}, err
	}
	return m.addCategory(c), nil
}

func (m *memCatalog) List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error) {
	if err := m.touch(); err != nil {
		return nil, 0, err
	}
	result := make([]Unit, 0, len(m.units))
	for _, u := range m.units {
		result = append(result, u)
	}
	return result, len(result), nil
}

func (m *memCatalog) ListActive(ctx context.Context) ([]Unit, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	var result []Unit
	for _, u := range m.units {
		if u.IsActive {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *memCatalog) Get(ctx context.Context, id int64) (Unit, error) {
	if err := m.touch(); err != nil {
		return Unit{}, err
	}
	u, ok := m.units[id]
	if !ok {
		return Unit{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memCatalog) Create(ctx context.Context, u Unit) (Unit, error) {
	if err := m.touch(); err != nil {
		return Unit{}, err
	}
	return m.addUnit(u), nil
}

func (m *memCatalog) Update(ctx context.Context, id int64, u Unit) error {
	if err := m.touch(); err != nil {
		return err
	}
	if _, ok := m.units[id]; !ok {
		return shared.ErrNotFound
	}
	u.ID = id
	m.units[id] = u
	return nil
}

func (m *memCatalog) Deactivate(ctx context.Context, id int64) error {
	if err := m.touch(); err != nil {
		return err
	}
	u, ok := m.units[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = false
	m.units[id] = u
	return nil
}

func (m *memCatalog) ListAliases(ctx context.Context) ([]Alias, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	result := make([]Alias, len(m.aliases))
	copy(result, m.aliases)
	return result, nil
}

func (m *memCatalog) CreateAlias(ctx context.Context, a Alias) (Alias, error) {
	if err := m.touch(); err != nil {
		return Alias{}, err
	}
	m.nextID++
	a.ID = m.nextID
	m.aliases = append(m.aliases, a)
	return a, nil
}

func (m *memCatalog) SearchByNamePattern(ctx context.Context, pattern string) (Unit, error) {
	if err := m.touch(); err != nil {
		return Unit{}, err
	}
	var best Unit
	found := false
	needle := strings.ToLower(pattern)
	for _, u := range m.units {
		if !u.IsActive || !strings.Contains(strings.ToLower(u.Name), needle) {
			continue
		}
		if !found || len(u.Name) < len(best.Name) || (len(u.Name) == len(best.Name) && u.ID < best.ID) {
			best = u
			found = true
		}
	}
	if !found {
		return Unit{}, shared.ErrNotFound
	}
	return best, nil
}

func (m *memCatalog) detail(u Unit) Detail {
	c := m.categories[u.CategoryID]
	return Detail{
		ID:            u.ID,
		Name:          u.Name,
		Symbol:        u.Symbol,
		CategoryID:    u.CategoryID,
		CategoryName:  c.Name,
		System:        u.System,
		IsBase:        u.IsBase,
		DecimalPlaces: u.DecimalPlaces,
		ToBaseFactor:  u.ToBaseFactor,
	}
}

func (m *memCatalog) GetDetail(ctx context.Context, id int64) (Detail, error) {
	if err := m.touch(); err != nil {
		return Detail{}, err
	}
	u, ok := m.units[id]
	if !ok || !u.IsActive {
		return Detail{}, shared.ErrNotFound
	}
	return m.detail(u), nil
}

func (m *memCatalog) GetDetailsByIDs(ctx context.Context, ids []int64) ([]Detail, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	var result []Detail
	for _, id := range ids {
		if u, ok := m.units[id]; ok && u.IsActive {
			result = append(result, m.detail(u))
		}
	}
	return result, nil
}

func (m *memCatalog) ActiveIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	var active []int64
	for _, id := range ids {
		if u, ok := m.units[id]; ok && u.IsActive {
			active = append(active, id)
		}
	}
	return active, nil
}
