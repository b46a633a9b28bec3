package materials

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stitchline-erp/stitchline-erp/internal/audit"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
)

type memRepo struct {
	materials map[int64]Material
	samples   map[int64]SampleMaterial
	nextID    int64
}

func newMemRepo() *memRepo {
	return &memRepo{materials: make(map[int64]Material), samples: make(map[int64]SampleMaterial)}
}

func (r *memRepo) GetMaterial(ctx context.Context, id int64) (Material, error) {
	m, ok := r.materials[id]
	if !ok {
		return Material{}, shared.ErrNotFound
	}
	return m, nil
}

func (r *memRepo) ListMaterials(ctx context.Context, filters shared.ListFilters) ([]Material, int, error) {
	result := make([]Material, 0, len(r.materials))
	for _, m := range r.materials {
		result = append(result, m)
	}
	return result, len(result), nil
}

func (r *memRepo) CreateMaterial(ctx context.Context, m Material) (Material, error) {
	r.nextID++
	m.ID = r.nextID
	r.materials[m.ID] = m
	return m, nil
}

func (r *memRepo) UpdateMaterial(ctx context.Context, id int64, m Material) error {
	if _, ok := r.materials[id]; !ok {
		return shared.ErrNotFound
	}
	m.ID = id
	r.materials[id] = m
	return nil
}

func (r *memRepo) GetSampleMaterial(ctx context.Context, id int64) (SampleMaterial, error) {
	sm, ok := r.samples[id]
	if !ok {
		return SampleMaterial{}, shared.ErrNotFound
	}
	return sm, nil
}

func (r *memRepo) ListSampleMaterials(ctx context.Context, sampleID int64) ([]SampleMaterial, error) {
	var result []SampleMaterial
	for _, sm := range r.samples {
		if sm.SampleID == sampleID {
			result = append(result, sm)
		}
	}
	return result, nil
}

func (r *memRepo) CreateSampleMaterial(ctx context.Context, sm SampleMaterial) (SampleMaterial, error) {
	r.nextID++
	sm.ID = r.nextID
	r.samples[sm.ID] = sm
	return sm, nil
}

func (r *memRepo) UpdateSampleMaterial(ctx context.Context, id int64, sm SampleMaterial) error {
	if _, ok := r.samples[id]; !ok {
		return shared.ErrNotFound
	}
	sm.ID = id
	r.samples[id] = sm
	return nil
}

// memCatalog serves unit details from a fixed map and counts batch queries.
// Deactivated ids behave like the real repository: invalid for writes and
// absent from every detail read.
type memCatalog struct {
	details      map[int64]units.Detail
	inactive     map[int64]bool
	batchQueries int
}

func (c *memCatalog) deactivate(id int64) {
	if c.inactive == nil {
		c.inactive = make(map[int64]bool)
	}
	c.inactive[id] = true
}

func (c *memCatalog) GetDetailsByIDs(ctx context.Context, ids []int64) ([]units.Detail, error) {
	c.batchQueries++
	var result []units.Detail
	for _, id := range ids {
		if d, ok := c.details[id]; ok && !c.inactive[id] {
			result = append(result, d)
		}
	}
	return result, nil
}

func (c *memCatalog) GetDetail(ctx context.Context, id int64) (units.Detail, error) {
	if d, ok := c.details[id]; ok && !c.inactive[id] {
		return d, nil
	}
	return units.Detail{}, shared.ErrNotFound
}

func (c *memCatalog) IsValidUnitID(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	_, ok := c.details[id]
	return ok && !c.inactive[id], nil
}

type auditCall struct {
	table  string
	record int64
	field  string
	old    *int64
	new    *int64
	actor  string
	reason string
}

type memAuditor struct {
	calls []auditCall
}

func (a *memAuditor) Record(ctx context.Context, tableName string, recordID int64, fieldName string, oldUnitID, newUnitID *int64, actor, reason string) bool {
	a.calls = append(a.calls, auditCall{table: tableName, record: recordID, field: fieldName, old: oldUnitID, new: newUnitID, actor: actor, reason: reason})
	return true
}

func garmentCatalog() *memCatalog {
	factor := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return &memCatalog{details: map[int64]units.Detail{
		1: {ID: 1, Name: "Kilogram", Symbol: "kg", CategoryID: 1, CategoryName: "Weight", ToBaseFactor: factor("1"), IsBase: true, DecimalPlaces: 3},
		2: {ID: 2, Name: "Gram", Symbol: "g", CategoryID: 1, CategoryName: "Weight", ToBaseFactor: factor("0.001"), DecimalPlaces: 2},
		3: {ID: 3, Name: "Meter", Symbol: "m", CategoryID: 2, CategoryName: "Length", ToBaseFactor: factor("1"), IsBase: true, DecimalPlaces: 3},
		4: {ID: 4, Name: "Piece", Symbol: "pc", CategoryID: 3, CategoryName: "Count", ToBaseFactor: factor("1"), IsBase: true, DecimalPlaces: 0},
	}}
}

func newTestService(t *testing.T) (*Service, *memRepo, *memCatalog, *memAuditor, *DetailCache) {
	t.Helper()
	repo := newMemRepo()
	catalog := garmentCatalog()
	auditor := &memAuditor{}
	cache := NewDetailCache(time.Minute, nil)
	svc := NewService(repo, catalog, catalog, auditor, cache, nil, nil)
	return svc, repo, catalog, auditor, cache
}

func TestListMaterialsBatchesCatalogLookups(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := repo.CreateMaterial(ctx, Material{Code: fmt.Sprintf("M%03d", i), Name: "Cotton", UnitID: 1, WeightUnitID: 2})
		require.NoError(t, err)
	}

	page, total, err := svc.ListMaterials(ctx, shared.ListFilters{})
	require.NoError(t, err)
	require.Equal(t, 10, total)
	require.Len(t, page, 10)
	require.Equal(t, 1, catalog.batchQueries, "shared ids resolve in one query")

	for _, m := range page {
		require.NotNil(t, m.Unit)
		require.Equal(t, "kg", m.Unit.Symbol)
		require.NotNil(t, m.WeightUnit)
		require.Equal(t, "g", m.WeightUnit.Symbol)
	}

	// A second list is served from the cache entirely.
	_, _, err = svc.ListMaterials(ctx, shared.ListFilters{})
	require.NoError(t, err)
	require.Equal(t, 1, catalog.batchQueries)
}

func TestGetMaterialToleratesDanglingUnit(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := repo.CreateMaterial(ctx, Material{Code: "M001", Name: "Cotton", UnitID: 9999})
	require.NoError(t, err)

	got, err := svc.GetMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, got.Unit, "dangling reference resolves to null, not an error")
	require.Equal(t, int64(9999), got.UnitID)
}

func TestGetMaterialNullsDeactivatedUnit(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateMaterial(ctx, CreateMaterialInput{Code: "M001", Name: "Cotton", UnitID: 1, WeightUnitID: 2, Actor: "amira"})
	require.NoError(t, err)

	catalog.deactivate(1)
	svc.ResetUnitCache()

	got, err := repo.GetMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.UnitID, "the stored reference survives deactivation")

	resolved, err := svc.GetMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, resolved.Unit, "a deactivated unit dangles like a deleted one")
	require.NotNil(t, resolved.WeightUnit)
	require.Equal(t, "g", resolved.WeightUnit.Symbol)
}

func TestCreateMaterialValidatesUnits(t *testing.T) {
	svc, _, _, auditor, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateMaterial(ctx, CreateMaterialInput{Code: "M001", Name: "Cotton", UnitID: 9999, Actor: "amira"})
	require.ErrorIs(t, err, shared.ErrUnitInvalid)
	require.Empty(t, auditor.calls, "nothing audited on a rejected write")

	_, err = svc.CreateMaterial(ctx, CreateMaterialInput{Code: "M001", Name: "Cotton", UnitID: 1, WeightUnitID: 9999, Actor: "amira"})
	require.ErrorIs(t, err, shared.ErrUnitInvalid)
}

func TestCreateMaterialAuditsInitialReferences(t *testing.T) {
	svc, _, _, auditor, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateMaterial(ctx, CreateMaterialInput{Code: "M001", Name: "Cotton", UnitID: 1, WeightUnitID: 2, Actor: "amira"})
	require.NoError(t, err)

	require.Len(t, auditor.calls, 2)
	first := auditor.calls[0]
	require.Equal(t, TableMaterialMaster, first.table)
	require.Equal(t, created.ID, first.record)
	require.Equal(t, FieldUnitID, first.field)
	require.Nil(t, first.old)
	require.Equal(t, int64(1), *first.new)
	require.Equal(t, "amira", first.actor)
	require.Equal(t, audit.ReasonUserUpdate, first.reason)
}

func TestUpdateMaterialAuditsChangedUnitOnly(t *testing.T) {
	svc, repo, _, auditor, _ := newTestService(t)
	ctx := context.Background()

	created, err := repo.CreateMaterial(ctx, Material{Code: "M001", Name: "Cotton", UnitID: 1, WeightUnitID: 2})
	require.NoError(t, err)

	err = svc.UpdateMaterial(ctx, created.ID, UpdateMaterialInput{Name: "Cotton Twill", UnitID: 4, WeightUnitID: 2, Actor: "amira"})
	require.NoError(t, err)

	require.Len(t, auditor.calls, 1, "only the changed field gets a row")
	call := auditor.calls[0]
	require.Equal(t, FieldUnitID, call.field)
	require.Equal(t, int64(1), *call.old)
	require.Equal(t, int64(4), *call.new)
	require.Equal(t, audit.ReasonUserUpdate, call.reason)
}

func TestUpdateMaterialNameOnlyProducesNoAuditRows(t *testing.T) {
	svc, repo, _, auditor, _ := newTestService(t)
	ctx := context.Background()

	created, err := repo.CreateMaterial(ctx, Material{Code: "M001", Name: "Cotton", UnitID: 1})
	require.NoError(t, err)

	err = svc.UpdateMaterial(ctx, created.ID, UpdateMaterialInput{Name: "Cotton Poplin", UnitID: 1, Actor: "amira"})
	require.NoError(t, err)
	require.Empty(t, auditor.calls)
}

func TestUpdateMaterialRejectedBeforeMutation(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := repo.CreateMaterial(ctx, Material{Code: "M001", Name: "Cotton", UnitID: 1})
	require.NoError(t, err)

	err = svc.UpdateMaterial(ctx, created.ID, UpdateMaterialInput{Name: "Cotton", UnitID: 9999, Actor: "amira"})
	require.ErrorIs(t, err, shared.ErrUnitInvalid)

	stored, err := repo.GetMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.UnitID, "failed validation leaves the record untouched")
}

func TestConvertSampleQuantity(t *testing.T) {
	svc, repo, _, auditor, _ := newTestService(t)
	ctx := context.Background()

	created, err := repo.CreateSampleMaterial(ctx, SampleMaterial{SampleID: 7, MaterialName: "Lining", Quantity: decimal.NewFromInt(500), UnitID: 2})
	require.NoError(t, err)

	converted, err := svc.ConvertSampleQuantity(ctx, created.ID, 1, "amira")
	require.NoError(t, err)
	require.True(t, converted.Quantity.Equal(decimal.RequireFromString("0.5")), "got %s", converted.Quantity)
	require.Equal(t, int64(1), converted.UnitID)

	require.Len(t, auditor.calls, 1)
	call := auditor.calls[0]
	require.Equal(t, TableSampleMaterials, call.table)
	require.Equal(t, int64(2), *call.old)
	require.Equal(t, int64(1), *call.new)
	require.Equal(t, audit.ConversionReason("g", "kg", TableSampleMaterials), call.reason)
}

func TestConvertSampleQuantityValidatesTargetUnit(t *testing.T) {
	svc, repo, catalog, auditor, _ := newTestService(t)
	ctx := context.Background()

	created, err := repo.CreateSampleMaterial(ctx, SampleMaterial{SampleID: 7, MaterialName: "Lining", Quantity: decimal.NewFromInt(500), UnitID: 2})
	require.NoError(t, err)

	catalog.deactivate(1)

	_, err = svc.ConvertSampleQuantity(ctx, created.ID, 1, "amira")
	require.ErrorIs(t, err, shared.ErrUnitInvalid, "conversion passes the same unit gate as any write")

	stored, err := repo.GetSampleMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stored.UnitID)
	require.True(t, stored.Quantity.Equal(decimal.NewFromInt(500)))
	require.Empty(t, auditor.calls, "nothing audited on a rejected conversion")
}

func TestConvertSampleQuantityCategoryMismatch(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := repo.CreateSampleMaterial(ctx, SampleMaterial{SampleID: 7, MaterialName: "Zipper tape", Quantity: decimal.NewFromInt(3), UnitID: 3})
	require.NoError(t, err)

	_, err = svc.ConvertSampleQuantity(ctx, created.ID, 1, "amira")
	require.ErrorIs(t, err, units.ErrCategoryMismatch)

	stored, err := repo.GetSampleMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), stored.UnitID, "refused conversion mutates nothing")
}

func TestDetailCacheTTLForcesRequery(t *testing.T) {
	repo := newMemRepo()
	catalog := garmentCatalog()
	cache := NewDetailCache(5*time.Minute, nil)

	current := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return current }
	cache.lastReset = current

	svc := NewService(repo, catalog, catalog, &memAuditor{}, cache, nil, nil)
	ctx := context.Background()

	created, err := repo.CreateMaterial(ctx, Material{Code: "M001", Name: "Cotton", UnitID: 1})
	require.NoError(t, err)

	_, err = svc.GetMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, catalog.batchQueries)

	_, err = svc.GetMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, catalog.batchQueries, "within TTL the cache serves")

	current = current.Add(5*time.Minute + time.Second)
	_, err = svc.GetMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 2, catalog.batchQueries, "expired cache forces a fresh catalog read")
}

func TestResetUnitCache(t *testing.T) {
	svc, repo, catalog, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := repo.CreateMaterial(ctx, Material{Code: "M001", Name: "Cotton", UnitID: 1})
	require.NoError(t, err)

	_, err = svc.GetMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, catalog.batchQueries)

	svc.ResetUnitCache()

	_, err = svc.GetMaterial(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 2, catalog.batchQueries)
}

func TestListSampleMaterials(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.CreateSampleMaterial(ctx, SampleMaterial{SampleID: 7, MaterialName: fmt.Sprintf("Trim %d", i), Quantity: decimal.NewFromInt(int64(i + 1)), UnitID: 4})
		require.NoError(t, err)
	}
	_, err := repo.CreateSampleMaterial(ctx, SampleMaterial{SampleID: 8, MaterialName: "Other", Quantity: decimal.NewFromInt(1), UnitID: 4})
	require.NoError(t, err)

	lines, err := svc.ListSampleMaterials(ctx, 7)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	for _, line := range lines {
		require.NotNil(t, line.Unit)
		require.Equal(t, "pc", line.Unit.Symbol)
	}
}
