package materials

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stitchline-erp/stitchline-erp/internal/audit"
	"github.com/stitchline-erp/stitchline-erp/internal/observability"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
)

// CatalogPort is the slice of the catalog repository used for batched
// cross-partition resolution.
type CatalogPort interface {
	GetDetailsByIDs(ctx context.Context, ids []int64) ([]units.Detail, error)
	GetDetail(ctx context.Context, id int64) (units.Detail, error)
}

// ValidationPort gates unit references before a write.
type ValidationPort interface {
	IsValidUnitID(ctx context.Context, id int64) (bool, error)
}

// AuditPort records unit reference changes. Implementations never fail the
// business operation; the bool reports whether the row landed.
type AuditPort interface {
	Record(ctx context.Context, tableName string, recordID int64, fieldName string, oldUnitID, newUnitID *int64, actor, reason string) bool
}

// Service attaches unit detail to business records and guards their unit
// references on the write path.
type Service struct {
	repo       Repository
	catalog    CatalogPort
	validation ValidationPort
	auditor    AuditPort
	cache      *DetailCache
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewService builds the material service. metrics may be nil.
func NewService(repo Repository, catalog CatalogPort, validation ValidationPort, auditor AuditPort, cache *DetailCache, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewDetailCache(DefaultCacheTTL, metrics)
	}
	return &Service{repo: repo, catalog: catalog, validation: validation, auditor: auditor, cache: cache, logger: logger, metrics: metrics}
}

// GetMaterial loads one material and attaches unit detail. A unit id that no
// longer resolves leaves Unit nil; a dangling reference is not an error.
func (s *Service) GetMaterial(ctx context.Context, id int64) (Material, error) {
	if id <= 0 {
		return Material{}, shared.ErrInvalidID
	}
	m, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, err
	}
	details, err := s.resolveDetails(ctx, []int64{m.UnitID, m.WeightUnitID})
	if err != nil {
		return Material{}, err
	}
	attachMaterial(&m, details)
	return m, nil
}

// ListMaterials loads a page and resolves every referenced unit with at most
// one catalog round trip, regardless of how many records share ids.
func (s *Service) ListMaterials(ctx context.Context, filters shared.ListFilters) ([]Material, int, error) {
	filters.Clamp()
	page, total, err := s.repo.ListMaterials(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]int64, 0, len(page)*2)
	for _, m := range page {
		ids = append(ids, m.UnitID, m.WeightUnitID)
	}
	details, err := s.resolveDetails(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range page {
		attachMaterial(&page[i], details)
	}
	return page, total, nil
}

// CreateMaterial validates unit references synchronously, writes the record,
// and records the initial unit references in the audit trail.
func (s *Service) CreateMaterial(ctx context.Context, input CreateMaterialInput) (Material, error) {
	if err := s.requireValidUnits(ctx, input.UnitID, input.WeightUnitID); err != nil {
		return Material{}, err
	}
	m := Material{
		Code:         strings.TrimSpace(input.Code),
		Name:         strings.TrimSpace(input.Name),
		Description:  strings.TrimSpace(input.Description),
		UnitID:       input.UnitID,
		WeightUnitID: input.WeightUnitID,
	}
	if m.Code == "" || m.Name == "" {
		return Material{}, fmt.Errorf("%w: code and name are required", shared.ErrValidation)
	}
	created, err := s.repo.CreateMaterial(ctx, m)
	if err != nil {
		return Material{}, err
	}
	if created.UnitID > 0 {
		s.auditor.Record(ctx, TableMaterialMaster, created.ID, FieldUnitID, nil, &created.UnitID, input.Actor, audit.ReasonUserUpdate)
	}
	if created.WeightUnitID > 0 {
		s.auditor.Record(ctx, TableMaterialMaster, created.ID, FieldWeightUnitID, nil, &created.WeightUnitID, input.Actor, audit.ReasonUserUpdate)
	}
	return created, nil
}

// UpdateMaterial validates the new unit references before mutating anything;
// a failed validation aborts with no partial write. One audit row is recorded
// per unit field that actually changed.
func (s *Service) UpdateMaterial(ctx context.Context, id int64, input UpdateMaterialInput) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	current, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireValidUnits(ctx, input.UnitID, input.WeightUnitID); err != nil {
		return err
	}
	next := current
	next.Name = strings.TrimSpace(input.Name)
	next.Description = strings.TrimSpace(input.Description)
	next.UnitID = input.UnitID
	next.WeightUnitID = input.WeightUnitID
	if next.Name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if err := s.repo.UpdateMaterial(ctx, id, next); err != nil {
		return err
	}
	s.auditUnitChange(ctx, TableMaterialMaster, id, FieldUnitID, current.UnitID, next.UnitID, input.Actor)
	s.auditUnitChange(ctx, TableMaterialMaster, id, FieldWeightUnitID, current.WeightUnitID, next.WeightUnitID, input.Actor)
	return nil
}

// GetSampleMaterial loads one sample line with both unit projections.
func (s *Service) GetSampleMaterial(ctx context.Context, id int64) (SampleMaterial, error) {
	if id <= 0 {
		return SampleMaterial{}, shared.ErrInvalidID
	}
	sm, err := s.repo.GetSampleMaterial(ctx, id)
	if err != nil {
		return SampleMaterial{}, err
	}
	details, err := s.resolveDetails(ctx, []int64{sm.UnitID, sm.WeightUnitID})
	if err != nil {
		return SampleMaterial{}, err
	}
	attachSampleMaterial(&sm, details)
	return sm, nil
}

// ListSampleMaterials resolves a sample's lines. Both unit fields of every
// line are unioned into the one batched catalog lookup.
func (s *Service) ListSampleMaterials(ctx context.Context, sampleID int64) ([]SampleMaterial, error) {
	if sampleID <= 0 {
		return nil, shared.ErrInvalidID
	}
	lines, err := s.repo.ListSampleMaterials(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(lines)*2)
	for _, sm := range lines {
		ids = append(ids, sm.UnitID, sm.WeightUnitID)
	}
	details, err := s.resolveDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		attachSampleMaterial(&lines[i], details)
	}
	return lines, nil
}

// CreateSampleMaterial mirrors CreateMaterial for sample lines.
func (s *Service) CreateSampleMaterial(ctx context.Context, input CreateSampleMaterialInput) (SampleMaterial, error) {
	if input.SampleID <= 0 {
		return SampleMaterial{}, shared.ErrInvalidID
	}
	if err := s.requireValidUnits(ctx, input.UnitID, input.WeightUnitID); err != nil {
		return SampleMaterial{}, err
	}
	sm := SampleMaterial{
		SampleID:     input.SampleID,
		MaterialName: strings.TrimSpace(input.MaterialName),
		Quantity:     input.Quantity,
		UnitID:       input.UnitID,
		WeightUnitID: input.WeightUnitID,
	}
	if sm.MaterialName == "" {
		return SampleMaterial{}, fmt.Errorf("%w: material name is required", shared.ErrValidation)
	}
	created, err := s.repo.CreateSampleMaterial(ctx, sm)
	if err != nil {
		return SampleMaterial{}, err
	}
	if created.UnitID > 0 {
		s.auditor.Record(ctx, TableSampleMaterials, created.ID, FieldUnitID, nil, &created.UnitID, input.Actor, audit.ReasonUserUpdate)
	}
	if created.WeightUnitID > 0 {
		s.auditor.Record(ctx, TableSampleMaterials, created.ID, FieldWeightUnitID, nil, &created.WeightUnitID, input.Actor, audit.ReasonUserUpdate)
	}
	return created, nil
}

// ConvertSampleQuantity converts a sample line's quantity into another unit
// of the same category, updating quantity and unit reference together and
// tagging the audit row with the conversion context.
func (s *Service) ConvertSampleQuantity(ctx context.Context, id, targetUnitID int64, actor string) (SampleMaterial, error) {
	if id <= 0 || targetUnitID <= 0 {
		return SampleMaterial{}, shared.ErrInvalidID
	}
	current, err := s.repo.GetSampleMaterial(ctx, id)
	if err != nil {
		return SampleMaterial{}, err
	}
	if current.UnitID <= 0 {
		return SampleMaterial{}, fmt.Errorf("%w: sample line has no unit", shared.ErrValidation)
	}
	// The target becomes the line's stored unit reference, so it passes the
	// same gate as any other unit write.
	ok, err := s.validation.IsValidUnitID(ctx, targetUnitID)
	if err != nil {
		return SampleMaterial{}, err
	}
	if !ok {
		return SampleMaterial{}, fmt.Errorf("%w: unit_id %d", shared.ErrUnitInvalid, targetUnitID)
	}
	from, err := s.catalog.GetDetail(ctx, current.UnitID)
	if err != nil {
		return SampleMaterial{}, err
	}
	to, err := s.catalog.GetDetail(ctx, targetUnitID)
	if err != nil {
		return SampleMaterial{}, err
	}
	converted, err := units.Convert(current.Quantity, from, to)
	if err != nil {
		return SampleMaterial{}, err
	}
	next := current
	next.Quantity = units.Round(converted, to)
	next.UnitID = targetUnitID
	if err := s.repo.UpdateSampleMaterial(ctx, id, next); err != nil {
		return SampleMaterial{}, err
	}
	reason := audit.ConversionReason(from.Symbol, to.Symbol, TableSampleMaterials)
	s.auditor.Record(ctx, TableSampleMaterials, id, FieldUnitID, &current.UnitID, &targetUnitID, actor, reason)
	return next, nil
}

// ResetUnitCache clears the shared detail cache, forcing the next resolution
// to hit the catalog. Call after catalog writes.
func (s *Service) ResetUnitCache() {
	s.cache.Reset()
}

// resolveDetails returns projections for every positive id, consulting the
// cache first and issuing at most one catalog query for the misses. Dangling
// ids are simply absent from the result.
func (s *Service) resolveDetails(ctx context.Context, ids []int64) (map[int64]units.Detail, error) {
	hits, misses := s.cache.Split(ids)
	if len(misses) == 0 {
		return hits, nil
	}
	fetched, err := s.catalog.GetDetailsByIDs(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("materials: resolve units: %w", err)
	}
	s.metrics.ObserveCatalogBatchQuery()
	s.cache.Put(fetched)
	for _, d := range fetched {
		hits[d.ID] = d
	}
	if len(fetched) < len(misses) {
		s.logger.Debug("dangling unit references tolerated",
			slog.Int("requested", len(misses)),
			slog.Int("resolved", len(fetched)))
	}
	return hits, nil
}

// requireValidUnits enforces the write-time integrity the missing foreign key
// cannot. UnitID must reference an active unit; WeightUnitID may be 0 but
// must be valid when set.
func (s *Service) requireValidUnits(ctx context.Context, unitID, weightUnitID int64) error {
	ok, err := s.validation.IsValidUnitID(ctx, unitID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unit_id %d", shared.ErrUnitInvalid, unitID)
	}
	if weightUnitID > 0 {
		ok, err := s.validation.IsValidUnitID(ctx, weightUnitID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: weight_unit_id %d", shared.ErrUnitInvalid, weightUnitID)
		}
	}
	return nil
}

func (s *Service) auditUnitChange(ctx context.Context, table string, recordID int64, field string, oldID, newID int64, actor string) {
	if oldID == newID {
		return
	}
	var oldRef, newRef *int64
	if oldID > 0 {
		oldRef = &oldID
	}
	if newID > 0 {
		newRef = &newID
	}
	s.auditor.Record(ctx, table, recordID, field, oldRef, newRef, actor, audit.ReasonUserUpdate)
}

func attachMaterial(m *Material, details map[int64]units.Detail) {
	m.Unit = lookupDetail(details, m.UnitID)
	m.WeightUnit = lookupDetail(details, m.WeightUnitID)
}

func attachSampleMaterial(sm *SampleMaterial, details map[int64]units.Detail) {
	sm.Unit = lookupDetail(details, sm.UnitID)
	sm.WeightUnit = lookupDetail(details, sm.WeightUnitID)
}

func lookupDetail(details map[int64]units.Detail, id int64) *units.Detail {
	if id <= 0 {
		return nil
	}
	if d, ok := details[id]; ok {
		detail := d
		return &detail
	}
	return nil
}
