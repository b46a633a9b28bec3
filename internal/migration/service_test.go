package migration

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
)

// memRows is the business partition: one table of rows carrying a raw text
// value and a nullable unit reference.
type memRows struct {
	rows map[int64]*legacyRow
}

type legacyRow struct {
	raw    string
	unitID *int64
}

func newMemRows(values ...string) *memRows {
	r := &memRows{rows: make(map[int64]*legacyRow)}
	for i, v := range values {
		r.rows[int64(i+1)] = &legacyRow{raw: v}
	}
	return r
}

func (r *memRows) DistinctValues(ctx context.Context, target Target) ([]string, error) {
	seen := make(map[string]struct{})
	var values []string
	for _, row := range r.rows {
		if row.raw == "" || strings.TrimSpace(row.raw) == "" {
			continue
		}
		if _, dup := seen[row.raw]; dup {
			continue
		}
		seen[row.raw] = struct{}{}
		values = append(values, row.raw)
	}
	return values, nil
}

func (r *memRows) RowsWithValue(ctx context.Context, target Target, raw string) ([]int64, error) {
	var ids []int64
	for id, row := range r.rows {
		if row.raw == raw && row.unitID == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memRows) ApplyUnitToRows(ctx context.Context, target Target, ids []int64, unitID int64) (int64, error) {
	var count int64
	for _, id := range ids {
		row, ok := r.rows[id]
		if !ok || row.unitID != nil {
			continue
		}
		u := unitID
		row.unitID = &u
		count++
	}
	return count, nil
}

// termResolver resolves a fixed spelling table the way the real resolver
// would after normalisation.
type termResolver struct {
	byTerm map[string]int64
	calls  int
}

func (t *termResolver) FindUnit(ctx context.Context, raw string) (units.Unit, error) {
	t.calls++
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if id, ok := t.byTerm[normalized]; ok {
		return units.Unit{ID: id, Name: raw}, nil
	}
	return units.Unit{}, shared.ErrNotFound
}

type migrationAudit struct {
	mapped   []int64
	unmapped []int64
}

func (a *migrationAudit) RecordMigrationMapping(ctx context.Context, tableName string, recordID int64, fieldName, oldText string, newUnitID int64, actor string) bool {
	a.mapped = append(a.mapped, recordID)
	return true
}

func (a *migrationAudit) RecordUnmappedMigration(ctx context.Context, tableName string, recordID int64, fieldName, oldText, actor string) bool {
	a.unmapped = append(a.unmapped, recordID)
	return true
}

func kgResolver() *termResolver {
	return &termResolver{byTerm: map[string]int64{"kg": 1, "pcs": 3}}
}

func materialTarget() Target {
	return Target{Name: "material-unit", Table: "material_master", TextColumn: "unit_name", UnitColumn: "unit_id"}
}

func newTestService(repo Repository, resolver ResolverPort, auditor AuditPort) *Service {
	return NewService(repo, resolver, auditor, []Target{materialTarget()}, nil)
}

func TestStatisticsSuccessRate(t *testing.T) {
	repo := newMemRows("kg", "Kg", "unknown_unit")
	svc := newTestService(repo, kgResolver(), &migrationAudit{})
	ctx := context.Background()

	values, err := svc.DistinctValues(ctx, materialTarget())
	require.NoError(t, err)
	require.Len(t, values, 3)

	stats, err := svc.Statistics(ctx, values)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 2, stats.Mapped)
	require.Equal(t, 1, stats.Unmapped)
	require.InDelta(t, 66.7, stats.SuccessRate, 0.001)
	require.Equal(t, []string{"unknown_unit"}, stats.UnmappedList)
}

func TestBuildMappingResolvesEachValueOnce(t *testing.T) {
	resolver := kgResolver()
	svc := newTestService(newMemRows(), resolver, &migrationAudit{})

	mapping, err := svc.BuildMapping(context.Background(), []string{"kg", "Kg", "pcs", "unknown"})
	require.NoError(t, err)
	require.Equal(t, 4, resolver.calls)

	require.True(t, mapping["kg"].Mapped)
	require.Equal(t, int64(1), mapping["kg"].UnitID)
	require.True(t, mapping["Kg"].Mapped)
	require.False(t, mapping["unknown"].Mapped)
}

func TestApplyMappingWritesAndAudits(t *testing.T) {
	repo := newMemRows("kg", "kg", "unknown_unit")
	auditor := &migrationAudit{}
	svc := newTestService(repo, kgResolver(), auditor)
	ctx := context.Background()

	mapping, err := svc.BuildMapping(ctx, []string{"kg", "unknown_unit"})
	require.NoError(t, err)

	affected, err := svc.ApplyMapping(ctx, materialTarget(), mapping, "amira")
	require.NoError(t, err)
	require.Equal(t, int64(2), affected["kg"])
	require.NotContains(t, affected, "unknown_unit", "unmapped values are never applied")

	require.Len(t, auditor.mapped, 2)
	require.Len(t, auditor.unmapped, 1)

	require.NotNil(t, repo.rows[1].unitID)
	require.Equal(t, int64(1), *repo.rows[1].unitID)
	require.Nil(t, repo.rows[3].unitID, "unknown text keeps its null reference")
}

func TestRunIsIdempotent(t *testing.T) {
	repo := newMemRows("kg", "kg", "unknown_unit")
	auditor := &migrationAudit{}
	svc := newTestService(repo, kgResolver(), auditor)
	ctx := context.Background()

	first, err := svc.Run(ctx, "material-unit", "")
	require.NoError(t, err)
	require.Equal(t, StatusDone, first.Status)
	require.NotEmpty(t, first.RunID)
	require.Equal(t, int64(2), first.RowsPerValue["kg"])

	// Rows already carrying a unit reference are skipped on rerun.
	second, err := svc.Run(ctx, "material-unit", "")
	require.NoError(t, err)
	require.Equal(t, StatusDone, second.Status)
	require.Equal(t, int64(0), second.RowsPerValue["kg"])
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestRunUnknownTarget(t *testing.T) {
	svc := newTestService(newMemRows(), kgResolver(), &migrationAudit{})

	_, err := svc.Run(context.Background(), "payroll", "amira")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Lookup("payroll")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil, Mapping{})
	require.Zero(t, stats.Total)
	require.Zero(t, stats.SuccessRate)
}

func TestDefaultTargetsAreAllowListed(t *testing.T) {
	svc := NewService(newMemRows(), kgResolver(), &migrationAudit{}, DefaultTargets(), nil)

	target, err := svc.Lookup("material-unit")
	require.NoError(t, err)
	require.Equal(t, "material_master", target.Table)

	target, err = svc.Lookup("sample-material-unit")
	require.NoError(t, err)
	require.Equal(t, "sample_required_materials", target.Table)
}
