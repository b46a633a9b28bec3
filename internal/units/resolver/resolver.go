// Package resolver matches free-text unit descriptions against the unit
// catalog. It exists to migrate legacy "unit as string" columns into numeric
// unit references, so a miss is an expected outcome, not a failure.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/stitchline-erp/stitchline-erp/internal/observability"
	"github.com/stitchline-erp/stitchline-erp/internal/platform/db"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
	"github.com/stitchline-erp/stitchline-erp/internal/units"
	"github.com/stitchline-erp/stitchline-erp/internal/units/unittext"
)

// CatalogSource is the slice of the catalog repository the resolver needs.
type CatalogSource interface {
	ListActive(ctx context.Context) ([]units.Unit, error)
	ListAliases(ctx context.Context) ([]units.Alias, error)
	Get(ctx context.Context, id int64) (units.Unit, error)
	SearchByNamePattern(ctx context.Context, pattern string) (units.Unit, error)
}

// snapshot is an immutable index over the catalog. Readers always see either
// the previous complete snapshot or the new complete one, never a map under
// construction.
type snapshot struct {
	byTerm  map[string]units.Unit
	aliasID map[string]int64
}

// Resolver turns raw unit text into catalog units. Construct one per process
// and share it; the index is built lazily on first use and only rebuilt after
// ClearCache.
type Resolver struct {
	source  CatalogSource
	logger  *slog.Logger
	metrics *observability.Metrics

	group singleflight.Group
	mu    sync.RWMutex
	snap  *snapshot
}

// New builds a Resolver. metrics may be nil.
func New(source CatalogSource, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, logger: logger, metrics: metrics}
}

// FindUnit resolves raw text to a unit. Strategies run in order and the first
// match wins: direct index hit on the normalised text, index hit on the
// standardised term, alias lookup, then a single live substring query as the
// last resort. A miss returns shared.ErrNotFound.
func (r *Resolver) FindUnit(ctx context.Context, raw string) (units.Unit, error) {
	normalized := unittext.Normalize(raw)
	if normalized == "" {
		return units.Unit{}, shared.ErrNotFound
	}

	snap, err := r.snapshot(ctx)
	if err != nil {
		return units.Unit{}, err
	}

	if unit, ok := snap.byTerm[normalized]; ok {
		r.metrics.ObserveResolverLookup("direct")
		return unit, nil
	}

	standardized := unittext.Standardize(normalized)
	if standardized != normalized {
		if unit, ok := snap.byTerm[standardized]; ok {
			r.metrics.ObserveResolverLookup("standardized")
			return unit, nil
		}
	}

	for _, term := range []string{normalized, standardized} {
		if id, ok := snap.aliasID[term]; ok {
			unit, err := r.source.Get(ctx, id)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					// Alias points at a removed unit; fall through to the slow path.
					break
				}
				return units.Unit{}, classify(err)
			}
			r.metrics.ObserveResolverLookup("alias")
			return unit, nil
		}
	}

	unit, err := r.source.SearchByNamePattern(ctx, normalized)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			r.metrics.ObserveResolverLookup("miss")
			return units.Unit{}, shared.ErrNotFound
		}
		return units.Unit{}, classify(err)
	}
	r.metrics.ObserveResolverLookup("partial")
	return unit, nil
}

// FindUnitID is FindUnit for callers that only need the reference.
func (r *Resolver) FindUnitID(ctx context.Context, raw string) (int64, error) {
	unit, err := r.FindUnit(ctx, raw)
	if err != nil {
		return 0, err
	}
	return unit.ID, nil
}

// ClearCache drops the index. The next lookup rebuilds it from the catalog.
// Call after catalog writes; nothing invalidates the index automatically.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	r.snap = nil
	r.mu.Unlock()
}

func (r *Resolver) snapshot(ctx context.Context) (*snapshot, error) {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	// singleflight collapses concurrent first lookups into one catalog load.
	v, err, _ := r.group.Do("build", func() (interface{}, error) {
		r.mu.RLock()
		existing := r.snap
		r.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		built, err := r.build(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.snap = built
		r.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (r *Resolver) build(ctx context.Context) (*snapshot, error) {
	active, err := r.source.ListActive(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("resolver: load units: %w", err))
	}
	aliases, err := r.source.ListAliases(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("resolver: load aliases: %w", err))
	}

	snap := &snapshot{
		byTerm:  make(map[string]units.Unit, len(active)*3),
		aliasID: make(map[string]int64, len(aliases)),
	}
	for _, unit := range active {
		r.addTerm(snap.byTerm, unit.Symbol, unit)
		r.addTerm(snap.byTerm, unit.Name, unit)
		for _, alt := range unit.AlternateNameList() {
			r.addTerm(snap.byTerm, alt, unit)
		}
	}
	for _, alias := range aliases {
		r.addAlias(snap.aliasID, alias.Name, alias.UnitID)
		r.addAlias(snap.aliasID, alias.Symbol, alias.UnitID)
	}
	r.logger.Debug("unit resolver index built",
		slog.Int("terms", len(snap.byTerm)),
		slog.Int("aliases", len(snap.aliasID)))
	return snap, nil
}

// addTerm keeps the first unit registered for a term so index order (unit id)
// decides collisions deterministically. A collision between different units is
// a catalog data problem and gets logged, not a build failure.
func (r *Resolver) addTerm(index map[string]units.Unit, term string, unit units.Unit) {
	key := strings.ToLower(strings.TrimSpace(term))
	if key == "" {
		return
	}
	if existing, exists := index[key]; exists {
		if existing.ID != unit.ID {
			r.logger.Warn("resolver term collision, keeping first",
				slog.String("term", key),
				slog.Int64("kept_unit_id", existing.ID),
				slog.Int64("dropped_unit_id", unit.ID))
		}
		return
	}
	index[key] = unit
}

func (r *Resolver) addAlias(index map[string]int64, term string, id int64) {
	key := strings.ToLower(strings.TrimSpace(term))
	if key == "" {
		return
	}
	if existing, exists := index[key]; exists {
		if existing != id {
			r.logger.Warn("resolver alias collision, keeping first",
				slog.String("alias", key),
				slog.Int64("kept_unit_id", existing),
				slog.Int64("dropped_unit_id", id))
		}
		return
	}
	index[key] = id
}

func classify(err error) error {
	if db.IsConnectivityError(err) {
		return fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	}
	return err
}
