package units

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stitchline-erp/stitchline-erp/internal/platform/db"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// Validation confirms that bare numeric unit references held by business
// records in other partitions actually point at live catalog units.
type Validation struct {
	repo   Repository
	logger *slog.Logger
}

// NewValidation builds the validation service.
func NewValidation(repo Repository, logger *slog.Logger) *Validation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validation{repo: repo, logger: logger}
}

// IsValidUnitID reports whether id references an existing, active unit.
// Non-positive ids are false without touching storage.
func (v *Validation) IsValidUnitID(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	_, err := v.repo.GetDetail(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, v.classify(err)
	}
	return true, nil
}

// IsValidInCategory reports whether the unit exists, is active, and belongs
// to the named category. The comparison is case-sensitive; a mismatch is a
// false result, not an error, and the actual category is logged for
// diagnostics.
func (v *Validation) IsValidInCategory(ctx context.Context, id int64, categoryName string) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	detail, err := v.repo.GetDetail(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, v.classify(err)
	}
	if detail.CategoryName != categoryName {
		v.logger.Info("unit category mismatch",
			slog.Int64("unit_id", id),
			slog.String("expected", categoryName),
			slog.String("actual", detail.CategoryName))
		return false, nil
	}
	return true, nil
}

// DetailsFor combines the existence check with the attribute projection.
// The boolean is false when the unit does not exist or is inactive.
func (v *Validation) DetailsFor(ctx context.Context, id int64) (bool, Detail, error) {
	if id <= 0 {
		return false, Detail{}, nil
	}
	detail, err := v.repo.GetDetail(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return false, Detail{}, nil
	}
	if err != nil {
		return false, Detail{}, v.classify(err)
	}
	return true, detail, nil
}

// BatchValidate checks many ids in at most one query. Non-positive ids map to
// false up front; ids absent from the result set map to false as well.
func (v *Validation) BatchValidate(ctx context.Context, ids []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(ids))
	var lookup []int64
	for _, id := range ids {
		if id <= 0 {
			result[id] = false
			continue
		}
		if _, seen := result[id]; !seen {
			result[id] = false
			lookup = append(lookup, id)
		}
	}
	if len(lookup) == 0 {
		return result, nil
	}
	active, err := v.repo.ActiveIDs(ctx, lookup)
	if err != nil {
		return nil, v.classify(err)
	}
	for _, id := range active {
		result[id] = true
	}
	return result, nil
}

// classify separates connectivity failures, which callers may retry, from
// all other persistence errors, which surface as internal catalog failures.
func (v *Validation) classify(err error) error {
	if db.IsConnectivityError(err) {
		return fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	}
	return fmt.Errorf("%w: %v", shared.ErrCatalogQuery, err)
}
