package units

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// TemperatureCategory is the one category whose stored factors are
// placeholders: Celsius to Fahrenheit needs an affine formula, not a
// multiplier, so conversion requests against it are refused.
const TemperatureCategory = "Temperature"

// Service manages the unit catalog.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds the catalog service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, shared.ErrInvalidID
	}
	return s.repo.GetCategory(ctx, id)
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error) {
	filters.Clamp()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Unit, error) {
	if id <= 0 {
		return Unit{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Create adds a unit to an existing category after checking catalog
// invariants: symbols are required, factors must be positive outside the
// temperature category, and the base unit of a category carries factor 1.
func (s *Service) Create(ctx context.Context, input CreateUnitInput) (Unit, error) {
	category, err := s.repo.GetCategory(ctx, input.CategoryID)
	if err != nil {
		return Unit{}, err
	}
	unit := Unit{
		CategoryID:     input.CategoryID,
		Name:           strings.TrimSpace(input.Name),
		Symbol:         strings.TrimSpace(input.Symbol),
		System:         input.System,
		Region:         strings.TrimSpace(input.Region),
		ToBaseFactor:   input.ToBaseFactor,
		AlternateNames: strings.TrimSpace(input.AlternateNames),
		IsBase:         input.IsBase,
		IsActive:       true,
		DecimalPlaces:  input.DecimalPlaces,
	}
	if err := s.validate(unit, category); err != nil {
		return Unit{}, err
	}
	return s.repo.Create(ctx, unit)
}

func (s *Service) Update(ctx context.Context, id int64, unit Unit) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	category, err := s.repo.GetCategory(ctx, current.CategoryID)
	if err != nil {
		return err
	}
	unit.IsBase = current.IsBase
	if err := s.validate(unit, category); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, unit)
}

// Deactivate soft-deletes. Referencing business records keep their id and
// resolve it to null from then on.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) CreateAlias(ctx context.Context, alias Alias) (Alias, error) {
	if alias.UnitID <= 0 {
		return Alias{}, shared.ErrInvalidID
	}
	alias.Name = strings.TrimSpace(alias.Name)
	if alias.Name == "" {
		return Alias{}, fmt.Errorf("%w: alias name is required", shared.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, alias.UnitID); err != nil {
		return Alias{}, err
	}
	return s.repo.CreateAlias(ctx, alias)
}

func (s *Service) validate(u Unit, category Category) error {
	if u.Name == "" {
		return fmt.Errorf("%w: unit name is required", shared.ErrValidation)
	}
	if u.Symbol == "" {
		return fmt.Errorf("%w: unit symbol is required", shared.ErrValidation)
	}
	switch u.System {
	case SystemSI, SystemInternational, SystemRegional, SystemImperial, SystemCGS, SystemOther:
	default:
		return fmt.Errorf("%w: unknown unit system %q", shared.ErrValidation, u.System)
	}
	if u.IsBase && !u.ToBaseFactor.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: base unit factor must equal 1", shared.ErrValidation)
	}
	if category.Name != TemperatureCategory && u.ToBaseFactor.Sign() <= 0 {
		return fmt.Errorf("%w: to_base_factor must be positive", shared.ErrValidation)
	}
	return nil
}
