package units

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNonLinearUnit is returned when a conversion would multiply by a
// placeholder factor. Temperature units store factor 1 but convert through an
// affine formula the catalog does not model, so the request is refused rather
// than silently wrong.
var ErrNonLinearUnit = errors.New("unit requires non-linear conversion")

// ErrCategoryMismatch is returned when the two units of a conversion belong
// to different categories.
var ErrCategoryMismatch = errors.New("units belong to different categories")

// ToBase converts a value expressed in the given unit into its category's
// base unit: value_base = value * to_base_factor.
func ToBase(value decimal.Decimal, unit Detail) (decimal.Decimal, error) {
	if unit.CategoryName == TemperatureCategory {
		return decimal.Decimal{}, fmt.Errorf("units: %q: %w", unit.Symbol, ErrNonLinearUnit)
	}
	return value.Mul(unit.ToBaseFactor), nil
}

// Convert translates a value between two units of the same category:
// value_target = value_source * (factor_source / factor_target).
func Convert(value decimal.Decimal, from, to Detail) (decimal.Decimal, error) {
	if from.CategoryID != to.CategoryID {
		return decimal.Decimal{}, fmt.Errorf("units: %q -> %q: %w", from.Symbol, to.Symbol, ErrCategoryMismatch)
	}
	if from.CategoryName == TemperatureCategory {
		return decimal.Decimal{}, fmt.Errorf("units: %q -> %q: %w", from.Symbol, to.Symbol, ErrNonLinearUnit)
	}
	if to.ToBaseFactor.Sign() == 0 {
		return decimal.Decimal{}, fmt.Errorf("units: %q has zero factor", to.Symbol)
	}
	return value.Mul(from.ToBaseFactor).Div(to.ToBaseFactor), nil
}

// Round applies the unit's display precision to a converted value.
func Round(value decimal.Decimal, unit Detail) decimal.Decimal {
	return value.Round(int32(unit.DecimalPlaces))
}
