package units

import (
	"strings"

	"github.com/shopspring/decimal"
)

// System tags which measurement system a unit belongs to.
type System string

const (
	SystemSI            System = "SI"
	SystemInternational System = "International"
	SystemRegional      System = "Regional-Traditional"
	SystemImperial      System = "Imperial"
	SystemCGS           System = "CGS"
	SystemOther         System = "Other"
)

// Category groups mutually convertible units around one base unit,
// e.g. Weight with base unit Kilogram.
type Category struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	BaseUnitName   string `json:"base_unit_name"`
	BaseUnitSymbol string `json:"base_unit_symbol"`
	DisplayOrder   int    `json:"display_order"`
	IsActive       bool   `json:"is_active"`
}

// Unit is one measurement unit inside a category. ToBaseFactor is the
// multiplier converting a value in this unit into the category's base unit;
// the base unit itself carries a factor of exactly 1.
type Unit struct {
	ID             int64           `json:"id"`
	CategoryID     int64           `json:"category_id"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	System         System          `json:"unit_type"`
	Region         string          `json:"region,omitempty"`
	ToBaseFactor   decimal.Decimal `json:"to_base_factor"`
	AlternateNames string          `json:"alternate_names,omitempty"`
	IsBase         bool            `json:"is_base"`
	IsActive       bool            `json:"is_active"`
	DecimalPlaces  int             `json:"decimal_places"`
}

// AlternateNameList splits the comma-separated alternate names, dropping
// blanks.
func (u Unit) AlternateNameList() []string {
	if u.AlternateNames == "" {
		return nil
	}
	parts := strings.Split(u.AlternateNames, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// Alias supplies an additional matchable name for a unit beyond its own
// name, symbol and alternate names. Alias names are globally unique.
type Alias struct {
	ID        int64  `json:"id"`
	UnitID    int64  `json:"unit_id"`
	Name      string `json:"alias_name"`
	Symbol    string `json:"alias_symbol,omitempty"`
	Region    string `json:"region,omitempty"`
	Preferred bool   `json:"preferred"`
}

// Detail is the unit projection attached to business records and returned by
// validation. It carries everything a collaborator needs without a second
// catalog round trip.
type Detail struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	CategoryID    int64           `json:"category_id"`
	CategoryName  string          `json:"category_name"`
	System        System          `json:"unit_type"`
	IsBase        bool            `json:"is_base"`
	DecimalPlaces int             `json:"decimal_places"`
	ToBaseFactor  decimal.Decimal `json:"to_base_factor"`
}

// CreateUnitInput carries the writable fields for a new unit.
type CreateUnitInput struct {
	CategoryID     int64           `json:"category_id" validate:"required,gt=0"`
	Name           string          `json:"name" validate:"required"`
	Symbol         string          `json:"symbol" validate:"required"`
	System         System          `json:"unit_type" validate:"required"`
	Region         string          `json:"region"`
	ToBaseFactor   decimal.Decimal `json:"to_base_factor"`
	AlternateNames string          `json:"alternate_names"`
	IsBase         bool            `json:"is_base"`
	DecimalPlaces  int             `json:"decimal_places" validate:"gte=0,lte=10"`
}
