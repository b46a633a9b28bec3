// Package materials serves business records that reference catalog units by
// bare integer id. Materials live in the business partition, units in the
// catalog partition; there is no foreign key between them, so unit references
// are validated at write time and tolerated as dangling at read time.
package materials

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stitchline-erp/stitchline-erp/internal/units"
)

// Material is a row of material_master. UnitID and WeightUnitID are soft
// references into the catalog partition; 0 means "no unit". Unit and
// WeightUnit are attached at read time and are null when the reference no
// longer resolves.
type Material struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	UnitID       int64     `json:"unit_id"`
	WeightUnitID int64     `json:"weight_unit_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Unit       *units.Detail `json:"unit"`
	WeightUnit *units.Detail `json:"weight_unit,omitempty"`
}

// SampleMaterial is a row of sample_required_materials: one material line on
// a sample request, with a quantity unit and an optional weight unit.
type SampleMaterial struct {
	ID           int64           `json:"id"`
	SampleID     int64           `json:"sample_id"`
	MaterialName string          `json:"material_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitID       int64           `json:"unit_id"`
	WeightUnitID int64           `json:"weight_unit_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Unit       *units.Detail `json:"unit"`
	WeightUnit *units.Detail `json:"weight_unit,omitempty"`
}

// CreateMaterialInput carries the writable fields of a material.
type CreateMaterialInput struct {
	Code         string `json:"code" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	UnitID       int64  `json:"unit_id" validate:"gt=0"`
	WeightUnitID int64  `json:"weight_unit_id" validate:"gte=0"`
	Actor        string `json:"-"`
}

// UpdateMaterialInput carries a full-record update.
type UpdateMaterialInput struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	UnitID       int64  `json:"unit_id" validate:"gt=0"`
	WeightUnitID int64  `json:"weight_unit_id" validate:"gte=0"`
	Actor        string `json:"-"`
}

// CreateSampleMaterialInput carries the writable fields of a sample line.
type CreateSampleMaterialInput struct {
	SampleID     int64           `json:"sample_id" validate:"gt=0"`
	MaterialName string          `json:"material_name" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitID       int64           `json:"unit_id" validate:"gt=0"`
	WeightUnitID int64           `json:"weight_unit_id" validate:"gte=0"`
	Actor        string          `json:"-"`
}

// Table and field names recorded in the audit trail.
const (
	TableMaterialMaster  = "material_master"
	TableSampleMaterials = "sample_required_materials"

	FieldUnitID       = "unit_id"
	FieldWeightUnitID = "weight_unit_id"
)
