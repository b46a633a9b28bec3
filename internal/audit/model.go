// Package audit keeps the append-only trail of every change to a unit
// reference on a business record. The log is the single source of truth for
// who changed what unit reference and why; rows are never updated or deleted.
package audit

import (
	"fmt"
	"strings"
	"time"
)

// Change reason tags. The change_reason column doubles as a tagged field so
// analytics can group rows without a schema change.
const (
	ReasonUserUpdate = "user_update"

	reasonMigrationMapped   = "migration_from_text"
	reasonMigrationUnmapped = "migration_unmapped"
	reasonConversion        = "conversion"
)

// MigrationMappedReason tags a row recording a successful free-text
// migration: migration_from_text:<raw>.
func MigrationMappedReason(rawText string) string {
	return reasonMigrationMapped + ":" + rawText
}

// MigrationUnmappedReason tags a row for text the resolver could not match.
// These rows are the work queue for manual follow-up.
func MigrationUnmappedReason(rawText string) string {
	return reasonMigrationUnmapped + ":" + rawText
}

// ConversionReason tags a row recording a unit conversion applied to a
// stored value: conversion:<in>-><out>:<context>.
func ConversionReason(fromSymbol, toSymbol, context string) string {
	return fmt.Sprintf("%s:%s->%s:%s", reasonConversion, fromSymbol, toSymbol, context)
}

// ReasonKind strips the tag payload: "migration_from_text:kgs" counts under
// "migration_from_text".
func ReasonKind(reason string) string {
	if i := strings.IndexByte(reason, ':'); i >= 0 {
		return reason[:i]
	}
	return reason
}

// Change is one appended row of the unit change audit log. OldUnitID is nil
// on creation and on unmapped migrations; NewUnitID is nil on deletion and
// failed mappings.
type Change struct {
	ID           int64     `json:"id"`
	TableName    string    `json:"table_name"`
	RecordID     int64     `json:"record_id"`
	FieldName    string    `json:"field_name"`
	OldUnitID    *int64    `json:"old_unit_id"`
	NewUnitID    *int64    `json:"new_unit_id"`
	ChangedBy    string    `json:"changed_by"`
	ChangedAt    time.Time `json:"changed_at"`
	ChangeReason string    `json:"change_reason"`
}

// QueryFilters narrows the audit read path. Zero values mean "any".
type QueryFilters struct {
	TableName string
	RecordID  int64
	FieldName string
	ChangedBy string
	From      time.Time
	To        time.Time
	Page      int
	PageSize  int
}

// PagingInfo describes the served window.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps one page of audit rows, most recent first.
type Result struct {
	Rows   []Change   `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

// Summary aggregates the log for dashboards.
type Summary struct {
	TotalChanges int64            `json:"total_changes"`
	PerTable     map[string]int64 `json:"per_table"`
	PerReason    map[string]int64 `json:"per_reason"`
}
