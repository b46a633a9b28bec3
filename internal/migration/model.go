// Package migration reconciles legacy free-text unit columns into numeric
// unit references. A run is a pure function of catalog state: re-running
// after partial completion touches only rows whose unit reference is still
// null and reproduces the same mapping decisions.
package migration

import (
	"math"
	"time"
)

// Target names a legacy column pair eligible for remapping. Only allow-listed
// targets can be run; table and column identifiers never come from request
// input unchecked.
type Target struct {
	Name       string `json:"name"`
	Table      string `json:"table"`
	TextColumn string `json:"text_column"`
	UnitColumn string `json:"unit_column"`
}

// DefaultTargets lists the legacy columns shipped with the product schema.
// Both the HTTP server and the worker must agree on this list so a queued run
// names a target the worker can look up.
func DefaultTargets() []Target {
	return []Target{
		{Name: "material-unit", Table: "material_master", TextColumn: "unit_name", UnitColumn: "unit_id"},
		{Name: "sample-material-unit", Table: "sample_required_materials", TextColumn: "unit_name", UnitColumn: "unit_id"},
	}
}

// MappedValue is one mapping decision for a distinct raw value.
type MappedValue struct {
	UnitID int64 `json:"unit_id,omitempty"`
	Mapped bool  `json:"mapped"`
}

// Mapping holds the decision per distinct raw value.
type Mapping map[string]MappedValue

// Stats summarises mapping decisions over a value set.
type Stats struct {
	Total        int      `json:"total"`
	Mapped       int      `json:"mapped"`
	Unmapped     int      `json:"unmapped"`
	SuccessRate  float64  `json:"success_rate"`
	UnmappedList []string `json:"unmapped_list"`
}

// ComputeStats derives statistics from an existing mapping. The success rate
// is a percentage rounded to one decimal place.
func ComputeStats(values []string, mapping Mapping) Stats {
	stats := Stats{Total: len(values)}
	for _, value := range values {
		if decision, ok := mapping[value]; ok && decision.Mapped {
			stats.Mapped++
			continue
		}
		stats.Unmapped++
		stats.UnmappedList = append(stats.UnmappedList, value)
	}
	if stats.Total > 0 {
		stats.SuccessRate = math.Round(float64(stats.Mapped)/float64(stats.Total)*1000) / 10
	}
	return stats
}

// RunStatus values stored for background runs.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// RunReport is the durable outcome of one migration run.
type RunReport struct {
	RunID        string           `json:"run_id"`
	Target       string           `json:"target"`
	Status       string           `json:"status"`
	Stats        Stats            `json:"stats"`
	RowsPerValue map[string]int64 `json:"rows_per_value,omitempty"`
	Error        string           `json:"error,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at,omitempty"`
}
