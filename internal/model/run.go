package model

import "time"

// RunStatus represents the current state of a reconciliation run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunConfig echoes the configuration a run was started with, so a stored
// run can be interpreted after thresholds or radii change.
type RunConfig struct {
	Dataset           string  `json:"dataset"`
	RadiusKm          float64 `json:"radius_km"`
	FallbackRadiusKm  float64 `json:"fallback_radius_km"`
	FuzzyThreshold    float64 `json:"fuzzy_threshold"`
	FallbackThreshold float64 `json:"fallback_threshold"`
	BatchSize         int     `json:"batch_size"`
	OnlyMissing       bool    `json:"only_missing"`
	DryRun            bool    `json:"dry_run,omitempty"`
}

// RunStats holds the terminal outcome counts for a run. Each city lands in
// exactly one of the four outcome buckets.
type RunStats struct {
	Total           int `json:"total"`
	PrimaryMatches  int `json:"primary_matches"`
	FallbackMatches int `json:"fallback_matches"`
	NoMatch         int `json:"no_match"`
	Errors          int `json:"errors"`
	RowsUpdated     int `json:"rows_updated"`
	SkippedLines    int `json:"skipped_gazetteer_lines,omitempty"`
}

// SuccessRate returns the fraction of cities resolved by either source.
func (s RunStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.PrimaryMatches+s.FallbackMatches) / float64(s.Total)
}

// Run represents a single population reconciliation run.
type Run struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Config     RunConfig  `json:"config"`
	Stats      *RunStats  `json:"stats,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
