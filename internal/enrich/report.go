package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/travliaq/popsync/internal/model"
)

// Report is the final run summary, produced on every exit path that
// reaches the run stage.
type Report struct {
	RunID    string
	Status   model.RunStatus
	Stats    model.RunStats
	Duration time.Duration
	Error    string
}

// reportDoc is the flat serialized form for --report-out.
type reportDoc struct {
	RunID           string  `json:"run_id" yaml:"run_id"`
	Status          string  `json:"status" yaml:"status"`
	Duration        string  `json:"duration" yaml:"duration"`
	Total           int     `json:"total" yaml:"total"`
	PrimaryMatches  int     `json:"primary_matches" yaml:"primary_matches"`
	FallbackMatches int     `json:"fallback_matches" yaml:"fallback_matches"`
	NoMatch         int     `json:"no_match" yaml:"no_match"`
	Errors          int     `json:"errors" yaml:"errors"`
	RowsUpdated     int     `json:"rows_updated" yaml:"rows_updated"`
	SkippedLines    int     `json:"skipped_gazetteer_lines,omitempty" yaml:"skipped_gazetteer_lines,omitempty"`
	SuccessRate     float64 `json:"success_rate" yaml:"success_rate"`
	Error           string  `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r *Report) doc() reportDoc {
	return reportDoc{
		RunID:           r.RunID,
		Status:          string(r.Status),
		Duration:        r.Duration.Round(time.Millisecond).String(),
		Total:           r.Stats.Total,
		PrimaryMatches:  r.Stats.PrimaryMatches,
		FallbackMatches: r.Stats.FallbackMatches,
		NoMatch:         r.Stats.NoMatch,
		Errors:          r.Stats.Errors,
		RowsUpdated:     r.Stats.RowsUpdated,
		SkippedLines:    r.Stats.SkippedLines,
		SuccessRate:     r.Stats.SuccessRate(),
		Error:           r.Error,
	}
}

// Render formats the report as a human-readable block for the CLI.
func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s (%s)\n", r.RunID, r.Status, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  cities processed:  %d\n", r.Stats.Total)
	fmt.Fprintf(&b, "  primary matches:   %d\n", r.Stats.PrimaryMatches)
	fmt.Fprintf(&b, "  fallback matches:  %d\n", r.Stats.FallbackMatches)
	fmt.Fprintf(&b, "  no match:          %d\n", r.Stats.NoMatch)
	fmt.Fprintf(&b, "  errors:            %d\n", r.Stats.Errors)
	fmt.Fprintf(&b, "  rows updated:      %d\n", r.Stats.RowsUpdated)
	if r.Stats.SkippedLines > 0 {
		fmt.Fprintf(&b, "  skipped gazetteer lines: %d\n", r.Stats.SkippedLines)
	}
	fmt.Fprintf(&b, "  success rate:      %.1f%%\n", r.Stats.SuccessRate()*100)
	if r.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", r.Error)
	}
	return b.String()
}

// Save writes the report to path as json or yaml.
func (r *Report) Save(path, format string) error {
	var data []byte
	var err error

	switch format {
	case "yaml", "yml":
		data, err = yaml.Marshal(r.doc())
	case "json", "":
		data, err = json.MarshalIndent(r.doc(), "", "  ")
	default:
		return eris.Errorf("enrich: unknown report format %q", format)
	}
	if err != nil {
		return eris.Wrap(err, "enrich: marshal report")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "enrich: write report %s", path)
	}
	return nil
}

// LogSummary emits the structured run summary.
func (r *Report) LogSummary() {
	zap.L().Info("run summary",
		zap.String("run_id", r.RunID),
		zap.String("status", string(r.Status)),
		zap.Duration("duration", r.Duration),
		zap.Int("total", r.Stats.Total),
		zap.Int("primary_matches", r.Stats.PrimaryMatches),
		zap.Int("fallback_matches", r.Stats.FallbackMatches),
		zap.Int("no_match", r.Stats.NoMatch),
		zap.Int("errors", r.Stats.Errors),
		zap.Int("rows_updated", r.Stats.RowsUpdated),
		zap.Float64("success_rate", r.Stats.SuccessRate()),
	)
}
