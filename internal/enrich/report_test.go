package enrich

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/travliaq/popsync/internal/model"
)

func sampleReport() *Report {
	return &Report{
		RunID:  "run-1",
		Status: model.RunStatusComplete,
		Stats: model.RunStats{
			Total:           100,
			PrimaryMatches:  80,
			FallbackMatches: 10,
			NoMatch:         8,
			Errors:          2,
			RowsUpdated:     90,
			SkippedLines:    4,
		},
		Duration: 90 * time.Second,
	}
}

func TestReportRender(t *testing.T) {
	out := sampleReport().Render()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "primary matches:   80")
	assert.Contains(t, out, "fallback matches:  10")
	assert.Contains(t, out, "success rate:      90.0%")
	assert.Contains(t, out, "skipped gazetteer lines: 4")
	assert.NotContains(t, out, "error:")
}

func TestReportRenderFailed(t *testing.T) {
	r := sampleReport()
	r.Status = model.RunStatusFailed
	r.Error = "chunk commit failed"

	out := r.Render()
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "error: chunk commit failed")
}

func TestReportSaveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, sampleReport().Save(path, "json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, float64(80), doc["primary_matches"])
	assert.Equal(t, 0.9, doc["success_rate"])
	assert.Equal(t, "1m30s", doc["duration"])
}

func TestReportSaveYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, sampleReport().Save(path, "yaml"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc reportDoc
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, 10, doc.FallbackMatches)
	assert.InDelta(t, 0.9, doc.SuccessRate, 1e-9)
}

func TestReportSaveUnknownFormat(t *testing.T) {
	err := sampleReport().Save(filepath.Join(t.TempDir(), "report.xml"), "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown report format")
}
