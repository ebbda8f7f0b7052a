package citystore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travliaq/popsync/internal/db"
	"github.com/travliaq/popsync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "popsync_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedCities(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	for _, row := range []struct {
		id, name, cc string
		lat, lon     float64
		pop          any
	}{
		{"c1", "Lyon", "FR", 45.76, 4.84, nil},
		{"c2", "Marseille", "FR", 43.3, 5.37, int64(870731)},
		{"c3", "Ghost", "US", 10.0, 10.0, int64(0)},
	} {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO cities (id, name, country_code, lat, lon, population) VALUES (?, ?, ?, ?, ?, ?)`,
			row.id, row.name, row.cc, row.lat, row.lon, row.pop,
		)
		require.NoError(t, err)
	}
}

func TestSQLiteStore_FetchCities(t *testing.T) {
	s := newTestSQLiteStore(t)
	seedCities(t, s)

	all, err := s.FetchCities(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// only_missing keeps NULL and non-positive populations.
	missing, err := s.FetchCities(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "c1", missing[0].ID)
	assert.Equal(t, "c3", missing[1].ID)
}

func TestSQLiteStore_UpdatePopulations(t *testing.T) {
	s := newTestSQLiteStore(t)
	seedCities(t, s)

	updated, err := s.UpdatePopulations(context.Background(), []db.PopulationUpdate{
		{ID: "c1", Population: 513275},
		{ID: "c3", Population: 1200},
		{ID: "unknown", Population: 5}, // silently affects zero rows
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	missing, err := s.FetchCities(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSQLiteStore_UpdatePopulationsIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	seedCities(t, s)

	updates := []db.PopulationUpdate{{ID: "c1", Population: 513275}}
	for range 2 {
		n, err := s.UpdatePopulations(context.Background(), updates)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}

	all, err := s.FetchCities(context.Background(), false)
	require.NoError(t, err)
	for _, c := range all {
		if c.ID == "c1" {
			require.NotNil(t, c.Population)
			assert.Equal(t, int64(513275), *c.Population)
		}
	}
}

func TestSQLiteStore_RunLog(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	cfg := model.RunConfig{Dataset: "cities15000", RadiusKm: 30, FuzzyThreshold: 0.94, BatchSize: 2000, OnlyMissing: true}
	run, err := s.CreateRun(ctx, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	stats := &model.RunStats{Total: 3, PrimaryMatches: 2, NoMatch: 1, RowsUpdated: 2}
	require.NoError(t, s.FinishRun(ctx, run.ID, model.RunStatusComplete, stats, ""))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, cfg, got.Config)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 2, got.Stats.PrimaryMatches)
	assert.NotNil(t, got.FinishedAt)
	assert.Empty(t, got.Error)
}

func TestSQLiteStore_FinishRunNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.FinishRun(context.Background(), "nope", model.RunStatusFailed, nil, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLiteStore_Coverage(t *testing.T) {
	s := newTestSQLiteStore(t)
	seedCities(t, s)

	cov, err := s.Coverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), cov.Total)
	assert.Equal(t, int64(1), cov.Populated)
	assert.Equal(t, int64(2), cov.Missing)
}

func TestSQLiteStore_CoverageEmpty(t *testing.T) {
	s := newTestSQLiteStore(t)

	cov, err := s.Coverage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cov.Total)
	assert.Zero(t, cov.Missing)
}
