package citystore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travliaq/popsync/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_FetchCities_OnlyMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	pop := int64(513275)
	mock.ExpectQuery(`SELECT id, name, country_code, lat, lon, population FROM cities WHERE population IS NULL OR population <= 0`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "country_code", "lat", "lon", "population"}).
			AddRow("c1", "Lyon", "FR", 45.76, 4.84, (*int64)(nil)).
			AddRow("c2", "Marseille", "FR", 43.3, 5.37, &pop))

	cities, err := s.FetchCities(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "Lyon", cities[0].Name)
	assert.Nil(t, cities[0].Population)
	require.NotNil(t, cities[1].Population)
	assert.Equal(t, pop, *cities[1].Population)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchCities_All(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, country_code, lat, lon, population FROM cities ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "country_code", "lat", "lon", "population"}))

	cities, err := s.FetchCities(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, cities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO population_runs`).
		WithArgs(pgxmock.AnyArg(), "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	cfg := model.RunConfig{Dataset: "cities15000", RadiusKm: 30, BatchSize: 2000}
	run, err := s.CreateRun(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Equal(t, cfg, run.Config)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE population_runs SET status`).
		WithArgs("complete", pgxmock.AnyArg(), nil, pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	stats := &model.RunStats{Total: 10, PrimaryMatches: 8}
	err := s.FinishRun(context.Background(), "run-1", model.RunStatusComplete, stats, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE population_runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "boom", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), "missing", model.RunStatusFailed, nil, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cfgJSON, err := json.Marshal(model.RunConfig{Dataset: "cities15000"})
	require.NoError(t, err)
	statsJSON, err := json.Marshal(model.RunStats{Total: 5, PrimaryMatches: 4})
	require.NoError(t, err)

	started := time.Now().UTC().Add(-time.Hour)
	finished := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, status, config, stats, error, started_at, finished_at`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "config", "stats", "error", "started_at", "finished_at"}).
			AddRow("run-2", "complete", cfgJSON, &statsJSON, (*string)(nil), started, &finished).
			AddRow("run-1", "failed", cfgJSON, (*[]byte)(nil), ptr("endpoint down"), started, (*time.Time)(nil)))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].Stats)
	assert.Equal(t, 5, runs[0].Stats.Total)
	require.NotNil(t, runs[0].FinishedAt)

	assert.Equal(t, model.RunStatusFailed, runs[1].Status)
	assert.Nil(t, runs[1].Stats)
	assert.Equal(t, "endpoint down", runs[1].Error)
	assert.Nil(t, runs[1].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Coverage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\), count\(\*\) FILTER`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "populated"}).AddRow(int64(100), int64(73)))

	cov, err := s.Coverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), cov.Total)
	assert.Equal(t, int64(73), cov.Populated)
	assert.Equal(t, int64(27), cov.Missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS cities`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T { return &v }
