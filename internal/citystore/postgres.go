package citystore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/travliaq/popsync/internal/config"
	"github.com/travliaq/popsync/internal/db"
	"github.com/travliaq/popsync/internal/model"
)

const citiesTable = "cities"

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg config.PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg.MaxConns > 0 {
		maxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		minConns = poolCfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cities (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	country_code TEXT NOT NULL DEFAULT '',
	lat          DOUBLE PRECISION NOT NULL,
	lon          DOUBLE PRECISION NOT NULL,
	population   BIGINT
);

CREATE INDEX IF NOT EXISTS idx_cities_population ON cities(population);
CREATE INDEX IF NOT EXISTS idx_cities_country_code ON cities(country_code);

CREATE TABLE IF NOT EXISTS population_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	config      JSONB NOT NULL,
	stats       JSONB,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_population_runs_started_at ON population_runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FetchCities(ctx context.Context, onlyMissing bool) ([]model.City, error) {
	query := `SELECT id, name, country_code, lat, lon, population FROM cities`
	if onlyMissing {
		query += ` WHERE population IS NULL OR population <= 0`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch cities")
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.Name, &c.CountryCode, &c.Lat, &c.Lon, &c.Population); err != nil {
			return nil, eris.Wrap(err, "postgres: scan city")
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate cities")
	}
	return cities, nil
}

func (s *PostgresStore) UpdatePopulations(ctx context.Context, updates []db.PopulationUpdate) (int64, error) {
	return db.UpdatePopulations(ctx, s.pool, citiesTable, updates)
}

func (s *PostgresStore) CreateRun(ctx context.Context, cfg model.RunConfig) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal run config")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO population_runs (id, status, config, started_at) VALUES ($1, $2, $3, $4)`,
		id, string(model.RunStatusRunning), cfgJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Config:    cfg,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr string) error {
	var statsJSON []byte
	if stats != nil {
		var err error
		statsJSON, err = json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run stats")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE population_runs SET status = $1, stats = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(status), statsJSON, nilIfEmpty(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("citystore: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, status, config, stats, error, started_at, finished_at
		 FROM population_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}
	return runs, nil
}

func (s *PostgresStore) Coverage(ctx context.Context) (*Coverage, error) {
	var cov Coverage
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE population > 0) FROM cities`,
	).Scan(&cov.Total, &cov.Populated)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: coverage")
	}
	cov.Missing = cov.Total - cov.Populated
	return &cov, nil
}

// scanRun decodes one population_runs row from any row scanner.
func scanRun(scan func(dest ...any) error) (model.Run, error) {
	var r model.Run
	var cfgJSON []byte
	var statsJSON *[]byte
	var runErr *string

	if err := scan(&r.ID, &r.Status, &cfgJSON, &statsJSON, &runErr, &r.StartedAt, &r.FinishedAt); err != nil {
		return model.Run{}, eris.Wrap(err, "citystore: scan run")
	}
	if err := json.Unmarshal(cfgJSON, &r.Config); err != nil {
		return model.Run{}, eris.Wrap(err, "citystore: unmarshal run config")
	}
	if statsJSON != nil && len(*statsJSON) > 0 {
		r.Stats = &model.RunStats{}
		if err := json.Unmarshal(*statsJSON, r.Stats); err != nil {
			return model.Run{}, eris.Wrap(err, "citystore: unmarshal run stats")
		}
	}
	if runErr != nil {
		r.Error = *runErr
	}
	return r, nil
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
