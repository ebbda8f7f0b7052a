package citystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/travliaq/popsync/internal/db"
	"github.com/travliaq/popsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs
// without a Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cities (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	country_code TEXT NOT NULL DEFAULT '',
	lat          REAL NOT NULL,
	lon          REAL NOT NULL,
	population   INTEGER
);

CREATE INDEX IF NOT EXISTS idx_cities_population ON cities(population);
CREATE INDEX IF NOT EXISTS idx_cities_country_code ON cities(country_code);

CREATE TABLE IF NOT EXISTS population_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	config      TEXT NOT NULL,
	stats       TEXT,
	error       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_population_runs_started_at ON population_runs(started_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) FetchCities(ctx context.Context, onlyMissing bool) ([]model.City, error) {
	query := `SELECT id, name, country_code, lat, lon, population FROM cities`
	if onlyMissing {
		query += ` WHERE population IS NULL OR population <= 0`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch cities")
	}
	defer rows.Close() //nolint:errcheck

	var cities []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.Name, &c.CountryCode, &c.Lat, &c.Lon, &c.Population); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan city")
		}
		cities = append(cities, c)
	}
	return cities, eris.Wrap(rows.Err(), "sqlite: iterate cities")
}

// UpdatePopulations applies a chunk of updates in one transaction. SQLite
// has no temp-table speedup worth the trouble; per-row updates inside a
// single transaction keep the chunk atomic.
func (s *SQLiteStore) UpdatePopulations(ctx context.Context, updates []db.PopulationUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin update tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `UPDATE cities SET population = ? WHERE id = ?`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare update")
	}
	defer stmt.Close() //nolint:errcheck

	var updated int64
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.Population, u.ID)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: update city %s", u.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		updated += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit updates")
	}
	return updated, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, cfg model.RunConfig) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal run config")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO population_runs (id, status, config, started_at) VALUES (?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), string(cfgJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Config:    cfg,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr string) error {
	var statsJSON any
	if stats != nil {
		data, err := json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run stats")
		}
		statsJSON = string(data)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE population_runs SET status = ?, stats = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), statsJSON, nilIfEmpty(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("citystore: run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, config, stats, error, started_at, finished_at
		 FROM population_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) Coverage(ctx context.Context) (*Coverage, error) {
	var cov Coverage
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(sum(CASE WHEN population > 0 THEN 1 ELSE 0 END), 0) FROM cities`,
	).Scan(&cov.Total, &cov.Populated)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: coverage")
	}
	cov.Missing = cov.Total - cov.Populated
	return &cov, nil
}
