// Package citystore persists the city snapshot, population updates, and
// the run log, with Postgres and SQLite backends.
package citystore

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/travliaq/popsync/internal/config"
	"github.com/travliaq/popsync/internal/db"
	"github.com/travliaq/popsync/internal/model"
)

// Coverage summarizes how much of the snapshot has a usable population.
type Coverage struct {
	Total     int64 `json:"total"`
	Populated int64 `json:"populated"`
	Missing   int64 `json:"missing"`
}

// Store defines the persistence interface for the reconciliation
// pipeline.
type Store interface {
	// Snapshot
	FetchCities(ctx context.Context, onlyMissing bool) ([]model.City, error)
	UpdatePopulations(ctx context.Context, updates []db.PopulationUpdate) (int64, error)

	// Run log
	CreateRun(ctx context.Context, cfg model.RunConfig) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr string) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Monitoring
	Coverage(ctx context.Context) (*Coverage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// NewStore creates a Store for the configured driver.
func NewStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres", "":
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("citystore: unknown driver %q", cfg.Driver)
	}
}
