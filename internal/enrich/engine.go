package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/travliaq/popsync/internal/citystore"
	"github.com/travliaq/popsync/internal/db"
	"github.com/travliaq/popsync/internal/gazetteer"
	"github.com/travliaq/popsync/internal/match"
	"github.com/travliaq/popsync/internal/model"
)

// GazetteerLoader abstracts the dump loader so tests can inject a
// pre-built index.
type GazetteerLoader interface {
	Load(ctx context.Context) (*gazetteer.LoadResult, error)
}

// Options configures one run.
type Options struct {
	model.RunConfig

	Workers         int
	FallbackWorkers int
}

// Engine drives a reconciliation run end to end.
type Engine struct {
	store  citystore.Store
	loader GazetteerLoader
	source match.CandidateSource
	opts   Options
}

// NewEngine assembles an Engine. source may be nil, which disables the
// fallback tier.
func NewEngine(store citystore.Store, loader GazetteerLoader, source match.CandidateSource, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.FallbackWorkers <= 0 {
		opts.FallbackWorkers = 4
	}
	return &Engine{
		store:  store,
		loader: loader,
		source: source,
		opts:   opts,
	}
}

// Run executes the pipeline. A Report is returned on every path that
// reaches the run stage, including failures; err is non-nil when the run
// aborted.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	stats := &match.Stats{}

	run, err := e.store.CreateRun(ctx, e.opts.RunConfig)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("run started",
		zap.String("dataset", e.opts.Dataset),
		zap.Bool("only_missing", e.opts.OnlyMissing),
		zap.Bool("dry_run", e.opts.DryRun),
	)

	report, runErr := e.execute(ctx, run.ID, stats, log)
	report.Duration = time.Since(started)

	status := model.RunStatusComplete
	errText := ""
	if runErr != nil {
		status = model.RunStatusFailed
		errText = runErr.Error()
	}
	report.Status = status
	report.Error = errText

	// Finishing the run log must survive cancellation; partial stats
	// are better than a row stuck in "running".
	finishCtx := context.WithoutCancel(ctx)
	if err := e.store.FinishRun(finishCtx, run.ID, status, &report.Stats, errText); err != nil {
		log.Warn("failed to finalize run log", zap.Error(err))
	}

	return report, runErr
}

func (e *Engine) execute(ctx context.Context, runID string, stats *match.Stats, log *zap.Logger) (*Report, error) {
	report := &Report{RunID: runID}

	cities, err := e.store.FetchCities(ctx, e.opts.OnlyMissing)
	if err != nil {
		report.Stats = stats.Snapshot()
		return report, err
	}
	stats.AddTotal(int64(len(cities)))
	log.Info("snapshot loaded", zap.Int("cities", len(cities)))

	if len(cities) == 0 {
		report.Stats = stats.Snapshot()
		return report, nil
	}

	loaded, err := e.loader.Load(ctx)
	if err != nil {
		report.Stats = stats.Snapshot()
		return report, err
	}
	stats.SetSkippedLines(int64(loaded.Skipped))

	writer := NewWriter(e.store, e.opts.BatchSize, e.opts.DryRun, stats)
	primary := match.NewPrimary(loaded.Index, e.opts.RadiusKm, e.opts.FuzzyThreshold)

	unmatched, err := e.primaryStage(ctx, cities, primary, writer, stats)
	if err != nil {
		report.Stats = stats.Snapshot()
		return report, err
	}
	log.Info("primary stage done",
		zap.Int("matched", len(cities)-len(unmatched)),
		zap.Int("unmatched", len(unmatched)),
	)

	if e.source != nil && len(unmatched) > 0 {
		fallback := match.NewFallback(e.source, e.opts.FallbackRadiusKm, e.opts.FallbackThreshold)
		if err := e.fallbackStage(ctx, unmatched, fallback, writer, stats); err != nil {
			report.Stats = stats.Snapshot()
			return report, err
		}
	} else {
		for range unmatched {
			stats.IncNoMatch()
		}
	}

	if err := writer.Flush(ctx); err != nil {
		report.Stats = stats.Snapshot()
		return report, err
	}

	report.Stats = stats.Snapshot()
	return report, nil
}

// primaryStage matches the snapshot against the gazetteer index and
// returns the cities left for the fallback tier.
func (e *Engine) primaryStage(ctx context.Context, cities []model.City, primary *match.Primary, writer *Writer, stats *match.Stats) ([]model.City, error) {
	var (
		mu        sync.Mutex
		unmatched []model.City
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, city := range cities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, ok := primary.Match(city)
			if !ok {
				mu.Lock()
				unmatched = append(unmatched, city)
				mu.Unlock()
				return nil
			}
			stats.IncPrimary()
			return writer.Add(gctx, db.PopulationUpdate{ID: city.ID, Population: res.Population})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "enrich: primary stage")
	}
	return unmatched, nil
}

// fallbackStage resolves the leftovers against the external source. Per
// city, a source failure counts as an error and the run continues; only
// cancellation or a chunk commit failure stops the stage.
func (e *Engine) fallbackStage(ctx context.Context, cities []model.City, fallback *match.Fallback, writer *Writer, stats *match.Stats) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.FallbackWorkers)

	for _, city := range cities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, ok, err := fallback.Match(gctx, city)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				stats.IncError()
				zap.L().Warn("fallback lookup failed",
					zap.String("city_id", city.ID),
					zap.String("name", city.Name),
					zap.Error(err),
				)
				return nil
			}
			if !ok {
				stats.IncNoMatch()
				return nil
			}
			stats.IncFallback()
			return writer.Add(gctx, db.PopulationUpdate{ID: city.ID, Population: res.Population})
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "enrich: fallback stage")
	}
	return nil
}
