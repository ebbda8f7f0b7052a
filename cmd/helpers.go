package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/travliaq/popsync/internal/citystore"
	"github.com/travliaq/popsync/internal/enrich"
	"github.com/travliaq/popsync/internal/fetcher"
	"github.com/travliaq/popsync/internal/gazetteer"
	"github.com/travliaq/popsync/internal/model"
	"github.com/travliaq/popsync/pkg/wikidata"
)

// initStore connects the configured backend and applies migrations.
func initStore(ctx context.Context) (citystore.Store, error) {
	st, err := citystore.NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newGazetteerLoader wires the HTTP fetcher to the configured dump.
func newGazetteerLoader() *gazetteer.Loader {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Wikidata.UserAgent,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	return gazetteer.NewLoader(f, cfg.GeoNames.Dataset, cfg.GeoNames.BaseURL, cfg.GeoNames.CacheDir)
}

// newWikidataSource adapts the SPARQL client to the fallback matcher.
func newWikidataSource() *wikidataSource {
	return &wikidataSource{client: wikidata.New(wikidata.Config{
		Endpoint:  cfg.Wikidata.Endpoint,
		UserAgent: cfg.Wikidata.UserAgent,
		MaxQPS:    cfg.Wikidata.MaxQPS,
		Timeout:   time.Duration(cfg.Wikidata.TimeoutSecs) * time.Second,
	})}
}

// runConfig freezes the effective settings into the run log record.
func runConfig(onlyMissing, dryRun bool) model.RunConfig {
	return model.RunConfig{
		Dataset:           cfg.GeoNames.Dataset,
		RadiusKm:          cfg.Match.RadiusKm,
		FallbackRadiusKm:  cfg.Match.FallbackRadiusKm,
		FuzzyThreshold:    cfg.Match.FuzzyThreshold,
		FallbackThreshold: cfg.Match.FallbackThreshold,
		BatchSize:         cfg.Batch.Size,
		OnlyMissing:       onlyMissing,
		DryRun:            dryRun,
	}
}

func engineOptions(onlyMissing, dryRun bool) enrich.Options {
	return enrich.Options{
		RunConfig:       runConfig(onlyMissing, dryRun),
		Workers:         cfg.Match.Workers,
		FallbackWorkers: cfg.Match.FallbackWorkers,
	}
}
