// Package enrich orchestrates a population reconciliation run: snapshot,
// two-tier matching, batched writes, and the final report.
package enrich

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/travliaq/popsync/internal/db"
	"github.com/travliaq/popsync/internal/match"
)

// PopulationStore is the slice of the store the writer needs.
type PopulationStore interface {
	UpdatePopulations(ctx context.Context, updates []db.PopulationUpdate) (int64, error)
}

// Writer accumulates population updates and commits them in fixed-size
// chunks. Each chunk is one transaction; a failed chunk is retried once
// and then aborts the run, leaving previously committed chunks in place.
// Safe for concurrent Add from matcher workers.
type Writer struct {
	store     PopulationStore
	chunkSize int
	dryRun    bool
	stats     *match.Stats

	mu      sync.Mutex
	pending []db.PopulationUpdate
}

// NewWriter creates a Writer flushing every chunkSize updates.
func NewWriter(store PopulationStore, chunkSize int, dryRun bool, stats *match.Stats) *Writer {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	return &Writer{
		store:     store,
		chunkSize: chunkSize,
		dryRun:    dryRun,
		stats:     stats,
	}
}

// Add queues one update, committing a chunk when the buffer is full.
func (w *Writer) Add(ctx context.Context, u db.PopulationUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, u)
	if len(w.pending) >= w.chunkSize {
		return w.flushLocked(ctx)
	}
	return nil
}

// Flush commits whatever is buffered. Call once after the last Add.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *Writer) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	chunk := w.pending
	w.pending = nil

	if w.dryRun {
		zap.L().Info("dry run: skipping chunk commit", zap.Int("updates", len(chunk)))
		return nil
	}

	// No new chunk starts after cancellation, but once a commit is
	// underway it runs to completion so the transaction is never torn.
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "enrich: chunk not started")
	}
	commitCtx := context.WithoutCancel(ctx)

	n, err := w.store.UpdatePopulations(commitCtx, chunk)
	if err != nil {
		zap.L().Warn("chunk commit failed, retrying once",
			zap.Int("updates", len(chunk)),
			zap.Error(err),
		)
		n, err = w.store.UpdatePopulations(commitCtx, chunk)
		if err != nil {
			return eris.Wrapf(err, "enrich: commit chunk of %d updates", len(chunk))
		}
	}

	w.stats.AddRowsUpdated(n)
	zap.L().Debug("chunk committed", zap.Int("updates", len(chunk)), zap.Int64("rows", n))
	return nil
}
