package match

import (
	"sync/atomic"

	"github.com/travliaq/popsync/internal/model"
)

// Stats accumulates run counters safely across worker goroutines.
// Counters only grow; Snapshot gives a consistent point-in-time view.
type Stats struct {
	total           atomic.Int64
	primaryMatches  atomic.Int64
	fallbackMatches atomic.Int64
	noMatch         atomic.Int64
	errors          atomic.Int64
	rowsUpdated     atomic.Int64
	skippedLines    atomic.Int64
}

func (s *Stats) AddTotal(n int64)        { s.total.Add(n) }
func (s *Stats) IncPrimary()             { s.primaryMatches.Add(1) }
func (s *Stats) IncFallback()            { s.fallbackMatches.Add(1) }
func (s *Stats) IncNoMatch()             { s.noMatch.Add(1) }
func (s *Stats) IncError()               { s.errors.Add(1) }
func (s *Stats) AddRowsUpdated(n int64)  { s.rowsUpdated.Add(n) }
func (s *Stats) SetSkippedLines(n int64) { s.skippedLines.Store(n) }

// Snapshot copies the current counter values into a RunStats.
func (s *Stats) Snapshot() model.RunStats {
	return model.RunStats{
		Total:           int(s.total.Load()),
		PrimaryMatches:  int(s.primaryMatches.Load()),
		FallbackMatches: int(s.fallbackMatches.Load()),
		NoMatch:         int(s.noMatch.Load()),
		Errors:          int(s.errors.Load()),
		RowsUpdated:     int(s.rowsUpdated.Load()),
		SkippedLines:    int(s.skippedLines.Load()),
	}
}
