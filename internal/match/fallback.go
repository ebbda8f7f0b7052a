package match

import (
	"context"

	"github.com/travliaq/popsync/internal/gazetteer"
	"github.com/travliaq/popsync/internal/model"
)

// FallbackCandidate is one population-bearing place returned by an
// external candidate source.
type FallbackCandidate struct {
	Name       string
	Lat        float64
	Lon        float64
	Population int64
}

// CandidateSource supplies fallback candidates near a point, filtered
// to the given ISO country code when non-empty.
type CandidateSource interface {
	Nearby(ctx context.Context, lat, lon, radiusKm float64, countryCode string) ([]FallbackCandidate, error)
}

// Fallback resolves cities the primary tier missed by querying an
// external source. The source's own errors propagate so the caller can
// count them separately from plain no-match outcomes.
type Fallback struct {
	source    CandidateSource
	radiusKm  float64
	threshold float64
}

// NewFallback creates a fallback matcher backed by source.
func NewFallback(source CandidateSource, radiusKm, threshold float64) *Fallback {
	return &Fallback{
		source:    source,
		radiusKm:  radiusKm,
		threshold: threshold,
	}
}

// Match queries the source and picks the best candidate by similarity,
// breaking ties on distance. ok is false when nothing clears the
// threshold; err is non-nil only for source failures.
func (f *Fallback) Match(ctx context.Context, city model.City) (Result, bool, error) {
	name := gazetteer.Normalize(city.Name)
	if name == "" {
		return Result{}, false, nil
	}

	candidates, err := f.source.Nearby(ctx, city.Lat, city.Lon, f.radiusKm, city.CountryCode)
	if err != nil {
		return Result{}, false, err
	}

	best := Result{}
	found := false
	for _, c := range candidates {
		if c.Population <= 0 {
			continue
		}
		cn := gazetteer.Normalize(c.Name)
		score := Ratio(name, cn)
		if score < f.threshold {
			continue
		}
		// The radius bound holds regardless of how the source filtered.
		d := gazetteer.Haversine(city.Lat, city.Lon, c.Lat, c.Lon)
		if d > f.radiusKm {
			continue
		}
		if !found || score > best.Similarity || (score == best.Similarity && d < best.DistanceKm) {
			best = Result{
				Population:  c.Population,
				Source:      SourceFallback,
				MatchedName: cn,
				DistanceKm:  d,
				Similarity:  score,
			}
			found = true
		}
	}
	return best, found, nil
}
