package match

import (
	"github.com/travliaq/popsync/internal/gazetteer"
	"github.com/travliaq/popsync/internal/model"
)

// Primary resolves cities against the in-memory gazetteer index. An
// exact normalized-name match within the radius always wins, with the
// nearest exact candidate taking precedence. Failing that, the best
// fuzzy candidate at or above the threshold is used; ties on score go
// to the nearer candidate.
type Primary struct {
	index     *gazetteer.Index
	radiusKm  float64
	threshold float64
}

// NewPrimary creates a primary matcher over idx.
func NewPrimary(idx *gazetteer.Index, radiusKm, threshold float64) *Primary {
	return &Primary{
		index:     idx,
		radiusKm:  radiusKm,
		threshold: threshold,
	}
}

// Match looks the city up in the index. ok is false when no candidate
// within the radius clears the bar.
func (p *Primary) Match(city model.City) (Result, bool) {
	name := gazetteer.Normalize(city.Name)
	if name == "" {
		return Result{}, false
	}

	candidates := p.index.Query(city.Lat, city.Lon, p.radiusKm, city.CountryCode)
	if len(candidates) == 0 {
		return Result{}, false
	}

	// Candidates come back nearest-first, so the first exact hit is
	// also the nearest one.
	for _, c := range candidates {
		if c.Record.Name == name || c.Record.ASCIIName == name {
			return Result{
				Population:  c.Record.Population,
				Source:      SourcePrimary,
				MatchedName: c.Record.Name,
				DistanceKm:  c.DistanceKm,
				Similarity:  1,
			}, true
		}
	}

	best := -1
	bestScore := 0.0
	for i, c := range candidates {
		score := Ratio(name, c.Record.Name)
		if s := Ratio(name, c.Record.ASCIIName); s > score {
			score = s
		}
		// Strict improvement only: equal scores keep the earlier,
		// nearer candidate.
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 || bestScore < p.threshold {
		return Result{}, false
	}

	c := candidates[best]
	return Result{
		Population:  c.Record.Population,
		Source:      SourcePrimary,
		MatchedName: c.Record.Name,
		DistanceKm:  c.DistanceKm,
		Similarity:  bestScore,
	}, true
}
