// Package model holds the shared domain types for the population
// reconciliation pipeline.
package model

// City is one row of the target snapshot: a city whose population may be
// missing. The snapshot is read once at the start of a run and never
// mutated; results are written back by id.
type City struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CountryCode string  `json:"country_code"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Population  *int64  `json:"population,omitempty"`
}

// HasPopulation reports whether the city already carries a usable
// population value.
func (c City) HasPopulation() bool {
	return c.Population != nil && *c.Population > 0
}
