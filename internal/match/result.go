package match

// Source identifies which tier produced a match.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Result is a resolved population for one city.
type Result struct {
	Population  int64
	Source      Source
	MatchedName string
	DistanceKm  float64
	Similarity  float64
}
