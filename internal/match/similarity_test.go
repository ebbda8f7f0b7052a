package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "lyon", "lyon", 1},
		{"both empty", "", "", 1},
		{"one empty", "lyon", "", 0},
		{"trailing s", "marseilles", "marseille", 1 - 1.0/19},
		{"substitution", "lion", "lyon", 0.75},
		{"unrelated", "lyon", "villeurbanne", 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, Ratio(tt.b, tt.a), 1e-9)
		})
	}
}

func TestRatioThresholdScenarios(t *testing.T) {
	// A single dropped letter on a ten-letter name stays above the
	// strict matching bar; a two-letter rewrite does not.
	assert.GreaterOrEqual(t, Ratio("marseilles", "marseille"), 0.94)
	assert.Less(t, Ratio("lion", "lyon"), 0.94)
}
