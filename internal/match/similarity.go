package match

import "github.com/xrash/smetrics"

// Ratio scores the similarity of two strings in [0, 1] using the indel
// distance (insertions and deletions cost 1, substitutions 2) over the
// combined length. Inputs are expected to be normalized already, so
// "marseilles" vs "marseille" scores ~0.947 while unrelated names fall
// well below any matching threshold.
//
// The distance is computed over bytes, not runes: for multi-byte names
// that survive normalization the score can differ slightly from a
// character-based ratio, with each rune edit weighted by its encoded
// length on both sides of the fraction.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	d := smetrics.WagnerFischer(a, b, 1, 1, 2)
	return 1 - float64(d)/float64(total)
}
