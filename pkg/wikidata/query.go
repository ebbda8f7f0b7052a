package wikidata

import (
	"fmt"
	"strings"
)

const resultLimit = 30

// buildQuery assembles the wikibase:around SPARQL query for populated
// places with a population statement near the point. countryCode is
// matched against the country's ISO 3166-1 alpha-2 code when set.
func buildQuery(lat, lon, radiusKm float64, countryCode string) string {
	var b strings.Builder
	b.WriteString("SELECT ?place ?placeLabel ?location ?population WHERE {\n")
	b.WriteString("  SERVICE wikibase:around {\n")
	b.WriteString("    ?place wdt:P625 ?location .\n")
	fmt.Fprintf(&b, "    bd:serviceParam wikibase:center \"Point(%.6f %.6f)\"^^geo:wktLiteral .\n", lon, lat)
	fmt.Fprintf(&b, "    bd:serviceParam wikibase:radius \"%.1f\" .\n", radiusKm)
	b.WriteString("  }\n")
	b.WriteString("  ?place wdt:P1082 ?population .\n")
	if cc := sanitizeCountryCode(countryCode); cc != "" {
		b.WriteString("  ?place wdt:P17 ?country .\n")
		fmt.Fprintf(&b, "  ?country wdt:P297 %q .\n", cc)
	}
	b.WriteString("  SERVICE wikibase:label { bd:serviceParam wikibase:language \"en\" . }\n")
	fmt.Fprintf(&b, "}\nLIMIT %d", resultLimit)
	return b.String()
}

// sanitizeCountryCode keeps only ASCII letters, uppercased, so user
// data can never break out of the query literal.
func sanitizeCountryCode(cc string) string {
	var b strings.Builder
	for _, r := range cc {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return b.String()
}
