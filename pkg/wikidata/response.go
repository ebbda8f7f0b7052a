package wikidata

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// sparqlResponse mirrors the SPARQL 1.1 JSON results format, reduced to
// the variables our query selects.
type sparqlResponse struct {
	Results struct {
		Bindings []sparqlBinding `json:"bindings"`
	} `json:"results"`
}

type sparqlBinding struct {
	Place      sparqlValue `json:"place"`
	PlaceLabel sparqlValue `json:"placeLabel"`
	Location   sparqlValue `json:"location"`
	Population sparqlValue `json:"population"`
}

type sparqlValue struct {
	Value string `json:"value"`
}

// parseResults decodes a SPARQL JSON body into candidates. Malformed
// bindings and an unparseable body both degrade to fewer (or zero)
// candidates rather than an error; the endpoint answered, it just had
// nothing usable.
func parseResults(body []byte) (candidates []Candidate, dropped int) {
	var resp sparqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0
	}

	for _, b := range resp.Results.Bindings {
		lon, lat, err := parsePoint(b.Location.Value)
		if err != nil {
			dropped++
			continue
		}
		pop, err := parsePopulation(b.Population.Value)
		if err != nil || pop <= 0 {
			dropped++
			continue
		}
		name := b.PlaceLabel.Value
		if name == "" {
			dropped++
			continue
		}
		candidates = append(candidates, Candidate{
			Item:       b.Place.Value,
			Name:       name,
			Lat:        lat,
			Lon:        lon,
			Population: pop,
		})
	}
	return candidates, dropped
}

// parsePoint decodes a WKT point literal such as "Point(4.846 45.748)".
// Wikidata emits lowercase type names, which the WKT parser does not
// accept, so the literal is uppercased first.
func parsePoint(s string) (lon, lat float64, err error) {
	g, err := wkt.Unmarshal(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return 0, 0, err
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, eris.Errorf("wikidata: geometry %T is not a point", g)
	}
	return p.X(), p.Y(), nil
}

// parsePopulation accepts integer and decimal literals; Wikidata stores
// population as a quantity that occasionally carries a fraction.
func parsePopulation(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
