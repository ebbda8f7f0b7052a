package gazetteer

import (
	"math"
	"sort"
)

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// cellSizeDeg is the side of one index cell in degrees. At 0.1° a cell is
// ~11 km tall, so a 30 km radius query touches a handful of cells instead
// of scanning the full dataset.
const cellSizeDeg = 0.1

// kmPerDegLat is the north-south extent of one degree of latitude.
const kmPerDegLat = EarthRadiusKm * math.Pi / 180

// Record is one populated place from the bulk gazetteer. Name and
// ASCIIName are stored pre-normalized; the raw spellings are never needed
// after loading.
type Record struct {
	Name        string
	ASCIIName   string
	CountryCode string
	Lat         float64
	Lon         float64
	Population  int64
}

// Candidate pairs an index record with its distance to the query point.
type Candidate struct {
	Record     *Record
	DistanceKm float64
}

type cellKey struct {
	lat int32
	lon int32
}

func cellOf(lat, lon float64) cellKey {
	return cellKey{
		lat: int32(math.Floor(lat / cellSizeDeg)),
		lon: int32(math.Floor(lon / cellSizeDeg)),
	}
}

// Index is an immutable spatial index over the gazetteer records. Built
// once per run; concurrent queries are safe because nothing mutates it
// after construction.
type Index struct {
	records []Record
	cells   map[cellKey][]int32
}

// NewIndex buckets the records into fixed-size latitude/longitude cells.
func NewIndex(records []Record) *Index {
	cells := make(map[cellKey][]int32)
	for i := range records {
		key := cellOf(records[i].Lat, records[i].Lon)
		cells[key] = append(cells[key], int32(i))
	}
	return &Index{records: records, cells: cells}
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Query returns all records within radiusKm of the point, optionally
// filtered by country code (empty string disables the filter), ordered by
// distance ascending. A record at exactly radiusKm is included.
func (ix *Index) Query(lat, lon, radiusKm float64, countryCode string) []Candidate {
	if radiusKm <= 0 {
		return nil
	}

	latSpan := radiusKm / kmPerDegLat

	// Longitude degrees shrink with latitude; widen the span accordingly
	// and clamp near the poles where the divisor collapses.
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonSpan := radiusKm / (kmPerDegLat * cosLat)

	// The cell range does not wrap at the antimeridian: a query whose
	// box straddles ±180 misses candidates on the other side.
	minCell := cellOf(lat-latSpan, lon-lonSpan)
	maxCell := cellOf(lat+latSpan, lon+lonSpan)

	var out []Candidate
	for cl := minCell.lat; cl <= maxCell.lat; cl++ {
		for cn := minCell.lon; cn <= maxCell.lon; cn++ {
			for _, idx := range ix.cells[cellKey{lat: cl, lon: cn}] {
				rec := &ix.records[idx]
				if countryCode != "" && rec.CountryCode != countryCode {
					continue
				}
				d := Haversine(lat, lon, rec.Lat, rec.Lon)
				if d <= radiusKm {
					out = append(out, Candidate{Record: rec, DistanceKm: d})
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

// Haversine returns the great-circle distance in kilometers between two
// latitude/longitude points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}
