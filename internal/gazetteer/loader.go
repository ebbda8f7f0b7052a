package gazetteer

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/travliaq/popsync/internal/fetcher"
)

// GeoNames dump columns (tab-separated, 19 fields per line).
const (
	colName         = 1
	colASCIIName    = 2
	colLat          = 4
	colLon          = 5
	colFeatureClass = 6
	colCountryCode  = 8
	colPopulation   = 14

	minFields = 15
)

// Loader downloads and parses a GeoNames dump into a spatial Index. The
// ZIP is cached on disk and only downloaded when absent.
type Loader struct {
	fetcher  *fetcher.HTTPFetcher
	dataset  string
	baseURL  string
	cacheDir string
}

// NewLoader creates a Loader for the given dataset (e.g. "cities15000").
func NewLoader(f *fetcher.HTTPFetcher, dataset, baseURL, cacheDir string) *Loader {
	return &Loader{
		fetcher:  f,
		dataset:  dataset,
		baseURL:  baseURL,
		cacheDir: cacheDir,
	}
}

// LoadResult holds the built index plus parse bookkeeping.
type LoadResult struct {
	Index   *Index
	Records int
	Skipped int
}

// Load obtains the dump (cache or download), parses it, and builds the
// index. A download or archive failure is fatal to the run; individual
// malformed lines are skipped and counted.
func (l *Loader) Load(ctx context.Context) (*LoadResult, error) {
	txtPath, err := l.ensureDump(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(txtPath)
	if err != nil {
		return nil, eris.Wrapf(err, "gazetteer: open dump %s", txtPath)
	}
	defer f.Close() //nolint:errcheck

	records, skipped, err := ParseDump(f)
	if err != nil {
		return nil, err
	}

	zap.L().Info("gazetteer loaded",
		zap.String("dataset", l.dataset),
		zap.Int("records", len(records)),
		zap.Int("skipped_lines", skipped),
	)

	return &LoadResult{
		Index:   NewIndex(records),
		Records: len(records),
		Skipped: skipped,
	}, nil
}

// ensureDump returns the path to the extracted .txt dump, downloading and
// extracting the ZIP if it is not already cached.
func (l *Loader) ensureDump(ctx context.Context) (string, error) {
	if err := os.MkdirAll(l.cacheDir, 0o755); err != nil {
		return "", eris.Wrap(err, "gazetteer: create cache dir")
	}

	txtPath := filepath.Join(l.cacheDir, l.dataset+".txt")
	if _, err := os.Stat(txtPath); err == nil {
		zap.L().Debug("gazetteer dump cached", zap.String("path", txtPath))
		return txtPath, nil
	}

	zipPath := filepath.Join(l.cacheDir, l.dataset+".zip")
	if _, err := os.Stat(zipPath); err != nil {
		url := l.baseURL + "/" + l.dataset + ".zip"
		zap.L().Info("downloading gazetteer dump", zap.String("url", url))
		n, err := l.fetcher.DownloadToFile(ctx, url, zipPath)
		if err != nil {
			// Leave no truncated archive behind for the next run.
			_ = os.Remove(zipPath)
			return "", eris.Wrapf(err, "gazetteer: download %s", url)
		}
		zap.L().Info("gazetteer dump downloaded", zap.Int64("bytes", n))
	}

	extracted, err := fetcher.ExtractZIPFile(zipPath, l.dataset+".txt", l.cacheDir)
	if err != nil {
		extracted, err = fetcher.ExtractZIPSuffix(zipPath, ".txt", l.cacheDir)
		if err != nil {
			return "", eris.Wrapf(err, "gazetteer: extract %s", zipPath)
		}
	}
	return extracted, nil
}

// ParseDump reads tab-separated GeoNames records, keeping populated
// places (feature class P) with a positive population. Names are
// normalized at parse time. Malformed lines are counted, not fatal.
func ParseDump(r io.Reader) ([]Record, int, error) {
	var records []Record
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		rec, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		if rec.Population <= 0 {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, eris.Wrap(err, "gazetteer: read dump")
	}

	return records, skipped, nil
}

// parseLine parses one dump line. ok is false when the line is malformed;
// non-P features parse fine but come back with Population 0 so the caller
// drops them without counting them as errors.
func parseLine(line string) (Record, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < minFields {
		return Record{}, false
	}

	lat, err := strconv.ParseFloat(fields[colLat], 64)
	if err != nil {
		return Record{}, false
	}
	lon, err := strconv.ParseFloat(fields[colLon], 64)
	if err != nil {
		return Record{}, false
	}

	if fields[colFeatureClass] != "P" {
		return Record{}, true
	}

	pop, err := strconv.ParseInt(fields[colPopulation], 10, 64)
	if err != nil {
		pop = 0
	}

	return Record{
		Name:        Normalize(fields[colName]),
		ASCIIName:   Normalize(fields[colASCIIName]),
		CountryCode: fields[colCountryCode],
		Lat:         lat,
		Lon:         lon,
		Population:  pop,
	}, true
}
