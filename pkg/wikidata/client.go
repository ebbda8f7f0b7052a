// Package wikidata queries the Wikidata SPARQL endpoint for populated
// places near a coordinate, used as the fallback population source.
package wikidata

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/travliaq/popsync/internal/resilience"
)

const defaultEndpoint = "https://query.wikidata.org/sparql"

// maxRadiusKm caps the wikibase:around radius; the query service rejects
// very large circles and anything beyond this is useless for city
// disambiguation anyway.
const maxRadiusKm = 50.0

// Config holds client settings. Zero values get sensible defaults.
type Config struct {
	Endpoint  string
	UserAgent string
	MaxQPS    float64
	Timeout   time.Duration
	Retry     resilience.RetryConfig
}

// Client is a rate-limited SPARQL client. A single Client is meant to be
// shared by all fallback workers so the QPS cap applies globally.
type Client struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// Candidate is one population-bearing place returned by the endpoint.
type Candidate struct {
	Item       string
	Name       string
	Lat        float64
	Lon        float64
	Population int64
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.MaxQPS <= 0 {
		cfg.MaxQPS = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = resilience.DefaultRetryConfig()
		retry.OnRetry = resilience.RetryLogger("wikidata", "sparql")
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Limit(cfg.MaxQPS), 1),
		retry:      retry,
	}
}

// CitiesNear returns population-bearing places within radiusKm of the
// point, restricted to countryCode when non-empty. Transient endpoint
// failures are retried; an empty result set is not an error.
func (c *Client) CitiesNear(ctx context.Context, lat, lon, radiusKm float64, countryCode string) ([]Candidate, error) {
	if radiusKm <= 0 || radiusKm > maxRadiusKm {
		radiusKm = maxRadiusKm
	}
	query := buildQuery(lat, lon, radiusKm, countryCode)

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.execute(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	candidates, dropped := parseResults(body)
	if dropped > 0 {
		zap.L().Debug("wikidata: dropped malformed bindings",
			zap.Int("dropped", dropped),
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
		)
	}
	return candidates, nil
}

// execute performs one SPARQL GET. Rate-limit waiting happens per
// attempt so retries also respect the QPS cap.
func (c *Client) execute(ctx context.Context, query string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "wikidata: rate limit wait")
	}

	params := url.Values{
		"query":  {query},
		"format": {"json"},
	}
	reqURL := c.endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: build request")
	}
	req.Header.Set("Accept", "application/sparql-results+json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "wikidata: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("wikidata: endpoint returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "wikidata: read body"), 0)
	}
	return body, nil
}
