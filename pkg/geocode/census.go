package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBenchmark  = "Public_AR_Current"
)

// CensusProvider resolves addresses via the Census one-line geocoder.
// Free to use; always available.
type CensusProvider struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// CensusOption configures the CensusProvider.
type CensusOption func(*CensusProvider)

// WithCensusHTTPClient sets a custom HTTP client.
func WithCensusHTTPClient(hc *http.Client) CensusOption {
	return func(p *CensusProvider) {
		p.httpClient = hc
	}
}

// WithCensusBaseURL overrides the default API base URL.
func WithCensusBaseURL(u string) CensusOption {
	return func(p *CensusProvider) {
		p.baseURL = u
	}
}

// WithCensusRateLimit sets the requests-per-second limit.
func WithCensusRateLimit(rps float64) CensusOption {
	return func(p *CensusProvider) {
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewCensusProvider creates a Census geocoding provider.
func NewCensusProvider(opts ...CensusOption) *CensusProvider {
	p := &CensusProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    censusOneLineURL,
		limiter:    rate.NewLimiter(10, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *CensusProvider) Name() string { return "census" }

// Available implements Provider.
func (p *CensusProvider) Available() bool { return true }

type censusResponse struct {
	Result struct {
		AddressMatches []censusMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusMatch struct {
	MatchedAddress string `json:"matchedAddress"`
	Coordinates    struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	AddressComponents struct {
		City  string `json:"city"`
		State string `json:"state"`
		Zip   string `json:"zip"`
	} `json:"addressComponents"`
}

// Resolve implements Provider.
func (p *CensusProvider) Resolve(ctx context.Context, address string) (*Location, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census rate limit")
	}

	params := url.Values{
		"address":   {address},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census read body")
	}

	var censusResp censusResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Location{Source: "census"}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	return &Location{
		Locality:   match.AddressComponents.City,
		Region:     match.AddressComponents.State,
		PostalCode: match.AddressComponents.Zip,
		Latitude:   match.Coordinates.Y,
		Longitude:  match.Coordinates.X,
		Formatted:  match.MatchedAddress,
		Precision:  PrecisionRooftop, // Census one-line matches are exact
		Source:     "census",
	}, nil
}
