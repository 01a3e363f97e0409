package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleProvider resolves addresses via the Google Geocoding API.
// Skipped when no API key is configured.
type GoogleProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GoogleOption configures the GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) {
		p.httpClient = hc
	}
}

// WithGoogleBaseURL overrides the default API base URL.
func WithGoogleBaseURL(u string) GoogleOption {
	return func(p *GoogleProvider) {
		p.baseURL = u
	}
}

// NewGoogleProvider creates a Google geocoding provider.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		apiKey:     apiKey,
		baseURL:    googleGeocodeURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

type googleResponse struct {
	Status  string         `json:"status"`
	Results []googleResult `json:"results"`
}

type googleResult struct {
	FormattedAddress  string            `json:"formatted_address"`
	AddressComponents []googleComponent `json:"address_components"`
	Geometry          struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
}

type googleComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Resolve implements Provider.
func (p *GoogleProvider) Resolve(ctx context.Context, address string) (*Location, error) {
	params := url.Values{
		"address": {address},
		"key":     {p.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d: %s", resp.StatusCode, string(body))
	}

	var googleResp googleResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	if googleResp.Status != "OK" || len(googleResp.Results) == 0 {
		return &Location{Source: "google"}, nil
	}

	r := googleResp.Results[0]
	loc := &Location{
		Latitude:  r.Geometry.Location.Lat,
		Longitude: r.Geometry.Location.Lng,
		Formatted: r.FormattedAddress,
		Precision: googlePrecision(r.Geometry.LocationType),
		Source:    "google",
	}
	for _, comp := range r.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "locality":
				loc.Locality = comp.LongName
			case "administrative_area_level_1":
				loc.Region = comp.ShortName
			case "postal_code":
				loc.PostalCode = comp.ShortName
			case "route":
				loc.Street = comp.LongName
			}
		}
	}
	return loc, nil
}

// googlePrecision maps Google location_type values onto Precision tiers.
func googlePrecision(locationType string) Precision {
	switch locationType {
	case "ROOFTOP":
		return PrecisionRooftop
	case "RANGE_INTERPOLATED":
		return PrecisionRange
	case "GEOMETRIC_CENTER":
		return PrecisionCentroid
	default:
		return PrecisionApproximate
	}
}
