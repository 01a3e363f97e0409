// Package places wraps the Google Places nearby-search API as a
// business-directory provider for neighborhood context lookups.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// Client performs nearby business searches. Each call is independently
// paced by the client's limiter.
type Client interface {
	Nearby(ctx context.Context, lat, lng float64, radiusMeters int, category string) ([]Business, error)
}

// Business is a single directory listing near a coordinate.
type Business struct {
	Name           string  `json:"name"`
	Rating         float64 `json:"rating"`
	ReviewCount    int     `json:"review_count"`
	PriceTier      int     `json:"price_tier"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second pacing guard.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(2, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type nearbyRequest struct {
	IncludedTypes       []string `json:"includedTypes"`
	MaxResultCount      int      `json:"maxResultCount"`
	LocationRestriction struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type nearbyResponse struct {
	Places []struct {
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		Rating          float64 `json:"rating"`
		UserRatingCount int     `json:"userRatingCount"`
		PriceLevel      string  `json:"priceLevel"`
		Location        struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
	} `json:"places"`
}

// Nearby implements Client.
func (c *httpClient) Nearby(ctx context.Context, lat, lng float64, radiusMeters int, category string) ([]Business, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limit")
	}

	var req nearbyRequest
	req.IncludedTypes = []string{category}
	req.MaxResultCount = 20
	req.LocationRestriction.Circle.Center.Latitude = lat
	req.LocationRestriction.Circle.Center.Longitude = lng
	req.LocationRestriction.Circle.Radius = float64(radiusMeters)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchNearby", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", "places.displayName,places.rating,places.userRatingCount,places.priceLevel,places.location")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var nearby nearbyResponse
	if err := json.Unmarshal(respBody, &nearby); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	businesses := make([]Business, 0, len(nearby.Places))
	for _, p := range nearby.Places {
		businesses = append(businesses, Business{
			Name:           p.DisplayName.Text,
			Rating:         p.Rating,
			ReviewCount:    p.UserRatingCount,
			PriceTier:      priceTier(p.PriceLevel),
			DistanceMeters: haversineMeters(lat, lng, p.Location.Latitude, p.Location.Longitude),
		})
	}
	return businesses, nil
}

// priceTier maps the API's price level enum onto a 0-4 tier.
func priceTier(level string) int {
	switch level {
	case "PRICE_LEVEL_FREE":
		return 0
	case "PRICE_LEVEL_INEXPENSIVE":
		return 1
	case "PRICE_LEVEL_MODERATE":
		return 2
	case "PRICE_LEVEL_EXPENSIVE":
		return 3
	case "PRICE_LEVEL_VERY_EXPENSIVE":
		return 4
	default:
		return 0
	}
}
