package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearby(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:searchNearby", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))

		var req nearbyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"restaurant"}, req.IncludedTypes)
		assert.InDelta(t, 1500.0, req.LocationRestriction.Circle.Radius, 0.1)

		w.Write([]byte(`{
			"places": [
				{
					"displayName": {"text": "Café Biscayne"},
					"rating": 4.5,
					"userRatingCount": 230,
					"priceLevel": "PRICE_LEVEL_MODERATE",
					"location": {"latitude": 25.775, "longitude": -80.19}
				},
				{
					"displayName": {"text": "Bayfront Grill"},
					"rating": 4.1,
					"userRatingCount": 88,
					"location": {"latitude": 25.772, "longitude": -80.188}
				}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	businesses, err := c.Nearby(context.Background(), 25.7743, -80.1889, 1500, "restaurant")

	require.NoError(t, err)
	require.Len(t, businesses, 2)
	assert.Equal(t, "Café Biscayne", businesses[0].Name)
	assert.InDelta(t, 4.5, businesses[0].Rating, 1e-9)
	assert.Equal(t, 230, businesses[0].ReviewCount)
	assert.Equal(t, 2, businesses[0].PriceTier)
	assert.Greater(t, businesses[0].DistanceMeters, 0.0)
	assert.Less(t, businesses[0].DistanceMeters, 1500.0)
	assert.Equal(t, 0, businesses[1].PriceTier)
}

func TestNearby_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.Nearby(context.Background(), 25.77, -80.19, 1000, "park")

	assert.Error(t, err)
}

func TestHaversineMeters(t *testing.T) {
	// Same point.
	assert.InDelta(t, 0, haversineMeters(25.77, -80.19, 25.77, -80.19), 0.01)

	// ~111km per degree of latitude.
	d := haversineMeters(25.0, -80.0, 26.0, -80.0)
	assert.InDelta(t, 111000, d, 500)

	// ~100m offset.
	d = haversineMeters(25.7743, -80.1889, 25.7752, -80.1889)
	assert.InDelta(t, 100, d, 5)
}

func TestPriceTier(t *testing.T) {
	assert.Equal(t, 0, priceTier(""))
	assert.Equal(t, 1, priceTier("PRICE_LEVEL_INEXPENSIVE"))
	assert.Equal(t, 4, priceTier("PRICE_LEVEL_VERY_EXPENSIVE"))
}
