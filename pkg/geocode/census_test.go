package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCensusProvider_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100 Biscayne Blvd, Miami, FL 33131", r.URL.Query().Get("address"))
		assert.Equal(t, censusBenchmark, r.URL.Query().Get("benchmark"))
		w.Write([]byte(`{
			"result": {
				"addressMatches": [{
					"matchedAddress": "100 BISCAYNE BLVD, MIAMI, FL, 33131",
					"coordinates": {"x": -80.1889, "y": 25.7743},
					"addressComponents": {"city": "MIAMI", "state": "FL", "zip": "33131"}
				}]
			}
		}`))
	}))
	defer srv.Close()

	p := NewCensusProvider(WithCensusBaseURL(srv.URL))
	loc, err := p.Resolve(context.Background(), "100 Biscayne Blvd, Miami, FL 33131")

	require.NoError(t, err)
	assert.True(t, loc.Usable())
	assert.Equal(t, "MIAMI", loc.Locality)
	assert.Equal(t, "FL", loc.Region)
	assert.Equal(t, "33131", loc.PostalCode)
	assert.InDelta(t, 25.7743, loc.Latitude, 1e-6)
	assert.InDelta(t, -80.1889, loc.Longitude, 1e-6)
	assert.Equal(t, PrecisionRooftop, loc.Precision)
	assert.Equal(t, "census", loc.Source)
}

func TestCensusProvider_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"addressMatches": []}}`))
	}))
	defer srv.Close()

	p := NewCensusProvider(WithCensusBaseURL(srv.URL))
	loc, err := p.Resolve(context.Background(), "nowhere at all")

	require.NoError(t, err)
	assert.False(t, loc.Usable())
}

func TestCensusProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewCensusProvider(WithCensusBaseURL(srv.URL))
	_, err := p.Resolve(context.Background(), "100 Main St")

	assert.Error(t, err)
}

func TestCensusProvider_AlwaysAvailable(t *testing.T) {
	assert.True(t, NewCensusProvider().Available())
}
