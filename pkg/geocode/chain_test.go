package geocode

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable Provider for chain tests.
type fakeProvider struct {
	name      string
	available bool
	loc       *Location
	err       error
	calls     int
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }
func (f *fakeProvider) Resolve(_ context.Context, _ string) (*Location, error) {
	f.calls++
	return f.loc, f.err
}

func usableLoc(source string) *Location {
	return &Location{
		Locality:   "Miami",
		Region:     "FL",
		PostalCode: "33131",
		Latitude:   25.77,
		Longitude:  -80.19,
		Source:     source,
	}
}

func TestChain_FirstUsableMatchWins(t *testing.T) {
	first := &fakeProvider{name: "census", available: true, loc: usableLoc("census")}
	second := &fakeProvider{name: "google", available: true, loc: usableLoc("google")}

	chain := NewChain([]Provider{first, second})
	loc, err := chain.Resolve(context.Background(), "100 Main St, Miami, FL")

	require.NoError(t, err)
	assert.Equal(t, "census", loc.Source)
	assert.Equal(t, 0, second.calls)
}

func TestChain_SkipsUnconfiguredProvider(t *testing.T) {
	skipped := &fakeProvider{name: "google", available: false}
	fallback := &fakeProvider{name: "census", available: true, loc: usableLoc("census")}

	chain := NewChain([]Provider{skipped, fallback})
	loc, err := chain.Resolve(context.Background(), "100 Main St")

	require.NoError(t, err)
	assert.Equal(t, "census", loc.Source)
	assert.Equal(t, 0, skipped.calls)
}

func TestChain_ProviderErrorAdvances(t *testing.T) {
	failing := &fakeProvider{name: "census", available: true, err: eris.New("boom")}
	fallback := &fakeProvider{name: "google", available: true, loc: usableLoc("google")}

	chain := NewChain([]Provider{failing, fallback})
	loc, err := chain.Resolve(context.Background(), "100 Main St")

	require.NoError(t, err)
	assert.Equal(t, "google", loc.Source)
}

func TestChain_UnusableMatchAdvances(t *testing.T) {
	// Coordinates but no locality — not usable.
	partial := &fakeProvider{name: "census", available: true, loc: &Location{Latitude: 25.77, Longitude: -80.19}}
	fallback := &fakeProvider{name: "google", available: true, loc: usableLoc("google")}

	chain := NewChain([]Provider{partial, fallback})
	loc, err := chain.Resolve(context.Background(), "100 Main St")

	require.NoError(t, err)
	assert.Equal(t, "google", loc.Source)
}

func TestChain_Exhausted(t *testing.T) {
	failing := &fakeProvider{name: "census", available: true, err: eris.New("down")}
	empty := &fakeProvider{name: "google", available: true, loc: &Location{Source: "google"}}

	chain := NewChain([]Provider{failing, empty})
	loc, err := chain.Resolve(context.Background(), "nowhere")

	assert.Nil(t, loc)
	assert.ErrorIs(t, err, ErrAddressNotResolved)
}

func TestChain_OutOfRegionFlaggedNotRejected(t *testing.T) {
	ga := usableLoc("census")
	ga.Region = "GA"
	p := &fakeProvider{name: "census", available: true, loc: ga}

	chain := NewChain([]Provider{p}, WithSupportedRegion("fl"))
	loc, err := chain.Resolve(context.Background(), "100 Peachtree St, Atlanta, GA")

	require.NoError(t, err)
	assert.True(t, loc.OutOfRegion)
	assert.Equal(t, "GA", loc.Region)
}

func TestChain_InRegionNotFlagged(t *testing.T) {
	p := &fakeProvider{name: "census", available: true, loc: usableLoc("census")}

	chain := NewChain([]Provider{p}, WithSupportedRegion("FL"))
	loc, err := chain.Resolve(context.Background(), "100 Main St, Miami, FL")

	require.NoError(t, err)
	assert.False(t, loc.OutOfRegion)
}
