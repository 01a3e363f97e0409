// Package geocode resolves free-text addresses into canonical locations via
// a priority-ordered chain of providers (Census primary, Google fallback).
package geocode

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrAddressNotResolved is returned when every configured provider failed or
// returned no usable match. Recoverable: the caller may retry with a refined
// address string, but the chain does not auto-retry.
var ErrAddressNotResolved = eris.New("geocode: address not resolved")

// Precision describes how exact a provider match is.
type Precision string

const (
	PrecisionRooftop     Precision = "rooftop"
	PrecisionRange       Precision = "range"
	PrecisionCentroid    Precision = "centroid"
	PrecisionApproximate Precision = "approximate"
)

// Location is the canonical resolver output.
type Location struct {
	Street     string
	Locality   string
	Region     string
	PostalCode string
	Latitude   float64
	Longitude  float64
	Formatted  string
	Precision  Precision
	Source     string

	// OutOfRegion flags matches outside the configured supported region.
	// Advisory only: out-of-region results are returned, never rejected.
	OutOfRegion bool
}

// Usable reports whether the match carries enough detail to anchor an
// enrichment run: a postal locality and coordinates.
func (l *Location) Usable() bool {
	return l != nil && l.Locality != "" && (l.Latitude != 0 || l.Longitude != 0)
}

// Provider is a single geocoding backend in the chain.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, address string) (*Location, error)

	// Available reports whether the provider is configured. Unconfigured
	// providers are skipped without counting as failures.
	Available() bool
}

// Resolver resolves a free-text address into a Location.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*Location, error)
}
