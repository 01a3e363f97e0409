package geocode

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Chain tries providers in priority order until one returns a usable match.
type Chain struct {
	providers       []Provider
	supportedRegion string
}

// ChainOption configures the Chain.
type ChainOption func(*Chain)

// WithSupportedRegion sets the advisory region filter (e.g. "FL"). Matches
// outside the region are flagged OutOfRegion but still returned.
func WithSupportedRegion(region string) ChainOption {
	return func(c *Chain) {
		c.supportedRegion = strings.ToUpper(strings.TrimSpace(region))
	}
}

// NewChain creates a resolver chain over the given providers.
func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{providers: providers}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve implements Resolver. The first provider yielding a usable match
// (postal locality plus coordinates) wins; provider errors advance the chain.
// Exhaustion returns ErrAddressNotResolved.
func (c *Chain) Resolve(ctx context.Context, address string) (*Location, error) {
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		loc, err := p.Resolve(ctx, address)
		if err != nil {
			zap.L().Debug("geocode: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if !loc.Usable() {
			zap.L().Debug("geocode: provider returned no usable match",
				zap.String("provider", p.Name()),
			)
			continue
		}

		if c.supportedRegion != "" && !strings.EqualFold(loc.Region, c.supportedRegion) {
			loc.OutOfRegion = true
			zap.L().Info("geocode: match outside supported region",
				zap.String("provider", p.Name()),
				zap.String("region", loc.Region),
				zap.String("supported", c.supportedRegion),
			)
		}
		return loc, nil
	}

	return nil, ErrAddressNotResolved
}
