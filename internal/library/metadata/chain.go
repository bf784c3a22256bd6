package metadata

import (
	"context"
	"errors"

	"github.com/narwhalmedia/catalog/internal/library/domain"
)

// ErrNoProviders is returned by an empty chain.
var ErrNoProviders = errors.New("no metadata providers configured")

// Chain queries providers in priority order. A failing or empty provider
// falls through to the next one.
type Chain struct {
	providers []Provider
}

// NewChain creates a chain; providers are tried in the order given.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string {
	if len(c.providers) == 1 {
		return c.providers[0].Name()
	}
	return "chain"
}

// Search returns the first non-empty result. When every provider fails the
// last error is returned; when at least one answered, an empty slice is.
func (c *Chain) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if len(c.providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	answered := false
	for _, p := range c.providers {
		candidates, err := p.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		answered = true
		if len(candidates) > 0 {
			return candidates, nil
		}
	}
	if answered {
		return []Candidate{}, nil
	}
	return nil, lastErr
}

// Details routes a qualified id to its provider, and tries every provider
// in order for an unqualified one.
func (c *Chain) Details(ctx context.Context, externalID string, kind domain.Kind) (*Details, error) {
	if len(c.providers) == 0 {
		return nil, ErrNoProviders
	}

	name, _ := SplitExternalID(externalID)
	var lastErr error
	for _, p := range c.providers {
		if name != "" && p.Name() != name {
			continue
		}
		details, err := p.Details(ctx, externalID, kind)
		if err == nil {
			return details, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = newError(name, "details", KindNotFound, errors.New("no provider for id "+externalID))
	}
	return nil, lastErr
}
