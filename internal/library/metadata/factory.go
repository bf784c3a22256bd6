package metadata

import (
	"fmt"
	"net/http"
	"sort"

	"golang.org/x/time/rate"

	"github.com/narwhalmedia/catalog/pkg/config"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// NewFromConfig builds the provider stack: one rate-limited retrying client
// per enabled provider, chained by descending priority. Job caching is
// layered on top per scan job.
func NewFromConfig(cfg config.MetadataSettings, logger interfaces.Logger) (Provider, error) {
	settings := make([]config.ProviderSettings, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p.Enabled {
			settings = append(settings, p)
		}
	}
	sort.SliceStable(settings, func(i, j int) bool {
		return settings[i].Priority > settings[j].Priority
	})

	policy := RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     2,
		Timeout:        cfg.Timeout,
	}

	providers := make([]Provider, 0, len(settings))
	for _, p := range settings {
		var raw Provider
		switch p.Type {
		case "tmdb":
			raw = NewTMDBClient(p.BaseURL, p.APIKey, p.Language, &http.Client{})
		default:
			return nil, fmt.Errorf("unsupported metadata provider type %q", p.Type)
		}

		var limiter *rate.Limiter
		if cfg.RateLimit > 0 {
			burst := cfg.RateBurst
			if burst < 1 {
				burst = 1
			}
			limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
		}
		providers = append(providers, NewRetryProvider(raw, policy, limiter, logger.Named("metadata")))
		logger.Info("Registered metadata provider",
			interfaces.String("provider", p.Name),
			interfaces.Int("priority", p.Priority))
	}
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return NewChain(providers...), nil
}
