package metadata

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// RetryPolicy bounds retries of transient provider failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Timeout applies to each attempt
	Timeout time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
		Timeout:        10 * time.Second,
	}
}

// Backoff returns the delay before the given retry (1 = first retry).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	delay := float64(p.InitialBackoff)
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	for i := 1; i < retry; i++ {
		delay *= mult
		if p.MaxBackoff > 0 && time.Duration(delay) >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && time.Duration(delay) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(delay)
}

// RetryProvider wraps a provider with per-call timeouts, client-side rate
// limiting and exponential backoff on transient failures. Permanent
// failures are returned on the first attempt.
type RetryProvider struct {
	next    Provider
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  interfaces.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetryProvider decorates next. A nil limiter disables rate limiting.
func NewRetryProvider(next Provider, policy RetryPolicy, limiter *rate.Limiter, logger interfaces.Logger) *RetryProvider {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryProvider{
		next:    next,
		policy:  policy,
		limiter: limiter,
		logger:  logger.WithFields(interfaces.String("provider", next.Name())),
		sleep:   sleepContext,
	}
}

func (r *RetryProvider) Name() string {
	return r.next.Name()
}

func (r *RetryProvider) Search(ctx context.Context, q Query) ([]Candidate, error) {
	var out []Candidate
	err := r.do(ctx, "search", func(ctx context.Context) error {
		var err error
		out, err = r.next.Search(ctx, q)
		return err
	})
	return out, err
}

func (r *RetryProvider) Details(ctx context.Context, externalID string, kind domain.Kind) (*Details, error) {
	var out *Details
	err := r.do(ctx, "details", func(ctx context.Context) error {
		var err error
		out, err = r.next.Details(ctx, externalID, kind)
		return err
	})
	return out, err
}

func (r *RetryProvider) do(ctx context.Context, op string, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return newError(r.Name(), op, KindRateLimited, err)
			}
		}

		err := r.attempt(ctx, op, call)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		var pe *ProviderError
		if !errors.As(err, &pe) || !pe.Transient() || attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.policy.Backoff(attempt)
		if pe.RetryAfter > delay {
			delay = pe.RetryAfter
		}
		r.logger.Debug("Retrying provider call",
			interfaces.String("op", op),
			interfaces.Int("attempt", attempt),
			interfaces.String("kind", string(pe.Kind)),
			interfaces.Duration("delay", delay))

		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (r *RetryProvider) attempt(ctx context.Context, op string, call func(ctx context.Context) error) error {
	callCtx := ctx
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}

	err := call(callCtx)
	if err != nil && ctx.Err() == nil && callCtx.Err() != nil {
		// the per-call deadline fired, not the caller's
		return newError(r.Name(), op, KindTimeout, err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
