package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitStore persists the cooldown deadline for a (provider, model)
// pair so a restarted process continues to honor an in-flight rate limit.
// pkg/store implementations satisfy this interface without importing
// pkg/llm (duck typing keeps the dependency one-directional).
type RateLimitStore interface {
	GetCooldown(ctx context.Context, provider, model string) (time.Time, bool, error)
	SetCooldown(ctx context.Context, provider, model string, resetAt time.Time) error
}

type limiterKey struct {
	provider, model string
}

// Coordinator is a process-global, (provider, model)-scoped rate-limit
// gate shared across every caller of a Model. It combines a continuously
// refilling token bucket (capacity = requests per minute) with a cooldown
// deadline reported by the provider via a 429/RateLimited response.
//
// The coordinator itself is a passive gate: Acquire blocks the caller, it
// never calls the model. Retrying failed calls is the caller's job (see
// CallWithRetry), matching the source's bounded-retry-then-raise shape.
type Coordinator struct {
	mu       sync.Mutex
	limiters map[limiterKey]*rate.Limiter

	requestsPerMinute int
	maxRetries        int
	retryDelay        time.Duration

	store RateLimitStore // optional; nil means no cooldown is tracked
}

// NewCoordinator creates a rate-limit coordinator. store may be nil, in
// which case no cooldown is tracked at all: Notify records nothing and
// Acquire waits on the token bucket only.
func NewCoordinator(requestsPerMinute, maxRetries int, retryDelay time.Duration, store RateLimitStore) *Coordinator {
	return &Coordinator{
		limiters:          make(map[limiterKey]*rate.Limiter),
		requestsPerMinute: requestsPerMinute,
		maxRetries:        maxRetries,
		retryDelay:        retryDelay,
		store:             store,
	}
}

func (c *Coordinator) limiterFor(key limiterKey) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[key]
	if !ok {
		perSecond := float64(c.requestsPerMinute) / 60.0
		l = rate.NewLimiter(rate.Limit(perSecond), max(1, c.requestsPerMinute))
		c.limiters[key] = l
	}
	return l
}

// Acquire blocks until a token is available AND any persisted cooldown for
// (provider, model) has elapsed.
func (c *Coordinator) Acquire(ctx context.Context, provider, model string) error {
	key := limiterKey{provider, model}

	if c.store != nil {
		resetAt, found, err := c.store.GetCooldown(ctx, provider, model)
		if err != nil {
			slog.Warn("rate limit cooldown lookup failed", "provider", provider, "model", model, "error", err)
		} else if found {
			if wait := time.Until(resetAt); wait > 0 {
				if err := sleepCtx(ctx, wait); err != nil {
					return err
				}
			}
		}
	}

	if err := c.limiterFor(key).Wait(ctx); err != nil {
		// The limiter refuses up front, with an error of its own, when the
		// wait would outlast ctx's deadline; report that as the deadline.
		if _, hasDeadline := ctx.Deadline(); hasDeadline && ctx.Err() == nil {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return err
	}
	return nil
}

// Notify records a rate-limit response from the provider, persisting the
// reset deadline so concurrent and future callers (including after a
// restart) honor it.
func (c *Coordinator) Notify(ctx context.Context, provider, model string, resetAt time.Time) {
	if c.store == nil {
		return
	}
	if err := c.store.SetCooldown(ctx, provider, model, resetAt); err != nil {
		slog.Warn("failed to persist rate limit cooldown", "provider", provider, "model", model, "error", err)
	}
}

// CallWithRetry acquires the gate and invokes fn. ErrTransient and
// ErrProviderUnavailable are retried up to maxRetries times (maxRetries+1
// calls in all) with exponential backoff; RateLimitedError is retried
// without limit, each time after the reset instant is recorded through
// Notify.
func (c *Coordinator) CallWithRetry(ctx context.Context, provider, model string, fn func(ctx context.Context) (string, error)) (string, error) {
	transientAttempts := 0
	for {
		if err := c.Acquire(ctx, provider, model); err != nil {
			return "", err
		}

		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}

		var rl *RateLimitedError
		switch {
		case errors.As(err, &rl):
			// Rate limits are never fatal: honor the reset and wait
			// indefinitely. They don't count against the
			// transient-retry budget.
			c.Notify(ctx, provider, model, rl.ResetAt)
			continue
		case errors.Is(err, ErrTransient), errors.Is(err, ErrProviderUnavailable):
			if transientAttempts >= c.maxRetries {
				return "", err
			}
			backoff := c.retryDelay * time.Duration(1<<uint(transientAttempts))
			transientAttempts++
			if err := sleepCtx(ctx, backoff); err != nil {
				return "", err
			}
		default:
			return "", err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
