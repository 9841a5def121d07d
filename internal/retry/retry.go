// Package retry wraps store writes that can lose a race in a bounded
// exponential backoff.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/nimbus/internal/entity"
)

// Defaults for Policy fields left at zero.
const (
	DefaultMaxAttempts     = 5
	DefaultInitialInterval = 10 * time.Millisecond
	DefaultMaxInterval     = 500 * time.Millisecond
)

// Policy bounds how an operation is retried.
type Policy struct {
	// MaxAttempts includes the first call.
	MaxAttempts uint

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Defaults to entity.IsRetryable.
	Retryable func(error) bool

	Logger *slog.Logger
}

// Default returns the policy used by the harness and the CLI.
func Default() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// None runs the operation exactly once.
func None() Policy {
	return Policy{MaxAttempts: 1}
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// run out or ctx ends. The last error is returned unchanged.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.Logger.Debug("retrying", "attempt", attempt, "next", next, "error", err)
		}),
	)
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultInitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultMaxInterval
	}
	if p.Retryable == nil {
		p.Retryable = entity.IsRetryable
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}
