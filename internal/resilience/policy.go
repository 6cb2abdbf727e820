// Package resilience bounds calls to external services with a per-attempt
// timeout and a capped exponential retry.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

const maxBackoff = 2 * time.Second

// Policy configures Do. A zero Timeout disables the per-attempt deadline.
type Policy struct {
	Timeout time.Duration
	Retries uint64
	Backoff time.Duration
}

func (p Policy) backoff() retry.Backoff {
	base := p.Backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(maxBackoff, b)
	return retry.WithMaxRetries(p.Retries, b)
}

// Budget is the longest Do can take: every attempt hitting its timeout plus
// the waits between attempts.
func (p Policy) Budget() time.Duration {
	base := p.Backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	total := time.Duration(p.Retries+1) * p.Timeout
	wait := base
	for i := uint64(0); i < p.Retries; i++ {
		total += min(wait, maxBackoff)
		wait *= 2
	}
	return total
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a Permanent error, the retries are
// used up or ctx is done.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		callCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		v, err := fn(callCtx)
		if err == nil {
			out = v
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		return retry.RetryableError(err)
	})
	return out, err
}
