package geo

import (
	"context"
	"errors"

	"github.com/astrobot/server/internal/resilience"
)

type resilientResolver struct {
	next   Resolver
	policy resilience.Policy
}

// WithPolicy wraps r so every lookup is bounded and retried. ErrNotFound is
// final and never retried.
func WithPolicy(r Resolver, p resilience.Policy) Resolver {
	return &resilientResolver{next: r, policy: p}
}

func (r *resilientResolver) Resolve(ctx context.Context, candidate string) (Location, error) {
	return resilience.Do(ctx, r.policy, func(ctx context.Context) (Location, error) {
		loc, err := r.next.Resolve(ctx, candidate)
		if errors.Is(err, ErrNotFound) {
			return Location{}, resilience.Permanent(err)
		}
		return loc, err
	})
}
