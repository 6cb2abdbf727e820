package content

import (
	"context"
	"fmt"

	"github.com/astrobot/server/internal/resilience"
)

type resilientGenerator struct {
	next   Generator
	policy resilience.Policy
}

// WithPolicy bounds and retries g. Failures that survive the retries are
// reported as ErrUnavailable.
func WithPolicy(g Generator, p resilience.Policy) Generator {
	return &resilientGenerator{next: g, policy: p}
}

func (r *resilientGenerator) Generate(ctx context.Context, req Request) (Rendered, error) {
	out, err := resilience.Do(ctx, r.policy, func(ctx context.Context) (Rendered, error) {
		return r.next.Generate(ctx, req)
	})
	if err != nil {
		return Rendered{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}
