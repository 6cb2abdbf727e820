package subscription

import (
	"context"

	"github.com/astrobot/server/internal/resilience"
)

type resilientLedger struct {
	next   Ledger
	policy resilience.Policy
}

// WithPolicy bounds and retries every ledger call.
func WithPolicy(l Ledger, p resilience.Policy) Ledger {
	return &resilientLedger{next: l, policy: p}
}

func (r *resilientLedger) GetSubscriptionState(ctx context.Context, userID string) (State, error) {
	return resilience.Do(ctx, r.policy, func(ctx context.Context) (State, error) {
		return r.next.GetSubscriptionState(ctx, userID)
	})
}

func (r *resilientLedger) CheckQuota(ctx context.Context, userID, feature string) (Quota, error) {
	return resilience.Do(ctx, r.policy, func(ctx context.Context) (Quota, error) {
		return r.next.CheckQuota(ctx, userID, feature)
	})
}

// RecordUsage is not retried: an increment that timed out may still have
// landed.
func (r *resilientLedger) RecordUsage(ctx context.Context, userID, feature string) error {
	_, err := resilience.Do(ctx, resilience.Policy{Timeout: r.policy.Timeout}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.RecordUsage(ctx, userID, feature)
	})
	return err
}
