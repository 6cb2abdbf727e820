// Package subscription answers who is entitled to what: the subscription tier
// and status of a user, and how much of each free feature they have left in
// the current period.
package subscription

import (
	"context"
	"time"

	"github.com/astrobot/server/internal/model"
)

// Unlimited is the Remaining value of a quota without a cap.
const Unlimited = -1

// State is the billing state of one user.
type State struct {
	Tier   model.Tier               `json:"tier" db:"tier"`
	Status model.SubscriptionStatus `json:"status" db:"status"`
}

// FreeState is the state of a user the ledger has never seen.
var FreeState = State{Tier: model.TierFree, Status: model.StatusNone}

// Effective returns the tier the state entitles to.
func (s State) Effective() model.Tier {
	p := model.Profile{SubscriptionTier: s.Tier, SubscriptionStatus: s.Status}
	return p.EffectiveTier()
}

// Quota is the answer to a quota check.
type Quota struct {
	Allowed   bool
	Remaining int
}

// Ledger is the subscription and quota service the conversation consults.
type Ledger interface {
	GetSubscriptionState(ctx context.Context, userID string) (State, error)
	CheckQuota(ctx context.Context, userID, feature string) (Quota, error)
	RecordUsage(ctx context.Context, userID, feature string) error
}

// Store persists subscription states.
type Store interface {
	Get(ctx context.Context, userID string) (State, error)
	Set(ctx context.Context, userID string, st State) error
}

// Counter counts feature usage per user and period.
type Counter interface {
	Get(ctx context.Context, userID, feature, period string) (int, error)
	Incr(ctx context.Context, userID, feature, period string) (int, error)
}

// Period returns the usage period key for t.
func Period(t time.Time) string {
	return model.UsagePeriodOf(t)
}
