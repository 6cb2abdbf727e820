package subscription

import (
	"context"
	"fmt"
	"time"
)

// Service is the Ledger backed by a Store and a Counter. Entitled paid users
// are not metered; free users get Limits per feature and period.
type Service struct {
	store   Store
	counter Counter
	limits  map[string]int
	now     func() time.Time
}

func NewService(store Store, counter Counter, limits map[string]int, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, counter: counter, limits: limits, now: now}
}

func (s *Service) GetSubscriptionState(ctx context.Context, userID string) (State, error) {
	st, err := s.store.Get(ctx, userID)
	if err != nil {
		return State{}, fmt.Errorf("get subscription: %w", err)
	}
	return st, nil
}

func (s *Service) CheckQuota(ctx context.Context, userID, feature string) (Quota, error) {
	st, err := s.GetSubscriptionState(ctx, userID)
	if err != nil {
		return Quota{}, err
	}
	limit, metered := s.limits[feature]
	if !metered || st.Effective().Rank() > 0 {
		return Quota{Allowed: true, Remaining: Unlimited}, nil
	}

	used, err := s.counter.Get(ctx, userID, feature, Period(s.now()))
	if err != nil {
		return Quota{}, fmt.Errorf("get usage: %w", err)
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Quota{Allowed: remaining > 0, Remaining: remaining}, nil
}

func (s *Service) RecordUsage(ctx context.Context, userID, feature string) error {
	if _, err := s.counter.Incr(ctx, userID, feature, Period(s.now())); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// SetSubscription overrides the state of a user. Operators use it; billing
// integrations write through the same store.
func (s *Service) SetSubscription(ctx context.Context, userID string, st State) error {
	if err := s.store.Set(ctx, userID, st); err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	return nil
}
