package model

import (
	"time"
)

// Tier is a subscription tier. Tiers are ordered; see Rank.
type Tier string

const (
	TierFree    Tier = "free"
	TierTrial   Tier = "trial"
	TierPremium Tier = "premium"
	TierVIP     Tier = "vip"
)

// PaidTiers lists the tiers a user can be upsold to, lowest first.
var PaidTiers = []Tier{TierTrial, TierPremium, TierVIP}

// Rank returns the ordering position of the tier. Unknown tiers rank as Free.
func (t Tier) Rank() int {
	switch t {
	case TierTrial:
		return 1
	case TierPremium:
		return 2
	case TierVIP:
		return 3
	default:
		return 0
	}
}

// Covers reports whether t grants access to content gated at min.
func (t Tier) Covers(min Tier) bool {
	return t.Rank() >= min.Rank()
}

// ParseTier maps a stored value to a Tier, defaulting to Free.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierTrial, TierPremium, TierVIP:
		return Tier(s)
	default:
		return TierFree
	}
}

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

const (
	StatusNone        SubscriptionStatus = "none"
	StatusActive      SubscriptionStatus = "active"
	StatusPaused      SubscriptionStatus = "paused"
	StatusGracePeriod SubscriptionStatus = "grace_period"
)

// ParseSubscriptionStatus maps a stored value to a status, defaulting to None.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch SubscriptionStatus(s) {
	case StatusActive, StatusPaused, StatusGracePeriod:
		return SubscriptionStatus(s)
	default:
		return StatusNone
	}
}

// Entitled reports whether a subscription in this status grants its tier.
// Paused subscriptions fall back to Free.
func (s SubscriptionStatus) Entitled() bool {
	return s == StatusActive || s == StatusGracePeriod
}

// Place is a birth place as typed by the user together with the resolved
// coordinates and IANA timezone.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// Profile holds the durable data collected from a user.
type Profile struct {
	UserID string

	// BirthDate is the canonical DDMMYYYY form.
	BirthDate *string
	// BirthTime is the canonical HHMM form. Nil together with
	// BirthTimeSkipped means the user chose not to give a time.
	BirthTime        *string
	BirthTimeSkipped bool
	BirthPlace       *Place

	PreferredLanguage  string
	SubscriptionTier   Tier
	SubscriptionStatus SubscriptionStatus

	// ConfirmedAt is set when the user accepts the onboarding summary.
	ConfirmedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfile returns an empty profile for userID.
func NewProfile(userID, language string) Profile {
	return Profile{
		UserID:             userID,
		PreferredLanguage:  language,
		SubscriptionTier:   TierFree,
		SubscriptionStatus: StatusNone,
	}
}

// Complete is true iff the birth date and place are known. Time may be absent.
func (p Profile) Complete() bool {
	return p.BirthDate != nil && p.BirthPlace != nil
}

// Confirmed reports whether the user accepted a complete profile.
func (p Profile) Confirmed() bool {
	return p.ConfirmedAt != nil && p.Complete()
}

// TimeAnswered reports whether the time question has been answered, either
// with a value or an explicit skip.
func (p Profile) TimeAnswered() bool {
	return p.BirthTime != nil || p.BirthTimeSkipped
}

// EffectiveTier is the tier the user is entitled to right now.
func (p Profile) EffectiveTier() Tier {
	if p.SubscriptionTier == TierFree || !p.SubscriptionStatus.Entitled() {
		return TierFree
	}
	return p.SubscriptionTier
}

// Clone returns a deep copy so a transition can be discarded without
// touching the loaded value.
func (p Profile) Clone() Profile {
	c := p
	if p.BirthDate != nil {
		v := *p.BirthDate
		c.BirthDate = &v
	}
	if p.BirthTime != nil {
		v := *p.BirthTime
		c.BirthTime = &v
	}
	if p.BirthPlace != nil {
		v := *p.BirthPlace
		c.BirthPlace = &v
	}
	if p.ConfirmedAt != nil {
		v := *p.ConfirmedAt
		c.ConfirmedAt = &v
	}
	return c
}
