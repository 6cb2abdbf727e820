package model

import (
	"strings"
	"time"
)

// StageKind is the tag of a Session stage.
type StageKind string

const (
	StageGreeting                   StageKind = "greeting"
	StageAwaitingDate               StageKind = "awaiting_date"
	StageAwaitingTime               StageKind = "awaiting_time"
	StageAwaitingPlace              StageKind = "awaiting_place"
	StageAwaitingConfirmation       StageKind = "awaiting_confirmation"
	StageEditingField               StageKind = "editing_field"
	StageMainMenu                   StageKind = "main_menu"
	StageInMenu                     StageKind = "in_menu"
	StageAwaitingSubscriptionChoice StageKind = "awaiting_subscription_choice"
)

// Field names a profile field that can be edited individually.
type Field string

const (
	FieldDate     Field = "date"
	FieldTime     Field = "time"
	FieldPlace    Field = "place"
	FieldLanguage Field = "language"
)

// EditableFields lists fields in the order they are offered to the user.
var EditableFields = []Field{FieldDate, FieldTime, FieldPlace, FieldLanguage}

func (f Field) known() bool {
	for _, k := range EditableFields {
		if f == k {
			return true
		}
	}
	return false
}

// Stage is the tagged position of a Session in the conversation. Field is only
// meaningful for StageEditingField. The menu position of StageInMenu lives in
// Session.MenuPath.
type Stage struct {
	Kind  StageKind
	Field Field
}

func Greeting() Stage                   { return Stage{Kind: StageGreeting} }
func AwaitingDate() Stage               { return Stage{Kind: StageAwaitingDate} }
func AwaitingTime() Stage               { return Stage{Kind: StageAwaitingTime} }
func AwaitingPlace() Stage              { return Stage{Kind: StageAwaitingPlace} }
func AwaitingConfirmation() Stage       { return Stage{Kind: StageAwaitingConfirmation} }
func EditingField(f Field) Stage        { return Stage{Kind: StageEditingField, Field: f} }
func MainMenu() Stage                   { return Stage{Kind: StageMainMenu} }
func InMenu() Stage                     { return Stage{Kind: StageInMenu} }
func AwaitingSubscriptionChoice() Stage { return Stage{Kind: StageAwaitingSubscriptionChoice} }

// ParseStage decodes the stored form produced by String. It never fails;
// unknown tags survive decoding and are caught by Known.
func ParseStage(raw string) Stage {
	kind, field, _ := strings.Cut(strings.TrimSpace(raw), ":")
	return Stage{Kind: StageKind(kind), Field: Field(field)}
}

// String is the storage encoding, e.g. "editing_field:date".
func (s Stage) String() string {
	if s.Field != "" {
		return string(s.Kind) + ":" + string(s.Field)
	}
	return string(s.Kind)
}

// Known reports whether s is one of the finite set of valid stages.
func (s Stage) Known() bool {
	switch s.Kind {
	case StageEditingField:
		return s.Field.known()
	case StageGreeting, StageAwaitingDate, StageAwaitingTime, StageAwaitingPlace,
		StageAwaitingConfirmation, StageMainMenu, StageInMenu, StageAwaitingSubscriptionChoice:
		return s.Field == ""
	default:
		return false
	}
}

// InMenus reports whether the stage is a menu navigation stage.
func (s Stage) InMenus() bool {
	return s.Kind == StageMainMenu || s.Kind == StageInMenu
}

// Session is the persisted conversation position of one user.
type Session struct {
	UserID         string
	Stage          Stage
	MenuPath       []string
	LastActivityAt time.Time
	UsageCounters  map[string]int
	// UsagePeriod is the period UsageCounters belong to (YYYY-MM, UTC).
	UsagePeriod string
	// Version increases on every commit and guards against lost updates.
	Version int64
}

// NewSession returns a Greeting session for a user seen for the first time.
func NewSession(userID string, now time.Time) Session {
	return Session{
		UserID:         userID,
		Stage:          Greeting(),
		LastActivityAt: now,
		UsageCounters:  map[string]int{},
		UsagePeriod:    UsagePeriodOf(now),
	}
}

// UsagePeriodOf returns the quota period key for t.
func UsagePeriodOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Reset returns the session to Greeting, clearing the menu position.
// Usage counters survive a reset.
func (s *Session) Reset() {
	s.Stage = Greeting()
	s.MenuPath = nil
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	c := s
	c.MenuPath = append([]string(nil), s.MenuPath...)
	c.UsageCounters = make(map[string]int, len(s.UsageCounters))
	for k, v := range s.UsageCounters {
		c.UsageCounters[k] = v
	}
	return c
}
