package flow

import (
	"errors"
	"strings"

	"github.com/astrobot/server/internal/geo"
	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/model"
	"github.com/astrobot/server/internal/validate"
)

func (t *turn) greeting() {
	if code, ok := validate.LanguageHint(t.text, t.c.cfg.SupportedLanguages); ok {
		p := t.ensureProfile()
		if p.PreferredLanguage != code {
			p.PreferredLanguage = code
			t.profileChanged = true
		}
	}
	if t.profile != nil && t.profile.Confirmed() {
		t.say("greeting.welcome_back", nil)
		t.showMenu(nil)
		return
	}
	t.say("greeting.welcome", nil)
	t.startOnboarding()
}

func (t *turn) startOnboarding() {
	t.session.Stage = model.AwaitingDate()
	t.session.MenuPath = nil
	t.say("prompt.date", nil)
}

// restartOnboarding is taken when a stage finds data it relies on missing.
func (t *turn) restartOnboarding() {
	t.logger().Warn("profile incomplete for stage, restarting onboarding",
		zapStage(t.session.Stage))
	t.say("notice.profile_incomplete", nil)
	t.startOnboarding()
}

func (t *turn) awaitingDate() {
	out := validate.Date(t.text, t.now)
	if !out.Valid {
		t.reject(out)
		return
	}
	p := t.ensureProfile()
	p.BirthDate = &out.Value
	t.profileChanged = true

	t.session.Stage = model.AwaitingTime()
	t.say("prompt.time", nil)
}

func (t *turn) awaitingTime() {
	if t.profile == nil || t.profile.BirthDate == nil {
		t.restartOnboarding()
		return
	}
	out := t.parseTime()
	if !out.Valid {
		t.reject(out)
		return
	}
	t.applyTime(out)

	t.session.Stage = model.AwaitingPlace()
	t.say("prompt.place", nil)
}

// parseTime also accepts the localized spelling of "skip".
func (t *turn) parseTime() validate.Outcome {
	out := validate.Time(t.text)
	if !out.Valid && t.vocab().Is(t.text, validate.KeywordSkip) {
		return validate.Outcome{Valid: true, Skipped: true}
	}
	return out
}

func (t *turn) applyTime(out validate.Outcome) {
	if out.Skipped {
		t.profile.BirthTime = nil
		t.profile.BirthTimeSkipped = true
	} else {
		v := out.Value
		t.profile.BirthTime = &v
		t.profile.BirthTimeSkipped = false
	}
	t.profileChanged = true
}

func (t *turn) awaitingPlace() error {
	if t.profile == nil || t.profile.BirthDate == nil {
		t.restartOnboarding()
		return nil
	}
	place, err := t.resolvePlace()
	if err != nil || place == nil {
		return err
	}
	t.profile.BirthPlace = place
	t.profileChanged = true
	t.toConfirmation()
	return nil
}

// resolvePlace returns nil, nil when the input was rejected.
func (t *turn) resolvePlace() (*model.Place, error) {
	out := validate.Place(t.text)
	if !out.Valid {
		t.reject(out)
		return nil, nil
	}
	loc, err := t.c.geocoder.Resolve(t.ctx, out.Value)
	if errors.Is(err, geo.ErrNotFound) {
		t.reject(validate.PlaceNotFound(out.Value))
		return nil, nil
	}
	if err != nil {
		return nil, &AdapterFailure{Adapter: "geocoding", Err: err}
	}
	return &model.Place{
		Name:      out.Value,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Timezone:  loc.Timezone,
	}, nil
}

func (t *turn) toConfirmation() {
	t.session.Stage = model.AwaitingConfirmation()
	t.session.MenuPath = nil
	t.reply(Reply{
		Body:    t.summary(false) + "\n\n" + t.tr("prompt.confirm", nil),
		Kind:    model.IntentButtons,
		Options: []string{t.tr("button.yes", nil), t.tr("button.no", nil)},
	})
}

func (t *turn) awaitingConfirmation() {
	p := t.profile
	if p == nil || !p.Complete() {
		t.restartOnboarding()
		return
	}

	v := t.vocab()
	switch {
	case v.Is(t.text, validate.KeywordYes):
		now := t.now
		p.ConfirmedAt = &now
		t.profileChanged = true
		t.say("summary.confirmed", nil)
		t.showMenu(nil)
	case v.Is(t.text, validate.KeywordNo):
		p.BirthDate = nil
		p.ConfirmedAt = nil
		t.profileChanged = true
		t.startOnboarding()
	default:
		if f, ok := validate.EditCommand(t.text, v); ok {
			t.startEdit(f)
			return
		}
		t.say("error.confirm_unrecognized", nil)
		t.toConfirmation()
	}
}

func (t *turn) startEdit(f model.Field) {
	t.session.Stage = model.EditingField(f)
	t.session.MenuPath = nil
	switch f {
	case model.FieldDate:
		t.say("prompt.date", nil)
	case model.FieldTime:
		t.say("prompt.time", nil)
	case model.FieldPlace:
		t.say("prompt.place", nil)
	case model.FieldLanguage:
		names := t.languageNames(t.c.cfg.SupportedLanguages)
		t.reply(Reply{
			Body:    t.tr("prompt.language", i18n.Params{"options": strings.Join(names, ", ")}),
			Kind:    model.IntentButtons,
			Options: names,
		})
	}
}

func (t *turn) editingField() error {
	p := t.profile
	if p == nil {
		t.restartOnboarding()
		return nil
	}
	if t.vocab().Is(t.text, validate.KeywordBack) {
		t.toConfirmation()
		return nil
	}

	switch t.session.Stage.Field {
	case model.FieldDate:
		out := validate.Date(t.text, t.now)
		if !out.Valid {
			t.reject(out)
			return nil
		}
		p.BirthDate = &out.Value
	case model.FieldTime:
		out := t.parseTime()
		if !out.Valid {
			t.reject(out)
			return nil
		}
		t.applyTime(out)
	case model.FieldPlace:
		place, err := t.resolvePlace()
		if err != nil || place == nil {
			return err
		}
		p.BirthPlace = place
	case model.FieldLanguage:
		out := validate.Language(t.text, t.c.cfg.SupportedLanguages)
		if !out.Valid {
			t.reject(out)
			return nil
		}
		p.PreferredLanguage = out.Value
	}

	t.profileChanged = true
	t.say("edit.saved", nil)
	t.toConfirmation()
	return nil
}
