package flow

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/model"
	"github.com/astrobot/server/internal/validate"
)

// turn is the working state of one Step call.
type turn struct {
	c   *Controller
	ctx context.Context
	now time.Time

	text    string
	session model.Session
	profile *model.Profile

	profileChanged bool
	synced         bool
	replies        []Reply
	used           []string
}

// dispatch is the transition table: one handler per stage.
func (t *turn) dispatch() error {
	switch t.session.Stage.Kind {
	case model.StageGreeting:
		t.greeting()
	case model.StageAwaitingDate:
		t.awaitingDate()
	case model.StageAwaitingTime:
		t.awaitingTime()
	case model.StageAwaitingPlace:
		return t.awaitingPlace()
	case model.StageAwaitingConfirmation:
		t.awaitingConfirmation()
	case model.StageEditingField:
		return t.editingField()
	case model.StageMainMenu, model.StageInMenu:
		return t.navigate()
	case model.StageAwaitingSubscriptionChoice:
		t.subscriptionChoice()
	}
	return nil
}

func (t *turn) lang() string {
	if t.profile != nil {
		if _, ok := t.c.vocab[t.profile.PreferredLanguage]; ok {
			return t.profile.PreferredLanguage
		}
	}
	return t.c.cfg.DefaultLanguage
}

func (t *turn) vocab() validate.Vocabulary {
	return t.c.vocab[t.lang()]
}

func (t *turn) tier() model.Tier {
	if t.profile == nil {
		return model.TierFree
	}
	return t.profile.EffectiveTier()
}

func (t *turn) tr(key string, params i18n.Params) string {
	return t.c.catalog.T(t.lang(), key, params)
}

func (t *turn) reply(r Reply) {
	t.replies = append(t.replies, r)
}

func (t *turn) sayText(body string) {
	t.reply(Reply{Body: body, Kind: model.IntentText})
}

func (t *turn) say(key string, params i18n.Params) {
	t.sayText(t.tr(key, params))
}

// reject explains a validation failure. The stage is left unchanged.
func (t *turn) reject(out validate.Outcome) {
	params := i18n.Params{}
	for k, v := range out.Params {
		params[k] = v
	}
	if len(out.Options) > 0 {
		params["options"] = strings.Join(t.languageNames(out.Options), ", ")
	}
	t.say(out.Hint, params)
}

func (t *turn) languageNames(codes []string) []string {
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = t.c.catalog.T(code, "language.name", nil)
	}
	return names
}

// ensureProfile creates the profile on the first valid answer.
func (t *turn) ensureProfile() *model.Profile {
	if t.profile == nil {
		p := model.NewProfile(t.session.UserID, t.lang())
		p.CreatedAt = t.now
		t.profile = &p
		t.profileChanged = true
	}
	return t.profile
}

func (t *turn) logger() *zap.Logger {
	return t.c.logger.With(zap.String("user_id", MaskUserID(t.session.UserID)))
}
