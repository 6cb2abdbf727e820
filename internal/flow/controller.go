// Package flow is the conversation state machine. Given the stored session and
// profile of a user and one line of text, Step computes the next session, the
// profile mutation and the replies. It never persists anything itself.
package flow

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/astrobot/server/internal/content"
	"github.com/astrobot/server/internal/geo"
	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/menu"
	"github.com/astrobot/server/internal/model"
	"github.com/astrobot/server/internal/subscription"
	"github.com/astrobot/server/internal/validate"
)

// Config is what the conversation needs from the environment.
type Config struct {
	IdleTimeout        time.Duration
	FreeQuota          map[string]int
	SupportedLanguages []string
	DefaultLanguage    string
	// CheckoutURL is where upgrade intents point. Empty means operators
	// follow up manually.
	CheckoutURL string
}

// Input is one turn.
type Input struct {
	Session model.Session
	// Profile is nil until the user gave a first valid answer.
	Profile *model.Profile
	Text    string
	Now     time.Time
}

// Reply is one outbound message.
type Reply struct {
	Body    string
	Kind    model.IntentKind
	Options []string
}

// Transition is the result of a turn. Profile is nil when the user still has
// none; ProfileChanged tells the caller whether it needs writing.
type Transition struct {
	Session        model.Session
	Profile        *model.Profile
	ProfileChanged bool
	Replies        []Reply
	// Used lists the metered features this turn delivered. The caller
	// records them with the ledger once the transition is committed.
	Used []string
}

// AdapterFailure is returned when an external service failed after its
// retries. The transition is void and nothing should be committed.
type AdapterFailure struct {
	Adapter string
	Err     error
}

func (f *AdapterFailure) Error() string {
	return fmt.Sprintf("%s adapter: %v", f.Adapter, f.Err)
}

func (f *AdapterFailure) Unwrap() error { return f.Err }

// Controller runs turns. It holds no per-user state and is safe for
// concurrent use.
type Controller struct {
	cfg      Config
	catalog  *i18n.Catalog
	menu     *menu.Engine
	geocoder geo.Resolver
	content  content.Generator
	ledger   subscription.Ledger
	logger   *zap.Logger
	vocab    map[string]validate.Vocabulary
}

// NewController wires a controller. Every supported language must have a
// catalog.
func NewController(cfg Config, catalog *i18n.Catalog, engine *menu.Engine, geocoder geo.Resolver,
	gen content.Generator, ledger subscription.Ledger, logger *zap.Logger) (*Controller, error) {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = catalog.DefaultLanguage()
	}
	if len(cfg.SupportedLanguages) == 0 {
		cfg.SupportedLanguages = []string{cfg.DefaultLanguage}
	}
	for _, lang := range cfg.SupportedLanguages {
		if !catalog.Has(lang) {
			return nil, fmt.Errorf("no catalog for supported language %q", lang)
		}
	}
	if !slices.Contains(cfg.SupportedLanguages, cfg.DefaultLanguage) {
		return nil, fmt.Errorf("default language %q is not supported", cfg.DefaultLanguage)
	}
	free := engine.Tree().ContentFor(model.TierFree)
	for feature := range cfg.FreeQuota {
		if !slices.Contains(free, feature) {
			logger.Warn("free quota set for a feature free users cannot open", zap.String("feature", feature))
		}
	}

	c := &Controller{
		cfg:      cfg,
		catalog:  catalog,
		menu:     engine,
		geocoder: geocoder,
		content:  gen,
		ledger:   ledger,
		logger:   logger,
		vocab:    make(map[string]validate.Vocabulary, len(cfg.SupportedLanguages)),
	}
	for _, lang := range cfg.SupportedLanguages {
		c.vocab[lang] = buildVocabulary(catalog, lang, cfg.DefaultLanguage)
	}
	return c, nil
}

// buildVocabulary merges the keyword spellings of lang with those of the
// default language, so "yes" works for everyone.
func buildVocabulary(catalog *i18n.Catalog, lang, fallback string) validate.Vocabulary {
	langs := []string{lang}
	if fallback != lang {
		langs = append(langs, fallback)
	}
	v := validate.Vocabulary{
		Keywords: map[validate.Keyword][]string{},
		Fields:   map[model.Field][]string{},
	}
	for _, l := range langs {
		for _, kw := range validate.UniversalKeywords {
			v.Keywords[kw] = append(v.Keywords[kw], catalog.List(l, "keyword."+string(kw))...)
		}
		v.Edit = append(v.Edit, catalog.List(l, "keyword.edit")...)
		for _, f := range model.EditableFields {
			v.Fields[f] = append(v.Fields[f], catalog.List(l, "field."+string(f))...)
		}
	}
	return v
}

// Step runs one turn. The input values are not modified. The only error
// returned is *AdapterFailure.
func (c *Controller) Step(ctx context.Context, in Input) (Transition, error) {
	t := &turn{
		c:       c,
		ctx:     ctx,
		now:     in.Now,
		text:    in.Text,
		session: in.Session.Clone(),
	}
	if in.Profile != nil {
		p := in.Profile.Clone()
		t.profile = &p
	}

	switch {
	case !t.session.Stage.Known():
		c.logger.Warn("unknown session stage, resetting",
			zap.String("user_id", MaskUserID(t.session.UserID)),
			zap.String("stage", t.session.Stage.String()))
		t.session.Reset()
		t.say("notice.restarting", nil)
	case t.session.Stage.Kind != model.StageGreeting &&
		c.cfg.IdleTimeout > 0 && t.now.Sub(t.session.LastActivityAt) > c.cfg.IdleTimeout:
		t.session.Reset()
		t.say("notice.session_expired", nil)
	}

	if period := model.UsagePeriodOf(t.now); period != t.session.UsagePeriod {
		t.session.UsagePeriod = period
		t.session.UsageCounters = map[string]int{}
	}
	if t.session.UsageCounters == nil {
		t.session.UsageCounters = map[string]int{}
	}
	t.session.LastActivityAt = t.now

	if err := t.dispatch(); err != nil {
		return Transition{}, err
	}
	return Transition{
		Session:        t.session,
		Profile:        t.profile,
		ProfileChanged: t.profileChanged,
		Replies:        t.replies,
		Used:           t.used,
	}, nil
}

// MaskUserID keeps the first and last two characters of an identifier for
// logging.
func MaskUserID(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return id[:2] + "****" + id[len(id)-2:]
}
