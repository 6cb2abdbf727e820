package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/astrobot/server/internal/content"
	"github.com/astrobot/server/internal/geo"
	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/menu"
	"github.com/astrobot/server/internal/model"
	"github.com/astrobot/server/internal/subscription"
)

var start = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type stubGenerator struct {
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, req content.Request) (content.Rendered, error) {
	g.calls++
	if g.err != nil {
		return content.Rendered{}, g.err
	}
	return content.Rendered{Text: "reading:" + req.Kind + ":" + req.Language}, nil
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (geo.Location, error) {
	return geo.Location{}, errors.New("connection refused")
}

type deps struct {
	geocoder geo.Resolver
	gen      *stubGenerator
	ledger   *subscription.Service
	subs     *subscription.MemoryStore
}

func newController(t *testing.T, mutate ...func(*Config, *deps)) (*Controller, *deps) {
	t.Helper()
	catalog, err := i18n.NewCatalog("en")
	require.NoError(t, err)

	cfg := Config{
		IdleTimeout:        30 * time.Minute,
		FreeQuota:          map[string]int{"natal_chart": 1},
		SupportedLanguages: []string{"en", "es", "fr"},
		DefaultLanguage:    "en",
		CheckoutURL:        "https://pay.example.com/checkout",
	}
	d := &deps{
		geocoder: geo.NewStaticResolver(geo.DefaultPlaces()),
		gen:      &stubGenerator{},
		subs:     subscription.NewMemoryStore(),
	}
	for _, m := range mutate {
		m(&cfg, d)
	}
	d.ledger = subscription.NewService(d.subs, subscription.NewMemoryCounter(), cfg.FreeQuota, func() time.Time { return start })

	c, err := NewController(cfg, catalog, menu.NewEngine(menu.DefaultTree(), catalog), d.geocoder, d.gen, d.ledger, zap.NewNop())
	require.NoError(t, err)
	return c, d
}

// convo feeds messages through the controller the way the dispatcher does,
// carrying the committed state from turn to turn.
type convo struct {
	t       *testing.T
	c       *Controller
	session model.Session
	profile *model.Profile
	now     time.Time
}

func newConvo(t *testing.T, c *Controller) *convo {
	return &convo{t: t, c: c, session: model.NewSession("u1", start), now: start}
}

func (cv *convo) step(text string) (Transition, error) {
	tr, err := cv.c.Step(context.Background(), Input{Session: cv.session, Profile: cv.profile, Text: text, Now: cv.now})
	if err == nil {
		cv.session = tr.Session
		cv.profile = tr.Profile
	}
	cv.now = cv.now.Add(time.Minute)
	return tr, err
}

func (cv *convo) send(text string) Transition {
	cv.t.Helper()
	tr, err := cv.step(text)
	require.NoError(cv.t, err)
	return tr
}

func text(tr Transition) string {
	bodies := make([]string, len(tr.Replies))
	for i, r := range tr.Replies {
		bodies[i] = r.Body
	}
	return strings.Join(bodies, "\n---\n")
}

func confirmedProfile() *model.Profile {
	p := model.NewProfile("u1", "en")
	date, tm := "15061990", "1430"
	p.BirthDate = &date
	p.BirthTime = &tm
	p.BirthPlace = &model.Place{Name: "London, UK", Latitude: 51.5, Longitude: -0.12, Timezone: "Europe/London"}
	confirmed := start.Add(-48 * time.Hour)
	p.ConfirmedAt = &confirmed
	return &p
}

func inMenu(cv *convo, path ...string) {
	cv.profile = confirmedProfile()
	cv.session.MenuPath = path
	if len(path) == 0 {
		cv.session.Stage = model.MainMenu()
	} else {
		cv.session.Stage = model.InMenu()
	}
}

func TestOnboardingScenario(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)

	tr := cv.send("Hi")
	assert.Equal(t, model.AwaitingDate(), cv.session.Stage)
	assert.Nil(t, tr.Profile)
	assert.Contains(t, text(tr), "DDMMYYYY")

	tr = cv.send("15061990")
	assert.Equal(t, model.AwaitingTime(), cv.session.Stage)
	assert.True(t, tr.ProfileChanged)

	cv.send("1430")
	assert.Equal(t, model.AwaitingPlace(), cv.session.Stage)

	tr = cv.send("London, UK")
	assert.Equal(t, model.AwaitingConfirmation(), cv.session.Stage)
	assert.Equal(t, model.IntentButtons, tr.Replies[0].Kind)
	assert.Contains(t, text(tr), "15/06/1990")
	assert.Contains(t, text(tr), "14:30")

	tr = cv.send("Yes")
	assert.Equal(t, model.MainMenu(), cv.session.Stage)
	assert.Equal(t, model.IntentList, tr.Replies[len(tr.Replies)-1].Kind)

	p := cv.profile
	require.NotNil(t, p)
	assert.Equal(t, "15061990", *p.BirthDate)
	assert.Equal(t, "1430", *p.BirthTime)
	assert.Equal(t, "London, UK", p.BirthPlace.Name)
	assert.Equal(t, "Europe/London", p.BirthPlace.Timezone)
	assert.True(t, p.Complete())
	assert.True(t, p.Confirmed())
}

func TestFutureDateStaysWithoutProfile(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	cv.send("Hi")

	tr := cv.send("31122099")
	assert.Equal(t, model.AwaitingDate(), cv.session.Stage)
	assert.Nil(t, tr.Profile)
	assert.False(t, tr.ProfileChanged)
	assert.Contains(t, text(tr), "in the future")
}

func TestInvalidTimeNamesComponent(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	cv.send("Hi")
	cv.send("15061990")

	assert.Contains(t, text(cv.send("2530")), "Hour")
	assert.Contains(t, text(cv.send("1275")), "Minutes")
	assert.Contains(t, text(cv.send("14:30")), "without a colon")
	assert.Equal(t, model.AwaitingTime(), cv.session.Stage)

	cv.send("SKIP")
	assert.Equal(t, model.AwaitingPlace(), cv.session.Stage)
	assert.Nil(t, cv.profile.BirthTime)
	assert.True(t, cv.profile.BirthTimeSkipped)
}

func TestPlaceNotFoundNamesCandidate(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	cv.send("Hi")
	cv.send("15061990")
	cv.send("skip")

	tr := cv.send("Atlantis")
	assert.Equal(t, model.AwaitingPlace(), cv.session.Stage)
	assert.Contains(t, text(tr), `"Atlantis"`)
	assert.Nil(t, cv.profile.BirthPlace)
}

func TestGeocoderFailureIsAdapterFailure(t *testing.T) {
	c, _ := newController(t, func(_ *Config, d *deps) { d.geocoder = failingResolver{} })
	cv := newConvo(t, c)
	cv.send("Hi")
	cv.send("15061990")
	cv.send("1430")
	before := cv.session

	_, err := cv.step("London, UK")
	var failure *AdapterFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "geocoding", failure.Adapter)
	assert.Equal(t, before, cv.session)
}

func TestEditDateReturnsToConfirmation(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	for _, msg := range []string{"Hi", "15061990", "1430", "London, UK"} {
		cv.send(msg)
	}

	cv.send("Edit Date")
	assert.Equal(t, model.EditingField(model.FieldDate), cv.session.Stage)

	tr := cv.send("20021995")
	assert.Equal(t, model.AwaitingConfirmation(), cv.session.Stage)
	assert.Equal(t, "20021995", *cv.profile.BirthDate)
	assert.Contains(t, text(tr), "20/02/1995")

	// Several edit cycles are allowed before confirming.
	cv.send("edit time")
	cv.send("back")
	assert.Equal(t, model.AwaitingConfirmation(), cv.session.Stage)
	assert.Equal(t, "1430", *cv.profile.BirthTime)

	cv.send("yes")
	assert.Equal(t, model.MainMenu(), cv.session.Stage)
}

func TestConfirmationNoRestartsCollection(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	for _, msg := range []string{"Hi", "15061990", "1430", "London, UK"} {
		cv.send(msg)
	}
	cv.send("no")
	assert.Equal(t, model.AwaitingDate(), cv.session.Stage)
	assert.Nil(t, cv.profile.BirthDate)
}

func TestConfirmationWithMissingFieldRestarts(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	cv.profile = confirmedProfile()
	cv.profile.BirthPlace = nil
	cv.session.Stage = model.AwaitingConfirmation()

	tr := cv.send("yes")
	assert.Equal(t, model.AwaitingDate(), cv.session.Stage)
	assert.Contains(t, text(tr), "missing")
}

func TestLanguageFromGreetingAndEdit(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)

	tr := cv.send("🇪🇸")
	require.NotNil(t, cv.profile)
	assert.Equal(t, "es", cv.profile.PreferredLanguage)
	assert.Contains(t, text(tr), "fecha de nacimiento")

	plain := newConvo(t, c)
	tr = plain.send("es")
	require.NotNil(t, plain.profile)
	assert.Equal(t, "es", plain.profile.PreferredLanguage)
	assert.Contains(t, text(tr), "fecha de nacimiento")

	for _, msg := range []string{"15061990", "omitir", "London, UK"} {
		cv.send(msg)
	}
	assert.Equal(t, model.AwaitingConfirmation(), cv.session.Stage)

	tr = cv.send("editar idioma")
	assert.Equal(t, model.EditingField(model.FieldLanguage), cv.session.Stage)
	assert.Equal(t, []string{"English", "Español", "Français"}, tr.Replies[0].Options)

	tr = cv.send("Deutsch")
	assert.Contains(t, text(tr), "English, Español, Français")
	assert.Equal(t, model.EditingField(model.FieldLanguage), cv.session.Stage)

	tr = cv.send("Français")
	assert.Equal(t, "fr", cv.profile.PreferredLanguage)
	assert.Contains(t, text(tr), "Mis à jour")
}

func TestMenuNavigation(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	inMenu(cv)

	tr := cv.send("1")
	assert.Equal(t, model.InMenu(), cv.session.Stage)
	assert.Equal(t, []string{"horoscope"}, cv.session.MenuPath)
	assert.Contains(t, tr.Replies[0].Options, "Daily horoscope")
	assert.NotContains(t, tr.Replies[0].Options, "Monthly horoscope")

	cv.send("back")
	assert.Equal(t, model.MainMenu(), cv.session.Stage)
	assert.Empty(t, cv.session.MenuPath)

	cv.send("back")
	assert.Equal(t, model.MainMenu(), cv.session.Stage)

	cv.send("birth chart")
	assert.Equal(t, []string{"chart"}, cv.session.MenuPath)
	cv.send("Main Menu")
	assert.Empty(t, cv.session.MenuPath)
}

func TestUnknownMenuOptionKeepsPath(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	inMenu(cv, "numerology")

	tr := cv.send("tarot")
	assert.Equal(t, []string{"numerology"}, cv.session.MenuPath)
	assert.Equal(t, model.InMenu(), cv.session.Stage)
	require.Len(t, tr.Replies, 2)
	assert.Contains(t, tr.Replies[0].Body, "isn't available")
	assert.Equal(t, []string{"Life path number", "Personal year"}, tr.Replies[1].Options)
}

func TestInvalidMenuPathTruncatesToRoot(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	inMenu(cv, "divination")

	tr := cv.send("1")
	assert.Equal(t, model.MainMenu(), cv.session.Stage)
	assert.Empty(t, cv.session.MenuPath)
	assert.Contains(t, text(tr), "no longer available")
}

func TestIdleTimeoutResets(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	inMenu(cv, "chart")
	cv.session.LastActivityAt = start.Add(-31 * time.Minute)

	tr := cv.send("1")
	assert.Contains(t, tr.Replies[0].Body, "session expired")
	assert.Contains(t, text(tr), "Welcome back")
	assert.Equal(t, model.MainMenu(), cv.session.Stage)
	assert.Equal(t, start, cv.session.LastActivityAt)

	// An incomplete profile goes back to onboarding.
	cv2 := newConvo(t, c)
	cv2.send("Hi")
	cv2.session.LastActivityAt = start.Add(-2 * time.Hour)
	tr = cv2.send("15061990")
	assert.Contains(t, tr.Replies[0].Body, "session expired")
	assert.Equal(t, model.AwaitingDate(), cv2.session.Stage)
}

func TestCorruptStageResets(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	cv.session.Stage = model.ParseStage("awaiting_horoscope")

	tr := cv.send("hello")
	assert.Contains(t, tr.Replies[0].Body, "restarting")
	assert.Equal(t, model.AwaitingDate(), cv.session.Stage)

	cv.session.Stage = model.ParseStage("editing_field:zodiac")
	tr = cv.send("hello")
	assert.Contains(t, tr.Replies[0].Body, "restarting")
}

func TestContentQuotaAndUpsell(t *testing.T) {
	c, d := newController(t)
	cv := newConvo(t, c)
	inMenu(cv, "chart")

	tr := cv.send("Natal chart")
	assert.Equal(t, "reading:natal_chart:en", tr.Replies[0].Body)
	assert.Contains(t, tr.Replies[1].Body, "0 free readings")
	assert.Equal(t, 1, cv.session.UsageCounters["natal_chart"])
	assert.Equal(t, []string{"chart"}, cv.session.MenuPath)
	assert.Equal(t, []string{"natal_chart"}, tr.Used)

	// Step leaves the ledger alone; the caller records usage after commit.
	quota, err := d.ledger.CheckQuota(context.Background(), "u1", "natal_chart")
	require.NoError(t, err)
	assert.Equal(t, 1, quota.Remaining)

	tr = cv.send("1")
	assert.Empty(t, tr.Used)
	assert.Equal(t, 1, d.gen.calls)
	assert.Equal(t, 1, cv.session.UsageCounters["natal_chart"])
	assert.Equal(t, model.AwaitingSubscriptionChoice(), cv.session.Stage)
	assert.Contains(t, text(tr), "used all your free")
	assert.Equal(t, []string{"Trial", "Premium", "VIP"}, tr.Replies[len(tr.Replies)-1].Options)

	cv.send("back")
	assert.Equal(t, model.InMenu(), cv.session.Stage)
	assert.Equal(t, []string{"chart"}, cv.session.MenuPath)
}

func TestPaidUserIsNotMetered(t *testing.T) {
	c, d := newController(t)
	require.NoError(t, d.subs.Set(context.Background(), "u1", subscription.State{Tier: model.TierPremium, Status: model.StatusActive}))
	cv := newConvo(t, c)
	inMenu(cv, "chart")

	for i := 0; i < 3; i++ {
		tr := cv.send("natal chart")
		assert.Equal(t, "reading:natal_chart:en", tr.Replies[0].Body)
	}
	assert.Equal(t, model.TierPremium, cv.profile.SubscriptionTier)
	assert.Equal(t, 3, d.gen.calls)
}

func TestContentFailureIsAdapterFailure(t *testing.T) {
	c, _ := newController(t, func(_ *Config, d *deps) { d.gen.err = content.ErrUnavailable })
	cv := newConvo(t, c)
	inMenu(cv, "numerology")
	before := cv.session.Clone()

	_, err := cv.step("1")
	var failure *AdapterFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "content", failure.Adapter)
	assert.ErrorIs(t, err, content.ErrUnavailable)
	assert.Equal(t, before, cv.session)
}

func TestSubscriptionChoiceEmitsCheckout(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	inMenu(cv)

	tr := cv.send("subscription")
	assert.Equal(t, model.AwaitingSubscriptionChoice(), cv.session.Stage)
	assert.Equal(t, model.IntentList, tr.Replies[0].Kind)

	tr = cv.send("gold")
	assert.Contains(t, text(tr), "Please choose one of the plans")
	assert.Equal(t, model.AwaitingSubscriptionChoice(), cv.session.Stage)

	tr = cv.send("2")
	assert.Contains(t, tr.Replies[0].Body, "https://pay.example.com/checkout?tier=premium&user=u1")
	assert.Equal(t, model.MainMenu(), cv.session.Stage)
}

func TestTopTierHasNothingToBuy(t *testing.T) {
	c, d := newController(t)
	require.NoError(t, d.subs.Set(context.Background(), "u1", subscription.State{Tier: model.TierVIP, Status: model.StatusActive}))
	cv := newConvo(t, c)
	inMenu(cv)

	tr := cv.send("subscription")
	assert.Contains(t, text(tr), "highest plan")
	assert.Equal(t, model.MainMenu(), cv.session.Stage)
}

func TestUsageCountersResetWithPeriod(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	inMenu(cv, "chart")
	cv.session.UsageCounters = map[string]int{"natal_chart": 1}
	cv.session.UsagePeriod = "2026-09"

	tr := cv.send("natal chart")
	assert.Equal(t, "reading:natal_chart:en", tr.Replies[0].Body)
	assert.Equal(t, "2026-10", cv.session.UsagePeriod)
	assert.Equal(t, 1, cv.session.UsageCounters["natal_chart"])
}

func TestShowProfileListsPlan(t *testing.T) {
	c, _ := newController(t)
	cv := newConvo(t, c)
	inMenu(cv, "profile")

	tr := cv.send("view profile")
	assert.Contains(t, tr.Replies[0].Body, "Plan: Free (no subscription)")
	assert.Equal(t, []string{"profile"}, cv.session.MenuPath)

	cv.send("change language")
	assert.Equal(t, model.EditingField(model.FieldLanguage), cv.session.Stage)
	assert.Empty(t, cv.session.MenuPath)
}

func TestStepDoesNotMutateInput(t *testing.T) {
	c, _ := newController(t)
	sess := model.NewSession("u1", start)
	sess.Stage = model.AwaitingDate()
	p := model.NewProfile("u1", "en")

	_, err := c.Step(context.Background(), Input{Session: sess, Profile: &p, Text: "15061990", Now: start})
	require.NoError(t, err)
	assert.Nil(t, p.BirthDate)
	assert.Equal(t, model.AwaitingDate(), sess.Stage)
}

func TestNewControllerValidatesLanguages(t *testing.T) {
	catalog, err := i18n.NewCatalog("en")
	require.NoError(t, err)
	engine := menu.NewEngine(menu.DefaultTree(), catalog)

	_, err = NewController(Config{SupportedLanguages: []string{"en", "de"}, DefaultLanguage: "en"}, catalog, engine, nil, nil, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = NewController(Config{SupportedLanguages: []string{"es"}, DefaultLanguage: "en"}, catalog, engine, nil, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestMaskUserID(t *testing.T) {
	assert.Equal(t, "44****89", MaskUserID("447700900189"))
	assert.Equal(t, "****", MaskUserID("abc"))
}

func TestNewControllerWarnsOnUnreachableQuota(t *testing.T) {
	catalog, err := i18n.NewCatalog("en")
	require.NoError(t, err)
	engine := menu.NewEngine(menu.DefaultTree(), catalog)
	core, logs := observer.New(zap.WarnLevel)

	_, err = NewController(Config{
		DefaultLanguage: "en",
		FreeQuota:       map[string]int{"natal_chart": 1, "tarot_card": 3},
	}, catalog, engine, nil, nil, nil, zap.New(core))
	require.NoError(t, err)

	entries := logs.FilterMessage("free quota set for a feature free users cannot open").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "tarot_card", entries[0].ContextMap()["feature"])
}
