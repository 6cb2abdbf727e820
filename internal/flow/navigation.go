package flow

import (
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/astrobot/server/internal/content"
	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/menu"
	"github.com/astrobot/server/internal/model"
	"github.com/astrobot/server/internal/subscription"
	"github.com/astrobot/server/internal/validate"
)

// showMenu renders the menu at path, falling back to the root when path is
// no longer valid for the user.
func (t *turn) showMenu(path []string) {
	view := t.c.menu.Resolve(path, t.tier(), t.lang())
	if view.Truncated {
		t.logger().Warn("invalid menu path, returning to root", zap.Strings("path", path))
		t.say("notice.menu_reset", nil)
	}
	t.render(view)
}

func (t *turn) render(view menu.View) {
	t.session.MenuPath = append([]string(nil), view.Path...)
	if len(view.Path) == 0 {
		t.session.Stage = model.MainMenu()
	} else {
		t.session.Stage = model.InMenu()
	}
	t.reply(Reply{
		Body:    t.c.menu.Render(view, t.lang()),
		Kind:    model.IntentList,
		Options: view.Labels(),
	})
}

func (t *turn) navigate() error {
	if t.profile == nil || !t.profile.Confirmed() {
		t.restartOnboarding()
		return nil
	}

	view := t.c.menu.Resolve(t.session.MenuPath, t.tier(), t.lang())
	if view.Truncated {
		t.logger().Warn("invalid menu path, returning to root", zap.Strings("path", t.session.MenuPath))
		t.say("notice.menu_reset", nil)
		t.render(view)
		return nil
	}

	m := validate.MenuKeyword(t.text, t.vocab(), view.Labels())
	switch {
	case m.Keyword == validate.KeywordBack:
		path := view.Path
		if len(path) > 0 {
			path = path[:len(path)-1]
		}
		t.showMenu(path)
	case m.Keyword == validate.KeywordMainMenu:
		t.showMenu(nil)
	case m.Option >= 0:
		return t.selectNode(view, view.Options[m.Option].Node)
	default:
		t.say("menu.not_available", nil)
		t.render(view)
	}
	return nil
}

func (t *turn) selectNode(view menu.View, node *menu.Node) error {
	switch node.Action.Kind {
	case menu.ActionDescend:
		t.showMenu(append(append([]string(nil), view.Path...), node.ID))
	case menu.ActionContent:
		return t.runContent(view, node)
	case menu.ActionShowProfile:
		t.sayText(t.summary(true))
		t.render(view)
	case menu.ActionEditProfile:
		t.toConfirmation()
	case menu.ActionEditLanguage:
		t.startEdit(model.FieldLanguage)
	case menu.ActionSubscribe:
		return t.offerSubscription(view.Path)
	}
	return nil
}

// syncSubscription refreshes the cached tier from the ledger, once per turn.
func (t *turn) syncSubscription() error {
	if t.synced {
		return nil
	}
	st, err := t.c.ledger.GetSubscriptionState(t.ctx, t.session.UserID)
	if err != nil {
		return &AdapterFailure{Adapter: "subscription", Err: err}
	}
	t.synced = true
	if t.profile.SubscriptionTier != st.Tier || t.profile.SubscriptionStatus != st.Status {
		t.profile.SubscriptionTier = st.Tier
		t.profile.SubscriptionStatus = st.Status
		t.profileChanged = true
	}
	return nil
}

// runContent gates a content node on tier and quota, then generates it. A
// refused request does not touch the usage counters.
func (t *turn) runContent(view menu.View, node *menu.Node) error {
	feature := node.Action.Request
	label := t.tr(node.DisplayKey, nil)

	if err := t.syncSubscription(); err != nil {
		return err
	}
	tier := t.tier()
	if !tier.Covers(node.MinimumTier) {
		t.say("upsell.locked", i18n.Params{"feature": label, "tier": t.tierName(node.MinimumTier)})
		return t.offerSubscription(view.Path)
	}
	if tier == model.TierFree {
		if limit, ok := t.c.cfg.FreeQuota[feature]; ok && t.session.UsageCounters[feature] >= limit {
			t.say("upsell.quota", i18n.Params{"feature": label})
			return t.offerSubscription(view.Path)
		}
	}

	quota, err := t.c.ledger.CheckQuota(t.ctx, t.session.UserID, feature)
	if err != nil {
		return &AdapterFailure{Adapter: "subscription", Err: err}
	}
	if !quota.Allowed {
		t.say("upsell.quota", i18n.Params{"feature": label})
		return t.offerSubscription(view.Path)
	}

	out, err := t.c.content.Generate(t.ctx, content.Request{
		Kind:     feature,
		Profile:  *t.profile,
		Language: t.lang(),
		Now:      t.now,
	})
	if err != nil {
		return &AdapterFailure{Adapter: "content", Err: err}
	}

	t.session.UsageCounters[feature]++
	t.used = append(t.used, feature)

	t.sayText(out.Text)
	if quota.Remaining != subscription.Unlimited {
		remaining := quota.Remaining - 1
		if remaining < 0 {
			remaining = 0
		}
		t.say("quota.remaining", i18n.Params{"remaining": strconv.Itoa(remaining)})
	}
	t.showMenu(view.Path)
	return nil
}

// upgradeTiers are the paid tiers above the current one.
func (t *turn) upgradeTiers() []model.Tier {
	var out []model.Tier
	for _, tier := range model.PaidTiers {
		if tier.Rank() > t.tier().Rank() {
			out = append(out, tier)
		}
	}
	return out
}

// offerSubscription moves to the plan choice, remembering origin as the menu
// path to return to.
func (t *turn) offerSubscription(origin []string) error {
	if err := t.syncSubscription(); err != nil {
		return err
	}
	tiers := t.upgradeTiers()
	if len(tiers) == 0 {
		t.say("upsell.top_tier", nil)
		t.showMenu(origin)
		return nil
	}
	t.session.Stage = model.AwaitingSubscriptionChoice()
	t.session.MenuPath = append([]string(nil), origin...)
	t.listPlans(tiers)
	return nil
}

func (t *turn) listPlans(tiers []model.Tier) {
	labels := make([]string, len(tiers))
	for i, tier := range tiers {
		labels[i] = t.tierName(tier)
	}
	body := t.tr("upsell.choose", i18n.Params{"tier": t.tierName(t.tier())})
	for i, l := range labels {
		body += "\n" + strconv.Itoa(i+1) + ". " + l
	}
	t.reply(Reply{Body: body, Kind: model.IntentList, Options: labels})
}

func (t *turn) subscriptionChoice() {
	if t.profile == nil || !t.profile.Confirmed() {
		t.restartOnboarding()
		return
	}
	tiers := t.upgradeTiers()
	if len(tiers) == 0 {
		t.say("upsell.top_tier", nil)
		t.showMenu(t.session.MenuPath)
		return
	}
	labels := make([]string, len(tiers))
	for i, tier := range tiers {
		labels[i] = t.tierName(tier)
	}

	m := validate.MenuKeyword(t.text, t.vocab(), labels)
	switch {
	case m.Keyword == validate.KeywordBack || m.Keyword == validate.KeywordNo:
		t.showMenu(t.session.MenuPath)
	case m.Keyword == validate.KeywordMainMenu:
		t.showMenu(nil)
	case m.Option >= 0:
		t.checkout(tiers[m.Option])
		t.showMenu(nil)
	default:
		t.say("error.subscription_choice", nil)
		t.listPlans(tiers)
	}
}

// checkout emits the upgrade intent. Payment itself happens elsewhere.
func (t *turn) checkout(tier model.Tier) {
	t.logger().Info("checkout requested", zap.String("tier", string(tier)))
	name := t.tierName(tier)
	if t.c.cfg.CheckoutURL == "" {
		t.say("subscription.contact", i18n.Params{"tier": name})
		return
	}
	u, err := url.Parse(t.c.cfg.CheckoutURL)
	if err != nil {
		t.logger().Error("invalid checkout url", zap.Error(err))
		t.say("subscription.contact", i18n.Params{"tier": name})
		return
	}
	q := u.Query()
	q.Set("user", t.session.UserID)
	q.Set("tier", string(tier))
	u.RawQuery = q.Encode()
	t.say("subscription.checkout", i18n.Params{"tier": name, "url": u.String()})
}
