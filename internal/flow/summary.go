package flow

import (
	"strings"

	"go.uber.org/zap"

	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/model"
)

// summary lists the collected profile fields, and the plan when withPlan is
// set.
func (t *turn) summary(withPlan bool) string {
	p := t.profile
	lines := []string{t.tr("summary.title", nil)}

	if p.BirthDate != nil {
		lines = append(lines, t.tr("summary.date", i18n.Params{"value": formatDate(*p.BirthDate)}))
	}
	if p.BirthTime != nil {
		lines = append(lines, t.tr("summary.time", i18n.Params{"value": formatTime(*p.BirthTime)}))
	} else {
		lines = append(lines, t.tr("summary.time_skipped", nil))
	}
	if p.BirthPlace != nil {
		lines = append(lines, t.tr("summary.place", i18n.Params{"value": p.BirthPlace.Name}))
	}
	lines = append(lines, t.tr("summary.language", i18n.Params{"value": t.tr("language.name", nil)}))

	if withPlan {
		lines = append(lines, t.tr("summary.plan", i18n.Params{
			"tier":   t.tierName(p.SubscriptionTier),
			"status": t.tr("status."+string(p.SubscriptionStatus), nil),
		}))
	}
	return strings.Join(lines, "\n")
}

func (t *turn) tierName(tier model.Tier) string {
	return t.tr("tier."+string(tier), nil)
}

// formatDate renders DDMMYYYY as DD/MM/YYYY.
func formatDate(v string) string {
	if len(v) != 8 {
		return v
	}
	return v[:2] + "/" + v[2:4] + "/" + v[4:]
}

// formatTime renders HHMM as HH:MM.
func formatTime(v string) string {
	if len(v) != 4 {
		return v
	}
	return v[:2] + ":" + v[2:]
}

func zapStage(s model.Stage) zap.Field {
	return zap.String("stage", s.String())
}
