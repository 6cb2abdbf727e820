package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/model"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	catalog, err := i18n.NewCatalog("en")
	require.NoError(t, err)
	return NewEngine(DefaultTree(), catalog)
}

func TestResolve_filtersByTier(t *testing.T) {
	e := newEngine(t)

	free := e.Resolve(nil, model.TierFree, "en")
	assert.False(t, free.Truncated)
	assert.Equal(t, []string{"🔮 Horoscopes", "🪐 Birth chart", "🔢 Numerology", "👤 My profile", "⭐ Subscription"}, free.Labels())

	trial := e.Resolve(nil, model.TierTrial, "en")
	assert.Contains(t, trial.Labels(), "🃏 Divination")

	chart := e.Resolve([]string{"chart"}, model.TierFree, "en")
	assert.Equal(t, []string{"Natal chart"}, chart.Labels())
	assert.Equal(t, "🏠 Main menu › 🪐 Birth chart", chart.Breadcrumb)

	vip := e.Resolve([]string{"chart"}, model.TierVIP, "en")
	assert.Len(t, vip.Options, 3)
}

func TestResolve_invalidPathTruncatesToRoot(t *testing.T) {
	e := newEngine(t)
	for _, path := range [][]string{
		{"gone"},
		{"horoscope", "daily"},
		{"divination"},
		{"chart", "natal", "x"},
	} {
		v := e.Resolve(path, model.TierFree, "en")
		assert.True(t, v.Truncated, "%v", path)
		assert.Empty(t, v.Path)
		assert.Equal(t, "main", v.Node.ID)
	}

	v := e.Resolve([]string{"divination"}, model.TierTrial, "en")
	assert.False(t, v.Truncated)
	assert.Equal(t, []string{"divination"}, v.Path)
}

func TestResolve_localizesLabels(t *testing.T) {
	e := newEngine(t)
	v := e.Resolve([]string{"numerology"}, model.TierFree, "es")
	assert.Equal(t, "🏠 Menú principal › 🔢 Numerología", v.Breadcrumb)
	assert.Equal(t, "Número de camino de vida", v.Options[0].Label)
}

func TestRender_numbersOptions(t *testing.T) {
	e := newEngine(t)
	v := e.Resolve([]string{"numerology"}, model.TierFree, "en")
	out := e.Render(v, "en")
	assert.Contains(t, out, "1. Life path number\n2. Personal year")
	assert.Contains(t, out, `"back"`)
}

func TestNewTree_rejectsBrokenTrees(t *testing.T) {
	_, err := NewTree(descend("main", "menu.main", model.TierFree))
	assert.Error(t, err)

	_, err = NewTree(descend("main", "menu.main", model.TierFree,
		leaf("a", "a", model.TierFree, content("x")),
		leaf("a", "b", model.TierFree, content("y")),
	))
	assert.Error(t, err)

	_, err = NewTree(descend("main", "menu.main", model.TierFree,
		leaf("a", "a", model.TierFree, Action{Kind: ActionContent}),
	))
	assert.Error(t, err)
}

func TestContentFor_respectsAncestorTiers(t *testing.T) {
	tree := DefaultTree()

	free := tree.ContentFor(model.TierFree)
	assert.Equal(t, []string{"daily_horoscope", "weekly_horoscope", "natal_chart", "life_path", "personal_year"}, free)
	assert.NotContains(t, free, "tarot_card")

	trial := tree.ContentFor(model.TierTrial)
	assert.Contains(t, trial, "tarot_card")
	assert.Contains(t, trial, "transits")
	assert.NotContains(t, trial, "iching")

	assert.Len(t, tree.ContentFor(model.TierVIP), 11)
}
