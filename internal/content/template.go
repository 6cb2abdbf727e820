package content

import (
	"context"
	"fmt"
	"strconv"

	"github.com/astrobot/server/internal/i18n"
)

// TemplateGenerator renders readings from catalog templates. It needs no
// external service and is the fallback when no model is configured.
type TemplateGenerator struct {
	catalog *i18n.Catalog
}

func NewTemplateGenerator(catalog *i18n.Catalog) *TemplateGenerator {
	return &TemplateGenerator{catalog: catalog}
}

func (g *TemplateGenerator) Generate(_ context.Context, req Request) (Rendered, error) {
	key := "content." + req.Kind
	if !g.catalog.Has(req.Language) && req.Language != "" {
		req.Language = g.catalog.DefaultLanguage()
	}
	if g.catalog.T(req.Language, key, nil) == key {
		return Rendered{}, fmt.Errorf("no template for %q", req.Kind)
	}
	if req.Profile.BirthDate == nil {
		return Rendered{}, fmt.Errorf("profile %s has no birth date", req.Profile.UserID)
	}

	birth := *req.Profile.BirthDate
	day, month, _, ok := parseBirthDate(birth)
	if !ok {
		return Rendered{}, fmt.Errorf("malformed birth date %q", birth)
	}
	today := req.Now.Format("2006-01-02")

	params := i18n.Params{
		"sign":          g.catalog.T(req.Language, "sign."+SunSign(day, month), nil),
		"date":          req.Now.Format("02/01/2006"),
		"year":          strconv.Itoa(req.Now.Year()),
		"life_path":     strconv.Itoa(LifePath(birth)),
		"personal_year": strconv.Itoa(PersonalYear(birth, req.Now.Year())),
		"card":          majorArcana[draw(len(majorArcana), req.Profile.UserID, today, req.Kind, "1")],
		"card2":         majorArcana[draw(len(majorArcana), req.Profile.UserID, today, req.Kind, "2")],
		"card3":         majorArcana[draw(len(majorArcana), req.Profile.UserID, today, req.Kind, "3")],
		"hexagram":      strconv.Itoa(draw(64, req.Profile.UserID, today, req.Kind) + 1),
	}
	if req.Kind == "natal_chart" {
		params["date"] = birth[:2] + "/" + birth[2:4] + "/" + birth[4:]
	}
	if p := req.Profile.BirthPlace; p != nil {
		params["place"] = p.Name
	}
	return Rendered{Text: g.catalog.T(req.Language, key, params)}, nil
}
