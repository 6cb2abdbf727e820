package menu

import (
	"fmt"
	"strings"

	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/model"
)

// Option is one selectable child in a rendered menu.
type Option struct {
	Node  *Node
	Label string
}

// View is a menu level resolved for one user.
type View struct {
	// Path is the valid breadcrumb; it differs from the requested path when
	// Truncated is set.
	Path       []string
	Node       *Node
	Options    []Option
	Breadcrumb string
	Truncated  bool
}

// Labels returns the option labels in display order.
func (v View) Labels() []string {
	labels := make([]string, len(v.Options))
	for i, o := range v.Options {
		labels[i] = o.Label
	}
	return labels
}

// Engine renders menu levels. It only reads the tree and is safe for
// concurrent use.
type Engine struct {
	tree    *Tree
	catalog *i18n.Catalog
}

// NewEngine returns an engine over tree.
func NewEngine(tree *Tree, catalog *i18n.Catalog) *Engine {
	return &Engine{tree: tree, catalog: catalog}
}

// Tree returns the menu the engine renders.
func (e *Engine) Tree() *Tree {
	return e.tree
}

// Resolve walks path from the root. A path element that is not a visible
// descend child of its parent for tier makes the whole path invalid, and the
// view falls back to the root.
func (e *Engine) Resolve(path []string, tier model.Tier, lang string) View {
	node := e.tree.root
	crumbs := []string{e.catalog.T(lang, node.DisplayKey, nil)}
	valid := make([]string, 0, len(path))

	for _, id := range path {
		child, ok := node.Child(id)
		if !ok || child.Action.Kind != ActionDescend || !tier.Covers(child.MinimumTier) {
			return e.view(nil, e.tree.root, tier, lang, []string{crumbs[0]}, true)
		}
		node = child
		valid = append(valid, id)
		crumbs = append(crumbs, e.catalog.T(lang, node.DisplayKey, nil))
	}
	return e.view(valid, node, tier, lang, crumbs, false)
}

func (e *Engine) view(path []string, node *Node, tier model.Tier, lang string, crumbs []string, truncated bool) View {
	v := View{
		Path:       path,
		Node:       node,
		Breadcrumb: strings.Join(crumbs, " › "),
		Truncated:  truncated,
	}
	for _, c := range node.Children {
		if !tier.Covers(c.MinimumTier) {
			continue
		}
		v.Options = append(v.Options, Option{Node: c, Label: e.catalog.T(lang, c.DisplayKey, nil)})
	}
	return v
}

// Render formats a view as message text: the breadcrumb, the numbered
// options and a navigation hint.
func (e *Engine) Render(v View, lang string) string {
	var b strings.Builder
	b.WriteString(v.Breadcrumb)
	b.WriteString("\n\n")
	for i, o := range v.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, o.Label)
	}
	b.WriteString("\n")
	if len(v.Path) > 0 {
		b.WriteString(e.catalog.T(lang, "menu.hint_nested", nil))
	} else {
		b.WriteString(e.catalog.T(lang, "menu.hint_root", nil))
	}
	return b.String()
}
