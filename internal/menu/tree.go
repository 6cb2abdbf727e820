// Package menu holds the static content menu and resolves a breadcrumb path
// into the options a given user can see.
package menu

import (
	"fmt"

	"github.com/astrobot/server/internal/model"
)

// ActionKind tells the flow what selecting a node does.
type ActionKind string

const (
	ActionDescend      ActionKind = "descend"
	ActionContent      ActionKind = "content"
	ActionShowProfile  ActionKind = "show_profile"
	ActionEditProfile  ActionKind = "edit_profile"
	ActionEditLanguage ActionKind = "edit_language"
	ActionSubscribe    ActionKind = "subscribe"
)

// Action is what happens when a node is selected.
type Action struct {
	Kind ActionKind
	// Request is the content request kind for ActionContent.
	Request string
}

// Node is one entry of the menu tree.
type Node struct {
	ID          string
	DisplayKey  string
	MinimumTier model.Tier
	Action      Action
	Children    []*Node
}

// Child returns the direct child with the given id.
func (n *Node) Child(id string) (*Node, bool) {
	for _, c := range n.Children {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Tree is a validated, read-only menu.
type Tree struct {
	root *Node
}

// NewTree validates root: ids are unique among siblings and every descend
// node has children.
func NewTree(root *Node) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("menu root is nil")
	}
	if err := check(root); err != nil {
		return nil, err
	}
	return &Tree{root: root}, nil
}

func check(n *Node) error {
	if n.Action.Kind == ActionDescend && len(n.Children) == 0 {
		return fmt.Errorf("menu node %q descends but has no children", n.ID)
	}
	if n.Action.Kind == ActionContent && n.Action.Request == "" {
		return fmt.Errorf("menu node %q has no content request", n.ID)
	}
	seen := make(map[string]bool, len(n.Children))
	for _, c := range n.Children {
		if c.ID == "" {
			return fmt.Errorf("menu node under %q has no id", n.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate menu node %q under %q", c.ID, n.ID)
		}
		seen[c.ID] = true
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.root
}

// ContentFor lists the content requests a user of tier can reach, in tree
// order. A node is reachable when it and all its ancestors are covered.
func (t *Tree) ContentFor(tier model.Tier) []string {
	var out []string
	var walk func(n *Node)
	walk = func(n *Node) {
		if !tier.Covers(n.MinimumTier) {
			return
		}
		if n.Action.Kind == ActionContent {
			out = append(out, n.Action.Request)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

func descend(id, key string, tier model.Tier, children ...*Node) *Node {
	return &Node{ID: id, DisplayKey: key, MinimumTier: tier, Action: Action{Kind: ActionDescend}, Children: children}
}

func leaf(id, key string, tier model.Tier, action Action) *Node {
	return &Node{ID: id, DisplayKey: key, MinimumTier: tier, Action: action}
}

func content(request string) Action {
	return Action{Kind: ActionContent, Request: request}
}

// DefaultTree is the menu served in production.
func DefaultTree() *Tree {
	root := descend("main", "menu.main", model.TierFree,
		descend("horoscope", "menu.horoscope", model.TierFree,
			leaf("daily", "menu.horoscope.daily", model.TierFree, content("daily_horoscope")),
			leaf("weekly", "menu.horoscope.weekly", model.TierFree, content("weekly_horoscope")),
			leaf("monthly", "menu.horoscope.monthly", model.TierPremium, content("monthly_horoscope")),
		),
		descend("chart", "menu.chart", model.TierFree,
			leaf("natal", "menu.chart.natal", model.TierFree, content("natal_chart")),
			leaf("transits", "menu.chart.transits", model.TierTrial, content("transits")),
			leaf("solar_return", "menu.chart.solar_return", model.TierPremium, content("solar_return")),
		),
		descend("numerology", "menu.numerology", model.TierFree,
			leaf("life_path", "menu.numerology.life_path", model.TierFree, content("life_path")),
			leaf("personal_year", "menu.numerology.personal_year", model.TierFree, content("personal_year")),
		),
		descend("divination", "menu.divination", model.TierTrial,
			leaf("tarot_card", "menu.divination.tarot_card", model.TierTrial, content("tarot_card")),
			leaf("tarot_spread", "menu.divination.tarot_spread", model.TierPremium, content("tarot_spread")),
			leaf("iching", "menu.divination.iching", model.TierVIP, content("iching")),
		),
		descend("profile", "menu.profile", model.TierFree,
			leaf("view", "menu.profile.view", model.TierFree, Action{Kind: ActionShowProfile}),
			leaf("edit", "menu.profile.edit", model.TierFree, Action{Kind: ActionEditProfile}),
			leaf("language", "menu.profile.language", model.TierFree, Action{Kind: ActionEditLanguage}),
		),
		leaf("subscription", "menu.subscription", model.TierFree, Action{Kind: ActionSubscribe}),
	)
	tree, err := NewTree(root)
	if err != nil {
		panic(err)
	}
	return tree
}
