package validate

import (
	"strconv"
	"strings"

	"github.com/astrobot/server/internal/model"
)

// Keyword is a universal command understood in every menu.
type Keyword string

const (
	KeywordBack     Keyword = "back"
	KeywordMainMenu Keyword = "main_menu"
	KeywordSkip     Keyword = "skip"
	KeywordYes      Keyword = "yes"
	KeywordNo       Keyword = "no"
)

// UniversalKeywords lists the keywords in matching order.
var UniversalKeywords = []Keyword{KeywordBack, KeywordMainMenu, KeywordSkip, KeywordYes, KeywordNo}

// Vocabulary holds the accepted spellings of each keyword and of the edit
// command for one language. Spellings are compared after normalization.
type Vocabulary struct {
	Keywords map[Keyword][]string
	Edit     []string
	Fields   map[model.Field][]string
}

// Match is the result of matching input against a menu.
type Match struct {
	Keyword Keyword
	// Option is the index of the selected option, or -1.
	Option int
}

// Matched reports whether the input resolved to anything.
func (m Match) Matched() bool {
	return m.Keyword != "" || m.Option >= 0
}

// MenuKeyword matches input against the universal keywords, then against the
// visible option labels (by 1-based number or by label, case-insensitive,
// ignoring leading emoji).
func MenuKeyword(input string, vocab Vocabulary, options []string) Match {
	s := normalize(input)
	if s == "" {
		return Match{Option: -1}
	}
	for _, kw := range UniversalKeywords {
		for _, alias := range vocab.Keywords[kw] {
			if s == normalize(alias) {
				return Match{Keyword: kw, Option: -1}
			}
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(options) {
		return Match{Option: n - 1}
	}
	bare := stripDecoration(s)
	for i, label := range options {
		l := normalize(label)
		if s == l || bare == stripDecoration(l) {
			return Match{Option: i}
		}
	}
	return Match{Option: -1}
}

// Is reports whether input is exactly one of the spellings of kw.
func (v Vocabulary) Is(input string, kw Keyword) bool {
	s := normalize(input)
	for _, alias := range v.Keywords[kw] {
		if s == normalize(alias) {
			return true
		}
	}
	return false
}

// EditCommand parses "edit <field>" (or a bare field name) into a field.
func EditCommand(input string, vocab Vocabulary) (model.Field, bool) {
	s := normalize(input)
	for _, verb := range vocab.Edit {
		verb = normalize(verb)
		if rest, ok := strings.CutPrefix(s, verb+" "); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}
	for _, f := range model.EditableFields {
		for _, alias := range vocab.Fields[f] {
			if s == normalize(alias) {
				return f, true
			}
		}
	}
	return "", false
}
