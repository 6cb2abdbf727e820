// Package i18n resolves every user-facing string through a
// (language, key, params) lookup backed by JSON catalogs.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed locales/*.json
var embedded embed.FS

// Params fills {name} placeholders in a message.
type Params map[string]string

// Catalog holds translations keyed by language then message key. It is
// immutable after loading and safe for concurrent use.
type Catalog struct {
	translations map[string]map[string]string
	defaultLang  string
}

// NewCatalog loads the catalogs compiled into the binary.
func NewCatalog(defaultLang string) (*Catalog, error) {
	return Load(embedded, "locales", defaultLang)
}

// Load reads every <lang>.json file in dir.
func Load(fsys fs.FS, dir, defaultLang string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}

	c := &Catalog{
		translations: make(map[string]map[string]string),
		defaultLang:  defaultLang,
	}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		lang := strings.TrimSuffix(e.Name(), ".json")
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", lang, err)
		}
		var data map[string]string
		if err := json.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", lang, err)
		}
		c.translations[lang] = data
	}

	if _, ok := c.translations[defaultLang]; !ok {
		return nil, fmt.Errorf("default language %q has no catalog", defaultLang)
	}
	return c, nil
}

// DefaultLanguage returns the fallback language.
func (c *Catalog) DefaultLanguage() string {
	return c.defaultLang
}

// Languages returns the languages that have a catalog, sorted.
func (c *Catalog) Languages() []string {
	langs := make([]string, 0, len(c.translations))
	for l := range c.translations {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Has reports whether lang has a catalog.
func (c *Catalog) Has(lang string) bool {
	_, ok := c.translations[lang]
	return ok
}

// Keys returns the message keys of lang, sorted.
func (c *Catalog) Keys(lang string) []string {
	keys := make([]string, 0, len(c.translations[lang]))
	for k := range c.translations[lang] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// T resolves key in lang, falling back to the default language and finally
// to the key itself, then substitutes params.
func (c *Catalog) T(lang, key string, params Params) string {
	msg, ok := c.lookup(lang, key)
	if !ok {
		return key
	}
	if len(params) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// List resolves a comma-separated message as a list of trimmed entries.
func (c *Catalog) List(lang, key string) []string {
	msg, ok := c.lookup(lang, key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(msg, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) lookup(lang, key string) (string, bool) {
	if data, ok := c.translations[lang]; ok {
		if val, ok := data[key]; ok {
			return val, true
		}
	}
	if data, ok := c.translations[c.defaultLang]; ok {
		if val, ok := data[key]; ok {
			return val, true
		}
	}
	return "", false
}
