// Package catalog loads and compiles the keyword/phrase/category document
// that drives matching and scoring. Documents are loaded with resolution
// order:
// 1. User override: the configured catalog path
// 2. Embedded default: internal/catalog/default_catalog.yaml
package catalog

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fxlatam/indago/internal/textnorm"
)

//go:embed default_catalog.yaml
var fs embed.FS

// Document is the on-disk catalog shape
type Document struct {
	Version    string        `yaml:"version" validate:"required"`
	Categories []CategoryDoc `yaml:"categories" validate:"required,min=1,dive"`
	Keywords   []KeywordDoc  `yaml:"keywords" validate:"required,min=1,dive"`
	Phrases    []PhraseDoc   `yaml:"phrases" validate:"dive"`
}

// CategoryDoc declares one scoring category
type CategoryDoc struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required"`
	Tier int    `yaml:"tier" validate:"required,min=1,max=3"`
}

// KeywordDoc declares one keyword with its alias surface forms
type KeywordDoc struct {
	ID         string   `yaml:"id" validate:"required"`
	CategoryID string   `yaml:"category_id" validate:"required"`
	Canonical  string   `yaml:"canonical" validate:"required"`
	Aliases    []string `yaml:"aliases" validate:"required,min=1,dive,required"`
}

// PhraseDoc declares one multi-token phrase
type PhraseDoc struct {
	ID     string `yaml:"id" validate:"required"`
	Phrase string `yaml:"phrase" validate:"required"`
	Tier   int    `yaml:"tier" validate:"required,min=1,max=3"`
}

// Category is the compiled category
type Category struct {
	ID   string
	Name string
	Tier int
}

// Keyword is the compiled keyword: every alias reduced to its token sequence
type Keyword struct {
	ID          string
	CategoryID  string
	Canonical   string
	AliasTokens [][]string
}

// Phrase is the compiled phrase
type Phrase struct {
	ID     string
	Tier   int
	Tokens []string
}

// Catalog is the compiled, runtime form of the document
type Catalog struct {
	Version    string
	Categories map[string]Category
	Keywords   []Keyword
	Phrases    []Phrase

	categoryOrder map[string]int
}

// CategoryOrder returns the document position of a category id, used for
// stable tie-breaks. Unknown ids sort last.
func (c *Catalog) CategoryOrder(id string) int {
	if idx, ok := c.categoryOrder[id]; ok {
		return idx
	}
	return len(c.categoryOrder)
}

// Load reads, validates and compiles a catalog. An empty path selects the
// embedded default document.
func Load(path string) (*Catalog, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = fs.ReadFile("default_catalog.yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded catalog: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
		}
	}
	return Parse(data)
}

// Parse validates and compiles a catalog document
func Parse(data []byte) (*Catalog, error) {
	// The top level must be a mapping; this also lets us distinguish a
	// missing phrases key from an empty phrases array.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog is not a valid document: %w", err)
	}
	if _, ok := raw["phrases"]; !ok {
		return nil, fmt.Errorf("catalog: phrases array is required (it may be empty)")
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog does not match the expected shape: %w", err)
	}

	if err := validator.New().Struct(&doc); err != nil {
		return nil, fmt.Errorf("catalog failed validation: %w", err)
	}

	if err := checkReferences(&doc); err != nil {
		return nil, err
	}

	return compile(&doc)
}

// checkReferences enforces id uniqueness per array and keyword->category links
func checkReferences(doc *Document) error {
	categoryIDs := make(map[string]int, len(doc.Categories))
	for i, cat := range doc.Categories {
		if prev, dup := categoryIDs[cat.ID]; dup {
			return fmt.Errorf("catalog: categories[%d] (%s): duplicate id, first seen at categories[%d]", i, cat.ID, prev)
		}
		categoryIDs[cat.ID] = i
	}

	keywordIDs := make(map[string]int, len(doc.Keywords))
	for i, kw := range doc.Keywords {
		if prev, dup := keywordIDs[kw.ID]; dup {
			return fmt.Errorf("catalog: keywords[%d] (%s): duplicate id, first seen at keywords[%d]", i, kw.ID, prev)
		}
		keywordIDs[kw.ID] = i
		if _, ok := categoryIDs[kw.CategoryID]; !ok {
			return fmt.Errorf("catalog: keywords[%d] (%s): category_id %q does not exist", i, kw.ID, kw.CategoryID)
		}
	}

	phraseIDs := make(map[string]int, len(doc.Phrases))
	for i, ph := range doc.Phrases {
		if prev, dup := phraseIDs[ph.ID]; dup {
			return fmt.Errorf("catalog: phrases[%d] (%s): duplicate id, first seen at phrases[%d]", i, ph.ID, prev)
		}
		phraseIDs[ph.ID] = i
	}

	return nil
}

// compile tokenizes every alias and phrase. Aliases that normalize to zero
// tokens are errors; identical alias token sequences within one keyword
// are dropped.
func compile(doc *Document) (*Catalog, error) {
	cat := &Catalog{
		Version:       doc.Version,
		Categories:    make(map[string]Category, len(doc.Categories)),
		Keywords:      make([]Keyword, 0, len(doc.Keywords)),
		Phrases:       make([]Phrase, 0, len(doc.Phrases)),
		categoryOrder: make(map[string]int, len(doc.Categories)),
	}

	for i, c := range doc.Categories {
		cat.Categories[c.ID] = Category{ID: c.ID, Name: c.Name, Tier: c.Tier}
		cat.categoryOrder[c.ID] = i
	}

	for _, kw := range doc.Keywords {
		compiled := Keyword{
			ID:         kw.ID,
			CategoryID: kw.CategoryID,
			Canonical:  kw.Canonical,
		}
		seen := make(map[string]bool, len(kw.Aliases))
		for _, alias := range kw.Aliases {
			tokens := textnorm.Tokens(alias)
			if len(tokens) == 0 {
				return nil, fmt.Errorf("catalog: keyword %s: alias %q normalizes to zero tokens", kw.ID, alias)
			}
			key := strings.Join(tokens, " ")
			if seen[key] {
				continue
			}
			seen[key] = true
			compiled.AliasTokens = append(compiled.AliasTokens, tokens)
		}
		cat.Keywords = append(cat.Keywords, compiled)
	}

	for _, ph := range doc.Phrases {
		tokens := textnorm.Tokens(ph.Phrase)
		if len(tokens) == 0 {
			return nil, fmt.Errorf("catalog: phrase %s: %q normalizes to zero tokens", ph.ID, ph.Phrase)
		}
		cat.Phrases = append(cat.Phrases, Phrase{ID: ph.ID, Tier: ph.Tier, Tokens: tokens})
	}

	return cat, nil
}
