// Package catalog holds the fixed checklist of validation categories and their questions.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"github.com/myrjola/fsvalidator/internal/errors"
	"io"
	"log/slog"
	"os"
	"slices"
)

//go:embed catalog.json
var defaultCatalog []byte

var ErrInvalidCatalog = errors.NewSentinel("invalid catalog")

// Category is a named, ordered group of validation questions shown together.
type Category struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Questions   []string `json:"questions"`
}

// Contains reports whether question is one of the category's questions.
func (c Category) Contains(question string) bool {
	return slices.Contains(c.Questions, question)
}

// Empty reports whether the category is a placeholder without questions.
func (c Category) Empty() bool {
	return len(c.Questions) == 0
}

// Catalog is a read-only, ordered set of categories. The zero value is an empty catalog.
type Catalog struct {
	version    int
	categories []Category
	index      map[string]int
}

type document struct {
	Version    int        `json:"version"`
	Categories []Category `json:"categories"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	c, err := Load(bytes.NewReader(defaultCatalog))
	if err != nil {
		return nil, errors.Wrap(err, "load embedded catalog")
	}
	return c, nil
}

// LoadFile reads a catalog from a JSON file with the same layout as the embedded catalog.json.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog", slog.String("path", path))
	}
	defer func() {
		_ = f.Close()
	}()
	var c *Catalog
	if c, err = Load(f); err != nil {
		return nil, errors.Wrap(err, "load catalog", slog.String("path", path))
	}
	return c, nil
}

// Load decodes and validates a catalog.
//
// Keys must be unique and non-empty and every category needs a display name. Categories without questions are
// allowed; they are rendered as placeholders.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(ErrInvalidCatalog, err.Error())
	}

	c := Catalog{
		version:    doc.Version,
		categories: make([]Category, 0, len(doc.Categories)),
		index:      make(map[string]int, len(doc.Categories)),
	}
	for _, category := range doc.Categories {
		if category.Key == "" {
			return nil, errors.Wrap(ErrInvalidCatalog, "empty category key")
		}
		if category.Name == "" {
			return nil, errors.Wrap(ErrInvalidCatalog, "empty category name", slog.String("key", category.Key))
		}
		if _, exists := c.index[category.Key]; exists {
			return nil, errors.Wrap(ErrInvalidCatalog, "duplicate category key", slog.String("key", category.Key))
		}
		category.Questions = slices.Clone(category.Questions)
		c.index[category.Key] = len(c.categories)
		c.categories = append(c.categories, category)
	}
	return &c, nil
}

// Version identifies the revision of the checklist.
func (c *Catalog) Version() int {
	return c.version
}

// Categories returns the categories in display order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, category := range c.categories {
		category.Questions = slices.Clone(category.Questions)
		out[i] = category
	}
	return out
}

// Lookup returns the category with key.
func (c *Catalog) Lookup(key string) (Category, bool) {
	i, ok := c.index[key]
	if !ok {
		return Category{}, false
	}
	category := c.categories[i]
	category.Questions = slices.Clone(category.Questions)
	return category, true
}
