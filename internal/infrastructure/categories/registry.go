// Package categories loads the read-only spend category registry.
package categories

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

//go:embed default_categories.yaml
var defaultCategories []byte

type file struct {
	Categories []domain.Category `yaml:"categories"`
}

// Registry is immutable after load and safe for concurrent use.
type Registry struct {
	ordered []domain.Category
	byID    map[string]int
	bySlug  map[string]int
}

// Load reads path, or the embedded default set when path is empty.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultCategories)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return New(f.Categories)
}

// New validates categories and indexes them. Slugs are lowercased and default
// to the id; ids and slugs must be unique across top-level categories.
func New(categories []domain.Category) (*Registry, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("category registry is empty")
	}
	r := &Registry{
		ordered: make([]domain.Category, 0, len(categories)),
		byID:    make(map[string]int, len(categories)),
		bySlug:  make(map[string]int, len(categories)),
	}
	for idx, c := range categories {
		c.ID = strings.TrimSpace(c.ID)
		c.Slug = strings.ToLower(strings.TrimSpace(c.Slug))
		if c.ID == "" {
			return nil, fmt.Errorf("category %d has no id", idx)
		}
		if c.Slug == "" {
			c.Slug = strings.ToLower(c.ID)
		}
		if c.Name == "" {
			c.Name = c.Slug
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %q", c.ID)
		}
		if _, dup := r.bySlug[c.Slug]; dup {
			return nil, fmt.Errorf("duplicate category slug %q", c.Slug)
		}
		r.byID[c.ID] = len(r.ordered)
		r.bySlug[c.Slug] = len(r.ordered)
		r.ordered = append(r.ordered, c)
	}
	return r, nil
}

func (r *Registry) Get(id string) (domain.Category, bool) {
	pos, ok := r.byID[id]
	if !ok {
		return domain.Category{}, false
	}
	return r.ordered[pos], true
}

func (r *Registry) GetBySlug(slug string) (domain.Category, bool) {
	pos, ok := r.bySlug[strings.ToLower(slug)]
	if !ok {
		return domain.Category{}, false
	}
	return r.ordered[pos], true
}

func (r *Registry) Resolve(ref string) (domain.Category, bool) {
	if c, ok := r.Get(ref); ok {
		return c, true
	}
	return r.GetBySlug(ref)
}

func (r *Registry) List() []domain.Category {
	out := make([]domain.Category, len(r.ordered))
	copy(out, r.ordered)
	return out
}
