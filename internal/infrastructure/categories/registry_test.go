package categories

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	var slugs []string
	for _, c := range r.List() {
		slugs = append(slugs, c.Slug)
	}
	require.Equal(t, []string{"feed_bedding", "stabling", "vet", "farrier", "transport", "competition", "insurance", "tack", "other"}, slugs)

	vet, ok := r.Resolve("vet")
	require.True(t, ok)
	require.Equal(t, "Veterinary", vet.Name)
	require.Len(t, vet.Subcategories, 3)

	_, ok = r.Resolve("VET")
	require.True(t, ok)
	_, ok = r.Resolve("spa_days")
	require.False(t, ok)
}

func TestResolvePrefersIDOverSlug(t *testing.T) {
	r, err := Parse([]byte(`
categories:
  - {id: "10", slug: feed, name: Feed}
  - {id: "20", slug: "10", name: Tricky}
`))
	require.NoError(t, err)

	byID, ok := r.Resolve("10")
	require.True(t, ok)
	require.Equal(t, "Feed", byID.Name)

	bySlug, ok := r.GetBySlug("10")
	require.True(t, ok)
	require.Equal(t, "Tricky", bySlug.Name)
}

func TestParseRejectsInvalidRegistries(t *testing.T) {
	cases := map[string]string{
		"empty":          "categories: []",
		"missing id":     "categories:\n  - {slug: a}",
		"duplicate id":   "categories:\n  - {id: a}\n  - {id: a, slug: b}",
		"duplicate slug": "categories:\n  - {id: a, slug: s}\n  - {id: b, slug: s}",
		"not yaml":       "categories: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - {id: hay}\n"), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	hay, ok := r.GetBySlug("hay")
	require.True(t, ok)
	require.Equal(t, "hay", hay.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
