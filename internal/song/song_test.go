package song

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogFiltersUnusableSongs(t *testing.T) {
	catalog := NewCatalog([]Song{
		{Name: "Good", Lyrics: "Some proper lyric text"},
		{Name: "Empty", Lyrics: ""},
		{Name: "Whitespace", Lyrics: "   \n  "},
		{Name: "Scraper Miss", Lyrics: "Lyrics Not Found"},
	})
	assert.Equal(t, 1, catalog.Len())
}

func TestPickWithoutReplacement(t *testing.T) {
	catalog := NewCatalog([]Song{
		{Name: "One", Lyrics: "lyrics one"},
		{Name: "Two", Lyrics: "lyrics two"},
		{Name: "Three", Lyrics: "lyrics three"},
	})

	picked := catalog.Pick(3)
	require.Len(t, picked, 3)

	seen := map[string]bool{}
	for _, s := range picked {
		assert.False(t, seen[s.Name], "song %s picked twice", s.Name)
		seen[s.Name] = true
	}
}

func TestPickCapsAtCatalogSize(t *testing.T) {
	catalog := NewCatalog([]Song{{Name: "Only", Lyrics: "the only lyrics"}})
	assert.Len(t, catalog.Pick(10), 1)
	assert.Empty(t, catalog.Pick(0))
}

func TestEmbeddedCorpusLoads(t *testing.T) {
	catalog, err := Embedded()
	require.NoError(t, err)
	// The bundled corpus includes deliberately unusable entries; only the
	// usable ones survive.
	assert.Greater(t, catalog.Len(), 0)
	for _, s := range catalog.Pick(catalog.Len()) {
		assert.True(t, Usable(s))
	}
}
