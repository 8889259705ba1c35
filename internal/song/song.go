// Package song holds the read-only song corpus the game draws rounds from.
package song

import (
	"math/rand/v2"
	"strings"
)

// Marker some lyric scrapers leave behind when they come up empty.
const missingLyricsMarker = "lyrics not found"

type Song struct {
	Name   string `json:"name"`
	Movie  string `json:"movie"`
	Lyrics string `json:"lyrics"`
	Link   string `json:"link"`
}

// Usable reports whether a song can be offered for play at all.
// Songs with no lyric text, or with the scraper's "lyrics not found"
// placeholder, are filtered out before selection.
func Usable(s Song) bool {
	lyrics := strings.TrimSpace(s.Lyrics)
	if lyrics == "" {
		return false
	}
	return !strings.Contains(strings.ToLower(lyrics), missingLyricsMarker)
}

// Catalog is an immutable set of usable songs.
type Catalog struct {
	songs []Song
}

// NewCatalog keeps only the usable entries of the given corpus.
func NewCatalog(songs []Song) *Catalog {
	usable := make([]Song, 0, len(songs))
	for _, s := range songs {
		if Usable(s) {
			usable = append(usable, s)
		}
	}
	return &Catalog{songs: usable}
}

func (c *Catalog) Len() int { return len(c.songs) }

// Pick returns up to n songs drawn without replacement, in random order.
func (c *Catalog) Pick(n int) []Song {
	shuffled := make([]Song, len(c.songs))
	copy(shuffled, c.songs)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
