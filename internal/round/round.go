// Package round turns raw song data into playable round content: a two-line
// lyric question with the following line as the answer, or a plain
// identify-the-song round.
package round

import (
	"errors"
	"math/rand/v2"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"songbuzz/internal/song"
)

var (
	ErrNotEnoughLines = errors.New("not enough usable lyric lines")
	ErrNoSongName     = errors.New("song has no name")
	ErrUnknownMode    = errors.New("unknown round mode")
)

type Mode string

const (
	ModeLyrics Mode = "lyrics"
	ModeSong   Mode = "song"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLyrics, ModeSong:
		return Mode(s), nil
	default:
		return "", ErrUnknownMode
	}
}

// Content is an immutable, generated round. Type tags which fields are
// populated: lyrics rounds carry the question window and full transcript,
// song rounds carry only the name as the answer.
type Content struct {
	Type               Mode     `json:"type"`
	SongName           string   `json:"songName"`
	Movie              string   `json:"movie"`
	MediaID            string   `json:"mediaId"`
	QuestionLines      []string `json:"questionLines,omitempty"`
	AnswerLine         string   `json:"answerLine"`
	AllLines           []string `json:"allLines,omitempty"`
	QuestionStartIndex int      `json:"questionStartIndex"`
}

// Generator produces round content. The random draw used to place the
// question window is injectable so tests can pin it.
type Generator struct {
	intn func(n int) int
	log  *zap.Logger
}

func NewGenerator(log *zap.Logger) *Generator {
	return &Generator{intn: rand.IntN, log: log}
}

// NewGeneratorWithRand pins the random source. Tests use this to make
// window selection deterministic.
func NewGeneratorWithRand(intn func(n int) int, log *zap.Logger) *Generator {
	return &Generator{intn: intn, log: log}
}

// Generate builds round content for the given song and mode. A lyrics round
// needs at least three lines to survive normalization; fewer returns
// ErrNotEnoughLines, which callers treat as "skip this song".
func (g *Generator) Generate(s song.Song, mode Mode) (Content, error) {
	if strings.TrimSpace(s.Name) == "" {
		return Content{}, ErrNoSongName
	}

	mediaID := g.extractMediaID(s.Link)

	switch mode {
	case ModeSong:
		return Content{
			Type:       ModeSong,
			SongName:   s.Name,
			Movie:      s.Movie,
			MediaID:    mediaID,
			AnswerLine: s.Name,
		}, nil

	case ModeLyrics:
		lines := CleanLines(s.Lyrics)
		if len(lines) < 3 {
			return Content{}, ErrNotEnoughLines
		}

		start := g.pickWindow(lines)
		return Content{
			Type:               ModeLyrics,
			SongName:           s.Name,
			Movie:              s.Movie,
			MediaID:            mediaID,
			QuestionLines:      []string{lines[start], lines[start+1]},
			AnswerLine:         lines[start+2],
			AllLines:           lines,
			QuestionStartIndex: start,
		}, nil

	default:
		return Content{}, ErrUnknownMode
	}
}

// pickWindow chooses a question start index: any i where lines i and i+1 are
// long enough to quote and i+2 is long enough to answer with. If no index
// passes the strict test, index 0 is used rather than failing the round.
func (g *Generator) pickWindow(lines []string) int {
	var candidates []int
	for i := 0; i <= len(lines)-3; i++ {
		if runeLen(lines[i]) > 5 && runeLen(lines[i+1]) > 5 && runeLen(lines[i+2]) > 2 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0
	}
	return candidates[g.intn(len(candidates))]
}

var (
	// Bracketed metadata or LRC tags at line start, e.g. [ti:Name] or [00:12.34].
	bracketTag = regexp.MustCompile(`^\[.*\]`)
	// A bare bracketed number, e.g. [2].
	bracketNumber = regexp.MustCompile(`^\[\d+\]$`)
	// A line that is exactly a structural marker, optionally wrapped in
	// brackets or parens and optionally suffixed with a colon.
	structuralMarker = regexp.MustCompile(`(?i)^[\[(]?(instrumental|music|interlude|bridge|chorus|verse|intro|outro|repeat|solo)[\])]?:?$`)
	// Trailing repeat annotations: (x2), (2x2)... and (repeat).
	repeatCount = regexp.MustCompile(`(?i)\s*\(\d?x\d+\)\s*$`)
	repeatWord  = regexp.MustCompile(`(?i)\s*\(repeat\)\s*$`)
)

// CleanLines normalizes raw lyric text into playable lines. Checks run in
// a fixed order: markers are matched on the raw line, so a stripped line
// like "Chorus" that re-reads as a marker still survives.
func CleanLines(raw string) []string {
	var cleaned []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if runeLen(line) <= 2 {
			continue
		}
		if bracketTag.MatchString(line) || bracketNumber.MatchString(line) {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "ti:") || strings.Contains(lower, "ar:") || strings.Contains(lower, "al:") {
			continue
		}
		if structuralMarker.MatchString(line) {
			continue
		}

		line = repeatCount.ReplaceAllString(line, "")
		line = repeatWord.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)

		if runeLen(line) <= 5 {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return cleaned
}

// extractMediaID pulls a video identifier out of a song link: the first path
// segment for short links, otherwise the "v" query parameter. Malformed
// links yield an empty id; a round without media is still playable.
func (g *Generator) extractMediaID(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		if g.log != nil {
			g.log.Warn("unparseable media link", zap.String("link", link))
		}
		return ""
	}
	if u.Hostname() == "youtu.be" {
		path := strings.TrimPrefix(u.Path, "/")
		if i := strings.IndexByte(path, '/'); i >= 0 {
			path = path[:i]
		}
		return path
	}
	return u.Query().Get("v")
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
