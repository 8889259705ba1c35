// Package handoff builds and parses the URL that carries a round's answer
// to the host's second device, out of band from the room snapshot stream.
// Each field is base64-encoded UTF-8 and then percent-encoded into its own
// query parameter, so the link survives chat apps and QR scanners intact.
package handoff

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"unicode/utf8"
)

var ErrInvalidPayload = errors.New("invalid hand-off payload")

const (
	// ModeParam marks the board URL as the host-answer view.
	ModeParam      = "mode"
	ModeHostAnswer = "host"

	questionParam = "q"
	answerParam   = "a"
	songParam     = "s"
)

type Payload struct {
	Question string
	Answer   string
	SongName string
}

// Encode returns the host-answer URL for the given board base URL.
func Encode(baseURL string, p Payload) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(ModeParam, ModeHostAnswer)
	q.Set(questionParam, encodeField(p.Question))
	q.Set(answerParam, encodeField(p.Answer))
	q.Set(songParam, encodeField(p.SongName))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Decode reverses Encode. Any absent or undecodable parameter yields
// ErrInvalidPayload; callers render a fixed "no data" view instead of
// crashing. An empty value is legitimate: a round with no lyric question
// encodes an empty question field.
func Decode(query url.Values) (Payload, error) {
	for _, key := range [...]string{questionParam, answerParam, songParam} {
		if !query.Has(key) {
			return Payload{}, ErrInvalidPayload
		}
	}
	question, err := decodeField(query.Get(questionParam))
	if err != nil {
		return Payload{}, err
	}
	answer, err := decodeField(query.Get(answerParam))
	if err != nil {
		return Payload{}, err
	}
	songName, err := decodeField(query.Get(songParam))
	if err != nil {
		return Payload{}, err
	}
	return Payload{Question: question, Answer: answer, SongName: songName}, nil
}

func encodeField(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func decodeField(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", ErrInvalidPayload
	}
	if !utf8.Valid(raw) {
		return "", ErrInvalidPayload
	}
	return string(raw), nil
}
