package handoff

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := Payload{
		Question: `"Line one here" / "Line two here"`,
		Answer:   "Line three ok",
		SongName: "Midnight Train Home",
	}

	raw, err := Encode("http://board.local/play", p)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, ModeHostAnswer, u.Query().Get(ModeParam))

	got, err := Decode(u.Query())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestRoundTripEmptyQuestion(t *testing.T) {
	// Identify-the-song rounds have no lyric question; the field encodes
	// empty and must decode back as such.
	p := Payload{
		Answer:   "Name That Tune",
		SongName: "Name That Tune",
	}

	raw, err := Encode("http://board.local/play", p)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	got, err := Decode(u.Query())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestRoundTripSurvivesNonASCII(t *testing.T) {
	p := Payload{
		Question: "तेरा होने लगा हूँ / खो गया हूँ",
		Answer:   "ñ, é, ü — and emoji 🎵",
		SongName: "Café Noël",
	}

	raw, err := Encode("http://board.local/", p)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	got, err := Decode(u.Query())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestEncodePreservesExistingQuery(t *testing.T) {
	raw, err := Encode("http://board.local/play?theme=dark", Payload{
		Question: "q", Answer: "a", SongName: "s",
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "dark", u.Query().Get("theme"))
}

func TestDecodeFailuresAreErrorsNotPanics(t *testing.T) {
	cases := []struct {
		name  string
		query url.Values
	}{
		{"empty", url.Values{}},
		{"missing answer", url.Values{"q": {"aGVsbG8="}}},
		{"not base64", url.Values{"q": {"%%%not-base64%%%"}, "a": {"aGVsbG8="}, "s": {"aGVsbG8="}}},
		{"invalid utf8", url.Values{"q": {"/w=="}, "a": {"aGVsbG8="}, "s": {"aGVsbG8="}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.query)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestEncodeRejectsBadBaseURL(t *testing.T) {
	_, err := Encode("://nope", Payload{})
	assert.Error(t, err)
}
