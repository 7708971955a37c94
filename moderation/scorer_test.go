package moderation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordScorer(t *testing.T) {
	assert := assert.New(t)

	scorer := NewKeywordScorer(map[string]float64{
		"zorblat": 1.0,
		"frumble": 2.5,
	})

	fixtures := []struct {
		text string
		out  float64
	}{
		{out: 0, text: ""},
		{out: 0, text: "hello there"},
		{out: 1.0, text: "zorblat"},
		{out: 1.0, text: "ZORBLAT!!"},
		{out: 1.0, text: "total zorblat, honestly"},
		{out: 1.0, text: "zörblat"},
		{out: 1.0, text: "z o r b l a t"},
		{out: 1.0, text: "z-o-r-b-l-a-t"},
		{out: 2.5, text: "zorblat and frumble"},
		{out: 2.5, text: "what a frumble"},
	}
	for _, fix := range fixtures {
		assert.Equal(fix.out, scorer.Score(fix.text), "text %q", fix.text)
	}
}

func TestTokenize(t *testing.T) {
	assert := assert.New(t)

	assert.Empty(Tokenize(""))
	assert.Equal([]string{"hello", "world"}, Tokenize("Hello, World!"))
	assert.Equal([]string{"uber", "cafe"}, Tokenize("über café"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "helloworld", Slugify("Hello, World!"))
	assert.Equal(t, "abc123", Slugify("a-b c_1+2=3"))
}

func TestLoadKeywordScorer(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "blocklist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nzorblat\nfrumble 2.5\n\n"), 0600))

	scorer, err := LoadKeywordScorer(path)
	require.NoError(t, err)
	assert.Equal(1.0, scorer.Score("zorblat"))
	assert.Equal(2.5, scorer.Score("frumble"))

	// Missing file is fine, the scorer just never matches
	scorer, err = LoadKeywordScorer(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	assert.Equal(0.0, scorer.Score("zorblat"))
}
