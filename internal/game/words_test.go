package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticWordsDrawsFromList(t *testing.T) {
	source := NewStaticWords(1, "piano", "tuba")
	for i := 0; i < 20; i++ {
		assert.Contains(t, []string{"piano", "tuba"}, source.Draw())
	}
}

func TestStaticWordsFallsBackToBuiltins(t *testing.T) {
	source := NewStaticWords(1)
	assert.NotEmpty(t, source.Draw())
}

func TestLoadWordsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.csv")
	require.NoError(t, os.WriteFile(path, []byte("piano,3\ntuba\n\n  ,1\nice cream,2\n"), 0o644))

	words, err := LoadWordsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"piano", "tuba", "ice cream"}, words)
}

func TestLoadWordsFileErrors(t *testing.T) {
	_, err := LoadWordsFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = LoadWordsFile(empty)
	assert.Error(t, err)
}
