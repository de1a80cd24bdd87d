package profanity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := New([]string{"darn", "heck"})
	require.NoError(t, err)
	return f
}

func TestIsProfane(t *testing.T) {
	f := testFilter(t)

	assert.True(t, f.IsProfane("darn"))
	assert.True(t, f.IsProfane("what the HECK"))
	assert.False(t, f.IsProfane("hello there"))
	assert.False(t, f.IsProfane(""))
}

func TestCleanMasksWords(t *testing.T) {
	f := testFilter(t)

	assert.Equal(t, "**** it", f.Clean("darn it"))
	assert.Equal(t, "what the ****", f.Clean("what the heck"))
	assert.Equal(t, "hello there", f.Clean("hello there"))
}

func TestCleanCatchesDisguisedSpellings(t *testing.T) {
	f := testFilter(t)

	// Leet substitutions fold back to letters before matching.
	assert.True(t, f.IsProfane("d4rn"))
	assert.Equal(t, "****", f.Clean("d4rn"))

	// Punctuation padding inside a word is skipped during matching; the
	// masked span covers the original runes it maps to.
	assert.True(t, f.IsProfane("d.a.r.n"))

	// Case does not matter.
	assert.Equal(t, "****!", f.Clean("DARN!"))
}

func TestCleanPreservesSurroundingText(t *testing.T) {
	f := testFilter(t)
	assert.Equal(t, "well **** that was close", f.Clean("well darn that was close"))
}

func TestDefaultFilterCompiles(t *testing.T) {
	f := Default()
	assert.False(t, f.IsProfane("have a nice day"))
}

func TestNewRejectsEmptyList(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestLoadWords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.yaml")
	require.NoError(t, os.WriteFile(path, []byte("words:\n  - darn\n  - heck\n"), 0o600))

	words, err := LoadWords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"darn", "heck"}, words)

	_, err = LoadWords(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("words: []\n"), 0o600))
	_, err = LoadWords(empty)
	assert.Error(t, err)
}
