package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# extras\n\nsample\n TRAILER \n"), 0o644))

	b, err := LoadBlacklist(path)
	require.NoError(t, err)

	blocked, term := b.IsBlacklisted("Show/Show.Sample.mkv")
	assert.True(t, blocked)
	assert.Equal(t, "sample", term)

	blocked, term = b.IsBlacklisted("Show.Trailer.mp4")
	assert.True(t, blocked)
	assert.Equal(t, "TRAILER", term)

	// Directory names are not matched
	blocked, _ = b.IsBlacklisted("sample/Show.S01E01.mkv")
	assert.False(t, blocked)

	blocked, _ = b.IsBlacklisted("# extras")
	assert.False(t, blocked)
}

func TestLoadBlacklist_MissingFile(t *testing.T) {
	b, err := LoadBlacklist(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)

	blocked, _ := b.IsBlacklisted("Show.Sample.mkv")
	assert.False(t, blocked)
}

func TestReadBlacklist(t *testing.T) {
	b, err := ReadBlacklist(strings.NewReader("sample\n#comment\n\nRARBG\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())

	blocked, term := b.IsBlacklisted("show.s01e01.rarbg.mkv")
	assert.True(t, blocked)
	assert.Equal(t, "RARBG", term)
}

func TestNewBlacklist_SkipsBlankTerms(t *testing.T) {
	b := NewBlacklist("", "  ", "# note", "extras")
	assert.Equal(t, 1, b.Len())
}

func TestBlacklist_Nil(t *testing.T) {
	var b *Blacklist
	blocked, term := b.IsBlacklisted("anything.mkv")
	assert.False(t, blocked)
	assert.Empty(t, term)
	assert.Zero(t, b.Len())
}
