package fetch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerMissingArchive(t *testing.T) {
	l, err := OpenLedger(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Has(mustSong(t, "abc")))
}

func TestLedgerAppendAndReload(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenLedger(dir)
	require.NoError(t, err)

	id := mustSong(t, "abc")
	require.NoError(t, l.Append(id))
	require.NoError(t, l.Append(id))
	assert.True(t, l.Has(id))

	data, err := os.ReadFile(filepath.Join(dir, ArchiveFile))
	require.NoError(t, err)
	assert.Equal(t, "youtube abc\n", string(data))

	// Lines written by the downloader show up after a reload.
	f, err := os.OpenFile(filepath.Join(dir, ArchiveFile), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("youtube def\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.False(t, l.Has(mustSong(t, "def")))
	require.NoError(t, l.Reload())
	assert.True(t, l.Has(mustSong(t, "def")))
	assert.Equal(t, 2, l.Len())
}

func TestLedgerRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ArchiveFile)
	require.NoError(t, os.WriteFile(path, []byte("youtube a\nyoutube b\n\nyoutube c\n"), 0644))

	l, err := OpenLedger(dir)
	require.NoError(t, err)
	require.NoError(t, l.Remove(mustSong(t, "b")))
	require.NoError(t, l.Remove(mustSong(t, "zzz")))

	assert.False(t, l.Has(mustSong(t, "b")))
	assert.Equal(t, 2, l.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "youtube a\nyoutube c\n", string(data))
}
