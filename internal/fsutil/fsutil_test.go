package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))

	// Overwriting promotes over the existing file.
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	// No staging leftovers after successful writes.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRemoveStaged(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.json"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json.tmp.123"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.tmp.9"), []byte("x"), 0o644))

	removed, err := RemoveStaged(dir)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	_, err = os.Stat(filepath.Join(dir, "keep.json"))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "a.json.tmp.123"))
	assert.True(t, os.IsNotExist(err))
}
