package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_CreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, "en", cfg.Language)

	// First run persists the defaults.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadFile_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := "data_dir: /tmp/books\nexport_dir: /tmp/out\nlanguage: de\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/books", cfg.DataDir)
	assert.Equal(t, "/tmp/out", cfg.ExportDir)
	assert.Equal(t, "de", cfg.Language)
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/from-file\n"), 0o644))
	t.Setenv("HELFERLEIN_DATA_DIR", "/tmp/from-env")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env", cfg.DataDir)
}

func TestLoadFile_RejectsEmptyDataDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("data_dir: \"\"\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
