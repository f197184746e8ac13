package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
index_path = "/var/lib/scrapq/index"
json_file = "/tmp/export.json"

[logging]
level = "debug"

[indexer]
segment_max_docs = 500

[search]
default_limit = 20
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/scrapq/index", cfg.IndexPath)
	assert.Equal(t, "/tmp/export.json", cfg.JSONFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 500, cfg.Indexer.SegmentMaxDocs)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 1000, cfg.Search.MaxLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
index_path: /data/index
search:
  parallelism: 2
metrics:
  textfile: /tmp/scrapq.prom
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/index", cfg.IndexPath)
	assert.Equal(t, 2, cfg.Search.Parallelism)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "/tmp/scrapq.prom", cfg.Metrics.Textfile)
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	_, err := Load(missing)
	require.ErrorIs(t, err, apperrors.ErrConfig)
	assert.Contains(t, err.Error(), missing)
}

func TestLoadMalformed(t *testing.T) {
	path := writeFile(t, "config.toml", "index_path = [unterminated")
	_, err := Load(path)
	require.ErrorIs(t, err, apperrors.ErrConfig)
	assert.Contains(t, err.Error(), path)
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "config.toml", `index_path = "/from/file"`)
	t.Setenv("SCRAPQ_INDEX_PATH", "/from/env")
	t.Setenv("SCRAPQ_LOG_FORMAT", "json")
	t.Setenv("SCRAPQ_SEARCH_PARALLELISM", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.IndexPath)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 8, cfg.Search.Parallelism)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}
	path := writeFile(t, "config.toml", `index_path = "~/scrapq/index"`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "scrapq", "index"), cfg.IndexPath)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Search.Parallelism = 0
	err := cfg.Validate()
	require.ErrorIs(t, err, apperrors.ErrConfig)
	assert.Contains(t, err.Error(), "index_path is required")
	assert.Contains(t, err.Error(), "parallelism")
}

func TestDefaultPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "scrapq", "config.toml"), path)
}
