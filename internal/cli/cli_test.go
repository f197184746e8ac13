package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/scrapbox"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

const bundleJSON = `{"name":"x","pages":[{"title":"Alpha","lines":["hello world"]},{"title":"Beta","lines":["hello there","second line"]}]}`

// env isolates a test from the user's config file and SCRAPQ_* settings and
// returns the index path and a bundle file.
func env(t *testing.T) (indexPath, bundlePath string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{"SCRAPQ_JSON_FILE", "SCRAPQ_LOG_LEVEL", "SCRAPQ_LOG_FORMAT", "SCRAPQ_METRICS_TEXTFILE", "SCRAPQ_SEARCH_PARALLELISM"} {
		t.Setenv(k, "")
	}
	indexPath = filepath.Join(dir, "idx")
	t.Setenv("SCRAPQ_INDEX_PATH", indexPath)
	bundlePath = filepath.Join(dir, "bundle.json")
	require.NoError(t, os.WriteFile(bundlePath, []byte(bundleJSON), 0644))
	return indexPath, bundlePath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	root := newRootCommand(a)
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := a.execute(context.Background(), root)
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "test-version-1.0.0"
	defer func() { version = original }()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "scrapq version test-version-1.0.0\n", out)
}

func TestIndexSearchGet(t *testing.T) {
	_, bundle := env(t)

	out, err := run(t, "index", bundle)
	require.NoError(t, err)
	assert.Equal(t, "start to create index\nfinish to create index\n", out)

	out, err = run(t, "search", "hello")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.ElementsMatch(t, []string{"0:0\tAlpha", "0:1\tBeta"}, lines)

	out, err = run(t, "search", "title:Alpha")
	require.NoError(t, err)
	assert.Equal(t, "0:0\tAlpha\n", out)

	out, err = run(t, "search", "-n", "1", "hello")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSuffix(out, "\n"), "\n"), 1)

	out, err = run(t, "get", "0:1")
	require.NoError(t, err)
	assert.Equal(t, "hello there\nsecond line\n", out)
}

func TestSearchJSON(t *testing.T) {
	_, bundle := env(t)
	_, err := run(t, "index", bundle)
	require.NoError(t, err)

	out, err := run(t, "search", "--json", "second")
	require.NoError(t, err)
	var results []scrapbox.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, []scrapbox.SearchResult{{Address: "0:1", Title: "Beta"}}, results)

	out, err = run(t, "search", "--json", "absent")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestIndexUsesConfiguredJSONFile(t *testing.T) {
	_, bundle := env(t)
	t.Setenv("SCRAPQ_JSON_FILE", bundle)
	_, err := run(t, "index")
	require.NoError(t, err)
}

func TestConfigFile(t *testing.T) {
	indexPath, bundle := env(t)
	t.Setenv("SCRAPQ_INDEX_PATH", "")
	dir := filepath.Dir(indexPath)
	textfile := filepath.Join(dir, "scrapq.prom")

	cfgPath := filepath.Join(dir, "scrapq.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"index_path: "+indexPath+"\n"+
			"json_file: "+bundle+"\n"+
			"indexer:\n  segment_max_docs: 1\n"+
			"metrics:\n  textfile: "+textfile+"\n"), 0644))

	_, err := run(t, "-c", cfgPath, "index")
	require.NoError(t, err)

	ix, err := indexer.Open(indexPath)
	require.NoError(t, err)
	assert.Len(t, ix.Segments(), 2)
	require.NoError(t, ix.Close())

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scrapq_docs_indexed_total 2")
}

func TestDefaultConfigFile(t *testing.T) {
	indexPath, bundle := env(t)
	t.Setenv("SCRAPQ_INDEX_PATH", "")
	home := os.Getenv("HOME")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".config", "scrapq"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".config", "scrapq", "config.toml"),
		[]byte("index_path = \""+indexPath+"\"\n"), 0644))

	_, err := run(t, "index", bundle)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(indexPath, indexer.ManifestFile))
	assert.NoError(t, err)
}

func TestVerifyCmd(t *testing.T) {
	indexPath, bundle := env(t)
	_, err := run(t, "index", bundle)
	require.NoError(t, err)

	out, err := run(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "segment 0\tup\t")
	assert.True(t, strings.HasSuffix(out, "index\tup\n"))

	m, err := indexer.ReadManifest(indexPath)
	require.NoError(t, err)
	segPath := filepath.Join(indexPath, m.Segments[0].File)
	data, err := os.ReadFile(segPath)
	require.NoError(t, err)
	data[len(data)/2] ^= 0x5a
	require.NoError(t, os.WriteFile(segPath, data, 0644))

	out, err = run(t, "verify", "--json")
	require.ErrorIs(t, err, apperrors.ErrCorruptIndex)
	assert.Equal(t, apperrors.ExitDataErr, apperrors.ExitCode(err))
	var report struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "down", report.Status)
}

func TestCommandErrors(t *testing.T) {
	_, bundle := env(t)
	_, err := run(t, "index", bundle)
	require.NoError(t, err)

	tests := []struct {
		name     string
		args     []string
		sentinel error
		exit     int
	}{
		{"index exists", []string{"index", bundle}, apperrors.ErrAlreadyExists, apperrors.ExitCantCreate},
		{"empty query", []string{"search", ""}, apperrors.ErrInvalidQuery, apperrors.ExitUsage},
		{"unknown field", []string{"search", "nosuchfield:term"}, apperrors.ErrFieldNotFound, apperrors.ExitUsage},
		{"bad address", []string{"get", "zero:one"}, apperrors.ErrInvalidAddress, apperrors.ExitUsage},
		{"address out of range", []string{"get", "3:0"}, apperrors.ErrInvalidAddress, apperrors.ExitUsage},
		{"missing argument", []string{"get"}, apperrors.ErrInvalidInput, apperrors.ExitUsage},
		{"unknown flag", []string{"search", "--bogus", "x"}, apperrors.ErrInvalidInput, apperrors.ExitUsage},
		{"limit too large", []string{"search", "-n", "5000", "hello"}, apperrors.ErrInvalidInput, apperrors.ExitUsage},
		{"missing bundle", []string{"index", "/nonexistent/bundle.json"}, apperrors.ErrNotFound, apperrors.ExitNoInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.exit, apperrors.ExitCode(err))
		})
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	env(t)
	_, err := run(t, "search", "hello")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMissingIndexPath(t *testing.T) {
	env(t)
	t.Setenv("SCRAPQ_INDEX_PATH", "")
	_, err := run(t, "search", "hello")
	assert.ErrorIs(t, err, apperrors.ErrConfig)
	assert.Equal(t, apperrors.ExitConfigError, apperrors.ExitCode(err))
}

func TestIndexWithoutBundle(t *testing.T) {
	env(t)
	_, err := run(t, "index")
	assert.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestInvalidBundle(t *testing.T) {
	indexPath, _ := env(t)
	bad := filepath.Join(filepath.Dir(indexPath), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"x","pages":[{"title":"`+strings.Repeat("x", 1025)+`"}]}`), 0644))

	out, err := run(t, "index", bad)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "start to create index\n", out)
	_, err = os.Stat(indexPath)
	assert.True(t, os.IsNotExist(err))
}
