// Package config loads and validates scrapq configuration from TOML or YAML
// files with environment-variable overrides. The file format is chosen by
// extension; anything that is not .yaml or .yml is read as TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

// DefaultFile is the config location relative to the user's home directory.
const DefaultFile = ".config/scrapq/config.toml"

// Config is the top-level application configuration.
type Config struct {
	IndexPath string        `toml:"index_path" yaml:"index_path"`
	JSONFile  string        `toml:"json_file" yaml:"json_file"`
	Logging   LoggingConfig `toml:"logging" yaml:"logging"`
	Indexer   IndexerConfig `toml:"indexer" yaml:"indexer"`
	Search    SearchConfig  `toml:"search" yaml:"search"`
	Metrics   MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// IndexerConfig controls when the index writer cuts a new segment. Zero
// means no limit, so a whole bundle lands in a single segment.
type IndexerConfig struct {
	SegmentMaxDocs  int   `toml:"segment_max_docs" yaml:"segment_max_docs"`
	SegmentMaxBytes int64 `toml:"segment_max_bytes" yaml:"segment_max_bytes"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	DefaultLimit int `toml:"default_limit" yaml:"default_limit"`
	MaxLimit     int `toml:"max_limit" yaml:"max_limit"`
	Parallelism  int `toml:"parallelism" yaml:"parallelism"`
}

// MetricsConfig names an optional Prometheus textfile written on exit.
type MetricsConfig struct {
	Textfile string `toml:"textfile" yaml:"textfile"`
}

// DefaultPath returns ~/.config/scrapq/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolving home directory: %w", apperrors.ErrConfig, err)
	}
	return filepath.Join(home, DefaultFile), nil
}

// Load reads a config file and applies environment-variable overrides. It
// returns a Config populated with defaults for any missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file %s: %w", apperrors.ErrConfig, path, err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file %s: %w", apperrors.ErrConfig, path, err)
		}
	}
	applyEnvOverrides(cfg)
	cfg.IndexPath = expandHome(cfg.IndexPath)
	cfg.JSONFile = expandHome(cfg.JSONFile)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// Default returns a Config with the defaults used when a key is absent.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     1000,
			Parallelism:  4,
		},
	}
}

// Validate reports every problem with cfg at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.IndexPath == "" {
		result = multierror.Append(result, fmt.Errorf("index_path is required"))
	}
	if c.Search.DefaultLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("search.default_limit must not be negative"))
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		result = multierror.Append(result, fmt.Errorf("search.max_limit must be at least search.default_limit"))
	}
	if c.Search.Parallelism < 1 {
		result = multierror.Append(result, fmt.Errorf("search.parallelism must be at least 1"))
	}
	if c.Indexer.SegmentMaxDocs < 0 || c.Indexer.SegmentMaxBytes < 0 {
		result = multierror.Append(result, fmt.Errorf("indexer limits must not be negative"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrConfig, err)
	}
	return nil
}

// applyEnvOverrides reads SCRAPQ_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCRAPQ_INDEX_PATH"); v != "" {
		cfg.IndexPath = v
	}
	if v := os.Getenv("SCRAPQ_JSON_FILE"); v != "" {
		cfg.JSONFile = v
	}
	if v := os.Getenv("SCRAPQ_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCRAPQ_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SCRAPQ_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
	if v := os.Getenv("SCRAPQ_SEARCH_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.Parallelism = n
		}
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
