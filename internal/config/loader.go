package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rotisserie/eris"
)

const (
	envPrefix  = "NILCORE_"
	envFileVar = "NILCORE_CONFIG"
	dotenvFile = ".env"
)

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) named by NILCORE_CONFIG, or path when non-empty
//  3. env (prefix NILCORE_), after .env has been read
func Load(_ context.Context, path ...string) (*Config, error) {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrLoadConfig, "read %s: %v", dotenvFile, err)
	}

	k := koanf.New(".")

	cfgPath := os.Getenv(envFileVar)
	if len(path) > 0 && path[0] != "" {
		cfgPath = path[0]
	}
	if cfgPath != "" {
		if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
			return nil, eris.Wrapf(ErrLoadConfig, "read %s: %v", cfgPath, err)
		}
	}

	// NILCORE_QUEUE_SIZE -> queue_size; keys are flat so underscores stay.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, eris.Wrapf(ErrLoadConfig, "read environment: %v", err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, eris.Wrapf(ErrLoadConfig, "decode: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot run.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return eris.Wrap(ErrInvalidConfig, "addr must not be empty")
	case c.Storage != StorageMemory && c.Storage != StoragePostgres:
		return eris.Wrapf(ErrInvalidConfig, "storage must be %s or %s, got %q", StorageMemory, StoragePostgres, c.Storage)
	case c.Storage == StoragePostgres && c.DatabaseURL == "":
		return eris.Wrap(ErrInvalidConfig, "database_url is required for postgres storage")
	case c.WorkerCount <= 0:
		return eris.Wrap(ErrInvalidConfig, "worker_count must be positive")
	case c.QueueSize <= 0:
		return eris.Wrap(ErrInvalidConfig, "queue_size must be positive")
	case c.DedupeSize <= 0:
		return eris.Wrap(ErrInvalidConfig, "dedupe_size must be positive")
	case c.CohortSampleSize <= 0:
		return eris.Wrap(ErrInvalidConfig, "cohort_sample_size must be positive")
	case c.DailyLimit <= 0:
		return eris.Wrap(ErrInvalidConfig, "daily_limit must be positive")
	case c.MaxLeaderboardLimit <= 0:
		return eris.Wrap(ErrInvalidConfig, "max_leaderboard_limit must be positive")
	case c.ScoreVersion == "":
		return eris.Wrap(ErrInvalidConfig, "score_version must not be empty")
	case c.RefreshInterval < 0:
		return eris.Wrap(ErrInvalidConfig, "refresh_interval must not be negative")
	case c.StaleAfter <= 0:
		return eris.Wrap(ErrInvalidConfig, "stale_after must be positive")
	case c.MetricsRefreshInterval <= 0:
		return eris.Wrap(ErrInvalidConfig, "metrics_refresh_interval must be positive")
	case !slices.IsSorted(c.MetricsHistogramBuckets):
		return eris.Wrap(ErrInvalidConfig, "metrics_histogram_buckets must be ascending")
	}
	return nil
}
