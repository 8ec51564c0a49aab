// Package config defines process configuration and how it is loaded.
//
// Values are layered, lowest precedence first: the defaults from New, an
// optional YAML file named by NILCORE_CONFIG, then NILCORE_* environment
// variables. A .env file in the working directory is read into the process
// environment before the environment layer is applied.
package config

import (
	"time"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Storage selects the persistence backend: memory or postgres.
	Storage string `koanf:"storage"`

	// DatabaseURL is the pgx connection string; required for postgres.
	DatabaseURL string `koanf:"database_url"`

	// WorkerCount sets the number of scheduled-recompute workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory recompute queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize bounds the set of athletes with a recompute pending.
	DedupeSize int `koanf:"dedupe_size"`

	// CohortSampleSize caps the peers passed to the percentile calculation.
	CohortSampleSize int `koanf:"cohort_sample_size"`

	// ScoreVersion is the compliance table used when a request names none.
	ScoreVersion string `koanf:"score_version"`

	// DailyLimit is the number of manual FMV recalculations per athlete per UTC day.
	DailyLimit int `koanf:"daily_limit"`

	// RefreshInterval is how often stale FMV records are queued for a
	// scheduled refresh; zero disables the sweep. StaleAfter is the record
	// age that makes it due.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	StaleAfter      time.Duration `koanf:"stale_after"`

	// AnalysisEnabled runs the contract analyzer on deals that carry text.
	AnalysisEnabled bool `koanf:"analysis_enabled"`

	// CORSAllowedOrigins is passed to the CORS middleware.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// APIRatePerSecond and APIRateBurst throttle each client address. A
	// non-positive rate disables throttling.
	APIRatePerSecond float64 `koanf:"api_rate_per_second"`
	APIRateBurst     int     `koanf:"api_rate_burst"`

	// MaxLeaderboardLimit caps GET /v1/fmv/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Metrics settings feed the Prometheus manager.
	MetricsNamespace        string            `koanf:"metrics_namespace"`
	MetricsRefreshInterval  time.Duration     `koanf:"metrics_refresh_interval"`
	MetricsHistogramBuckets []float64         `koanf:"metrics_histogram_buckets"`
	MetricsLabels           map[string]string `koanf:"metrics_labels"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		Storage:                StorageMemory,
		WorkerCount:            4,
		QueueSize:              1024,
		DedupeSize:             4096,
		CohortSampleSize:       500,
		ScoreVersion:           "v1",
		DailyLimit:             3,
		RefreshInterval:        time.Hour,
		StaleAfter:             24 * time.Hour,
		AnalysisEnabled:        true,
		CORSAllowedOrigins:     []string{"*"},
		APIRatePerSecond:       20,
		APIRateBurst:           40,
		MaxLeaderboardLimit:    100,
		MetricsNamespace:       "nilcore",
		MetricsRefreshInterval: 10 * time.Second,
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           10 * time.Second,
		IdleTimeout:            60 * time.Second,
		ShutdownTimeout:        10 * time.Second,
	}
}
