package repository

import "time"

// PostgresOption configures a PostgresStore.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	maxConns        int32
	minConns        int32
	maxConnLifetime time.Duration
	maxConnIdleTime time.Duration
	migrate         bool
}

func defaultPostgresConfig() postgresConfig {
	return postgresConfig{
		maxConns:        10,
		minConns:        2,
		maxConnLifetime: 30 * time.Minute,
		maxConnIdleTime: 5 * time.Minute,
		migrate:         true,
	}
}

// WithPoolSize sets the connection pool bounds.
func WithPoolSize(minConns, maxConns int32) PostgresOption {
	return func(c *postgresConfig) {
		if minConns > 0 {
			c.minConns = minConns
		}
		if maxConns > 0 && maxConns >= c.minConns {
			c.maxConns = maxConns
		}
	}
}

// WithoutMigrate skips schema creation on connect.
func WithoutMigrate() PostgresOption {
	return func(c *postgresConfig) { c.migrate = false }
}
