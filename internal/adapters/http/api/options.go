package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithRateLimit sets the per-client token rate and burst for /v1 routes.
// A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.ratePerSec = perSecond
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

// WithMaxLeaderboardLimit caps the limit query parameter of the leaderboard.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithClock sets the time source used for Retry-After.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMount registers extra routes, such as the API docs, on the root router.
func WithMount(mount func(chi.Router)) Option {
	return func(s *Server) {
		if mount != nil {
			s.mounts = append(s.mounts, mount)
		}
	}
}
