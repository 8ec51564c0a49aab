package service

import (
	"time"

	"github.com/okian/nilcore/internal/adapters/repository"
	"github.com/okian/nilcore/internal/domain/analysis"
	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. The in-memory store is used otherwise.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock sets the time source shared by every engine.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkerCount sets the number of recompute workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the recompute queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many pending athletes the deduper remembers.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCohortSampleSize caps the peers passed to the percentile computation.
func WithCohortSampleSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cohortSampleSize = size
		}
	}
}

// WithScoreVersion sets the compliance score version used when a request names none.
func WithScoreVersion(version string) Option {
	return func(s *Service) {
		if version != "" {
			s.scoreVersion = version
		}
	}
}

// WithDailyLimit overrides the number of manual FMV recalculations per UTC day.
func WithDailyLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dailyLimit = n
		}
	}
}

// WithRefreshInterval sets how often the running service looks for stale FMV
// records to refresh. Zero disables the sweep.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithStaleAfter sets the age at which a stored FMV record is due for a scheduled refresh.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithAnalyzer sets the contract reader consulted when a deal arrives without
// an analysis but with contract text.
func WithAnalyzer(a analysis.Analyzer) Option {
	return func(s *Service) {
		s.analyzer = a
	}
}
