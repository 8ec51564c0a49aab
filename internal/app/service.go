// Package service is the caller of the decision engines: it fetches what an
// engine needs, invokes it, and persists the outcome through the store's
// atomic predicates. The HTTP API and the CLI both sit on top of it.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/okian/nilcore/internal/adapters/mq/queue"
	"github.com/okian/nilcore/internal/adapters/mq/worker"
	"github.com/okian/nilcore/internal/adapters/repository"
	"github.com/okian/nilcore/internal/domain/advisor"
	"github.com/okian/nilcore/internal/domain/analysis"
	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/dedupe"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/ratelimit"
	"github.com/okian/nilcore/pkg/logger"
	"github.com/okian/nilcore/pkg/metrics"
)

// Service implements the API dependencies for the decision engines.
type Service struct {
	mu sync.RWMutex

	// Engines
	compliance *compliance.Engine
	fmv        *fmv.Engine
	limiter    *ratelimit.Limiter
	advisor    *advisor.Advisor
	analyzer   analysis.Analyzer

	// Persistence
	store  repository.Store
	cohort *repository.CohortIndex

	// Recompute pipeline, built by Start
	deduper     dedupe.Deduper
	queue       *queue.InMemoryQueue
	pool        *worker.Pool
	stopRefresh context.CancelFunc

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	cohortSampleSize int
	scoreVersion     string
	dailyLimit       int
	refreshInterval  time.Duration
	staleAfter       time.Duration

	clock   clock.Clock
	logger  logger.Logger
	started bool
}

// New constructs a Service. Engine operations work immediately; the
// recompute pipeline runs only between Start and Stop.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        1024,
		dedupeSize:       4096,
		cohortSampleSize: 500,
		scoreVersion:     compliance.DefaultVersion,
		dailyLimit:       ratelimit.DefaultDailyLimit,
		staleAfter:       24 * time.Hour,
		clock:            clock.System{},
		analyzer:         analysis.NewInMemoryAnalyzer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	s.limiter = ratelimit.New(ratelimit.WithDailyLimit(s.dailyLimit))
	s.compliance = compliance.NewEngine(compliance.WithClock(s.clock))
	s.fmv = fmv.NewEngine(fmv.WithClock(s.clock), fmv.WithLimiter(s.limiter))
	s.advisor = advisor.New(advisor.WithLimiter(s.limiter))
	s.cohort = repository.NewCohortIndex()
	return s
}

// Start loads the cohort index from the store and launches the recompute workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting decision service...")

	if err := s.warmCohort(ctx); err != nil {
		return err
	}

	s.deduper = dedupe.NewPendingSet(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.HandlerFunc(s.handleRecompute),
		worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(ctx)

	if s.refreshInterval > 0 {
		loopCtx, cancel := context.WithCancel(ctx)
		s.stopRefresh = cancel
		go s.refreshLoop(loopCtx)
	}

	s.started = true
	s.logger.Info(ctx, "decision service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("cohortSize", s.cohort.Count(ctx, "")),
		logger.Duration("refreshInterval", s.refreshInterval),
	)
	return nil
}

func (s *Service) warmCohort(ctx context.Context) error {
	records, err := s.store.ListFMV(ctx)
	if err != nil {
		return eris.Wrap(err, "warm cohort index")
	}
	for _, r := range records {
		s.cohort.Upsert(ctx, r.AthleteID, r.Sport, r.Score, r.IsPublic)
	}
	metrics.UpdateCohortSize(s.cohort.Count(ctx, ""))
	return nil
}

// Stop drains the recompute queue, waiting at most until ctx ends, and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping decision service...")

	if s.stopRefresh != nil {
		s.stopRefresh()
		s.stopRefresh = nil
	}

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, eris.Wrap(err, "close store"))
	}

	s.started = false
	s.logger.Info(ctx, "decision service stopped")
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Health reports whether the store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"dedupeSize":       s.dedupeSize,
		"cohortSampleSize": s.cohortSampleSize,
		"scoreVersion":     s.scoreVersion,
		"dailyLimit":       s.limiter.Limit(),
		"refreshInterval":  s.refreshInterval.String(),
		"staleAfter":       s.staleAfter.String(),
		"cohortSize":       s.cohort.Count(ctx, ""),
		"sports":           s.cohort.Sports(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["pendingAthletes"] = s.deduper.Size()
		stats["evictedClaims"] = dedupe.Evicted(s.deduper)

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}

func (s *Service) now() time.Time { return s.clock.Now() }

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
