// Package worker drains scheduled FMV recompute jobs from the queue.
package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/okian/nilcore/internal/domain/model"
	"github.com/okian/nilcore/pkg/logger"
	"github.com/okian/nilcore/pkg/metrics"
)

const (
	defaultWorkerCount = 4
	defaultJobTimeout  = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = model.RecomputeJob

// Handler processes one job. It owns releasing any dedupe claim for the job.
type Handler interface {
	Handle(ctx context.Context, j Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, j Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, j Job) error { return f(ctx, j) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

type dequeueMarker interface{ MarkDequeued() }

// RecomputeWorker runs jobs one at a time until the queue closes.
type RecomputeWorker struct {
	queue      Queue
	handler    Handler
	name       string
	jobTimeout time.Duration
	logger     logger.Logger
	done       chan struct{}
}

// NewRecomputeWorker creates a worker with configuration options.
func NewRecomputeWorker(q Queue, h Handler, opts ...Option) *RecomputeWorker {
	w := &RecomputeWorker{
		queue:      q,
		handler:    h,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes jobs until the queue channel is closed and drained or ctx ends.
func (w *RecomputeWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if m, ok := w.queue.(dequeueMarker); ok {
				m.MarkDequeued()
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "recompute failed",
					logger.String("job_id", j.ID),
					logger.String("athlete_id", j.AthleteID()),
					logger.Error(err))
			}
		}
	}
}

// Done is closed when Run returns.
func (w *RecomputeWorker) Done() <-chan struct{} { return w.done }

func (w *RecomputeWorker) process(ctx context.Context, j Job) (err error) {
	start := time.Now()
	metrics.AddWorkerActive(1)
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("handler panic: %v", r)
		}
		metrics.AddWorkerActive(-1)
		metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.RecordWorkerError()
			metrics.RecordError("worker", "job_failed")
		}
	}()

	jctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	if err := w.handler.Handle(jctx, j); err != nil {
		return eris.Wrapf(err, "job %s", j.ID)
	}
	return nil
}

// Pool manages several workers over one queue.
type Pool struct {
	workers []*RecomputeWorker
	queue   Queue
	logger  logger.Logger
	once    sync.Once
}

// NewPool creates workerCount workers sharing q and h.
func NewPool(workerCount int, q Queue, h Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*RecomputeWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewRecomputeWorker(q, h, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for workers to drain it or for ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
	})

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return eris.Wrap(ctx.Err(), "worker pool shutdown")
		}
	}
	return nil
}
