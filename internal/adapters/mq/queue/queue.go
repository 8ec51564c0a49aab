// Package queue holds scheduled FMV recompute jobs between the app layer and
// the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/okian/nilcore/internal/domain/model"
	"github.com/okian/nilcore/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job is the payload flowing through the queue.
type Job = model.RecomputeJob

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job or fails with ErrQueueFull or ErrQueueClosed.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns the channel workers receive jobs from. It is closed
	// once the queue is closed and every pending job has been received.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of pending jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Pending jobs remain readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a job without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected()
		return eris.Wrapf(ErrQueueClosed, "enqueue %s", j.AthleteID())
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejected()
		return eris.Wrapf(err, "enqueue %s", j.AthleteID())
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordQueueRejected()
		metrics.RecordError("queue", "full")
		return eris.Wrapf(ErrQueueFull, "enqueue %s", j.AthleteID())
	}
}

// Dequeue returns the shared receive channel. Receivers are expected to call
// MarkDequeued so the size gauge follows.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Job {
	return q.jobs
}

// MarkDequeued records a received job.
func (q *InMemoryQueue) MarkDequeued() {
	metrics.RecordQueueDequeue()
	metrics.UpdateQueueSize(len(q.jobs))
}

// Len returns the number of pending jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting jobs.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
