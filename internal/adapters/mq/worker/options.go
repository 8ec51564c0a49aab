package worker

import (
	"time"

	"github.com/okian/nilcore/pkg/logger"
)

// Option applies a configuration option to a worker.
type Option func(*RecomputeWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *RecomputeWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *RecomputeWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithJobTimeout bounds a single job.
func WithJobTimeout(d time.Duration) Option {
	return func(w *RecomputeWorker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}
