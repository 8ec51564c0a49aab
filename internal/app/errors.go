package service

import (
	"fmt"

	"github.com/okian/nilcore/internal/adapters/mq/queue"
)

// ErrNotStarted is returned by operations that need the recompute pipeline
// before Start. It matches queue.ErrQueueClosed so callers treat both alike.
var ErrNotStarted = fmt.Errorf("service not started: %w", queue.ErrQueueClosed)
