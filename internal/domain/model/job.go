// Package model contains the payloads passed between the app layer and the
// asynchronous recompute pipeline.
package model

import "time"

// RecomputeJob asks for a scheduled FMV refresh of one athlete. The worker
// recomputes from the signals stored with the athlete's record.
type RecomputeJob struct {
	ID         string // unique per enqueue, for log correlation
	Athlete    string
	EnqueuedAt time.Time
}

// AthleteID is the dedupe key of the job.
func (j RecomputeJob) AthleteID() string { return j.Athlete }

// Wait reports how long the job sat in the queue as of now.
func (j RecomputeJob) Wait(now time.Time) time.Duration {
	if j.EnqueuedAt.IsZero() || now.Before(j.EnqueuedAt) {
		return 0
	}
	return now.Sub(j.EnqueuedAt)
}
