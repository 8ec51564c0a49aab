// Package ratelimit gates explicit FMV recalculations per athlete per UTC day.
//
// The limiter is pure: it receives the persisted counter state and returns the
// next state. Persistence applies the same rule as one conditional increment
// (see Allows) so two concurrent requests cannot both pass the check.
package ratelimit

import (
	"time"

	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/faults"
)

// DefaultDailyLimit is the number of recalculations allowed per UTC day.
const DefaultDailyLimit = 3

// State is the persisted counter for one athlete.
type State struct {
	CountToday int    `json:"calculationCountToday"`
	ResetDate  string `json:"lastCalculationResetDate"`
}

// Status summarizes the counter for display.
type Status struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithDailyLimit overrides the per-day allowance.
func WithDailyLimit(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.limit = n
		}
	}
}

// Limiter applies the daily allowance.
type Limiter struct {
	limit int
}

// New returns a Limiter with the default allowance.
func New(opts ...Option) *Limiter {
	l := &Limiter{limit: DefaultDailyLimit}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit reports the daily allowance.
func (l *Limiter) Limit() int { return l.limit }

// Initial returns the state stored with an athlete's first computation.
// The first computation is exempt, so the count stays at zero.
func (l *Limiter) Initial(now time.Time) State {
	return State{CountToday: 0, ResetDate: clock.UTCDate(now)}
}

// Current returns s as seen at now: a counter from an earlier day reads as zero.
func Current(s State, now time.Time) State {
	today := clock.UTCDate(now)
	if s.ResetDate != today {
		return State{CountToday: 0, ResetDate: today}
	}
	return s
}

// Allows reports whether one more recalculation fits at now.
func (l *Limiter) Allows(s State, now time.Time) bool {
	return Current(s, now).CountToday < l.limit
}

// Admit consumes one recalculation. On refusal the input state is returned
// unchanged together with a RateLimitExceeded carrying the next UTC midnight.
func (l *Limiter) Admit(athleteID string, s State, now time.Time) (State, error) {
	cur := Current(s, now)
	if cur.CountToday >= l.limit {
		return s, &faults.RateLimitExceeded{
			AthleteID: athleteID,
			Limit:     l.limit,
			Used:      cur.CountToday,
			ResetAt:   clock.NextUTCMidnight(now),
		}
	}
	cur.CountToday++
	return cur, nil
}

// Status reports usage at now.
func (l *Limiter) Status(s State, now time.Time) Status {
	cur := Current(s, now)
	remaining := l.limit - cur.CountToday
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Used:      cur.CountToday,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   clock.NextUTCMidnight(now),
	}
}
