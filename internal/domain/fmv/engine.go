// Package fmv computes an athlete's fair-market-value score, tier, peer
// percentile, deal-value band and improvement guidance.
package fmv

import (
	"strconv"
	"strings"

	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/ratelimit"
	"github.com/okian/nilcore/internal/domain/types"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLimiter sets the daily recalculation limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(e *Engine) {
		if l != nil {
			e.limiter = l
		}
	}
}

// WithVersion pins the scoring table.
func WithVersion(v Version) Option {
	return func(e *Engine) {
		if v.Name != "" {
			e.version = v
		}
	}
}

// Engine is stateless apart from its configuration and safe for concurrent use.
type Engine struct {
	version Version
	limiter *ratelimit.Limiter
	clock   clock.Clock
}

// NewEngine returns an engine on the V1 table, the system clock and the default limiter.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{version: V1, limiter: ratelimit.New(), clock: clock.System{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Version returns the table in use.
func (e *Engine) Version() Version { return e.version }

// Limiter returns the recalculation limiter in use.
func (e *Engine) Limiter() *ratelimit.Limiter { return e.limiter }

// Calculate scores req.Signals. The first computation for an athlete is exempt
// from the daily limit; manual recalculations consume one slot and fail with
// RateLimitExceeded once the day's allowance is used, leaving nothing changed.
// Scheduled recalculations do not consume a slot.
//
// The returned History ends with the entry for this computation. Stores append
// that last entry to whatever they hold, so concurrent writers never drop one.
func (e *Engine) Calculate(req Request) (*Result, error) {
	s := req.Signals
	if strings.TrimSpace(s.AthleteID) == "" {
		return nil, faults.Invalid("athleteId", "required")
	}
	if req.Prior != nil && req.Prior.AthleteID != s.AthleteID {
		return nil, faults.Invalid("athleteId", "does not match the prior record")
	}
	for i, a := range s.Accounts {
		if a.Followers < 0 || a.EngagementRate < 0 {
			return nil, faults.Invalid("accounts", "negative value on account "+strings.TrimSpace(a.Platform)+" at index "+strconv.Itoa(i))
		}
	}

	now := e.clock.Now()
	trigger := req.Trigger
	var state ratelimit.State
	switch {
	case req.IsInitial():
		trigger = TriggerInitial
		state = e.limiter.Initial(now)
	case trigger == TriggerScheduled:
		state = ratelimit.Current(req.Prior.RateLimit, now)
	default:
		trigger = TriggerManual
		next, err := e.limiter.Admit(s.AthleteID, req.Prior.RateLimit, now)
		if err != nil {
			return nil, err
		}
		state = next
	}

	sub := SubScores{Social: socialScore(s), Market: marketScore(s), Brand: brandScore(s)}
	var defaulted bool
	sub.Athletic, defaulted = athleticScore(s, e.version.NeutralAthletic)

	w := e.version.Weights
	score := types.Round2(types.Clamp(
		types.Round2(sub.Social*w.Social)+
			types.Round2(sub.Athletic*w.Athletic)+
			types.Round2(sub.Market*w.Market)+
			types.Round2(sub.Brand*w.Brand), 0, 100))
	tier := e.version.TierFor(score)

	percentile, cohort := Percentile(s.AthleteID, score, req.Cohort)
	complete := completeness(s)
	strengths, weaknesses := factors(sub, defaulted)

	res := &Result{
		AthleteID:          s.AthleteID,
		Version:            e.version.Name,
		SubScores:          sub,
		Score:              score,
		Tier:               tier,
		PercentileRank:     percentile,
		CohortSize:         cohort,
		EstimatedDealValue: estimateDealValue(e.version.BaseDealValue, score, s.TotalFollowers(), complete),
		Completeness:       complete,
		AthleticDefaulted:  defaulted,
		Strengths:          strengths,
		Weaknesses:         weaknesses,
		Suggestions:        suggestions(s, sub, w, defaulted),
		RateLimit:          state,
		LastNotifiedScore:  score,
		LastCalculatedAt:   now,
		Sport:              types.Normalize(s.Sport),
		Signals:            s,
	}

	var history []HistoryEntry
	if req.Prior != nil {
		res.IsPublic = req.Prior.IsPublic
		res.LastNotifiedScore = req.Prior.LastNotifiedScore
		history = req.Prior.History
	}
	res.History = AppendHistory(history, HistoryEntry{
		Score:        score,
		Tier:         tier,
		CalculatedAt: now,
		Trigger:      trigger,
	})
	return res, nil
}

// MarkNotified returns a copy of r whose notified baseline is its current score.
func MarkNotified(r Result) Result {
	r.LastNotifiedScore = r.Score
	return r
}
