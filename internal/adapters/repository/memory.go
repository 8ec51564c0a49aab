package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/ratelimit"
	"github.com/okian/nilcore/internal/domain/reconsider"
	"github.com/okian/nilcore/pkg/metrics"
)

// MemoryStore implements Store in process memory. Each predicate runs under
// one mutex, which gives the same atomicity as the Postgres statements.
type MemoryStore struct {
	mu         sync.Mutex
	fmv        map[string]fmv.Result
	compliance map[string]compliance.Result
	responses  map[string]reconsider.Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fmv:        make(map[string]fmv.Result),
		compliance: make(map[string]compliance.Result),
		responses:  make(map[string]reconsider.Record),
	}
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Milliseconds()))
}

// GetFMV implements FMVStore.
func (s *MemoryStore) GetFMV(_ context.Context, athleteID string) (*fmv.Result, error) {
	defer observe("get_fmv", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.fmv[athleteID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneFMV(r)
	return &out, nil
}

// SaveFMV implements FMVStore. Updates append the newest entry of r.History to
// the stored history, so a writer working from a stale read loses nothing.
func (s *MemoryStore) SaveFMV(_ context.Context, r fmv.Result, mode WriteMode, limit int, now time.Time) (*fmv.Result, error) {
	defer observe("save_fmv_"+mode.String(), time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.fmv[r.AthleteID]
	switch mode {
	case WriteInitial:
		if ok {
			return nil, ErrAlreadyExists
		}
		r.RateLimit = ratelimit.State{CountToday: 0, ResetDate: clock.UTCDate(now)}
	case WriteCounted:
		if !ok {
			return nil, ErrNotFound
		}
		cur := ratelimit.Current(existing.RateLimit, now)
		if cur.CountToday >= limit {
			return nil, &faults.RateLimitExceeded{
				AthleteID: r.AthleteID,
				Limit:     limit,
				Used:      cur.CountToday,
				ResetAt:   clock.NextUTCMidnight(now),
			}
		}
		cur.CountToday++
		r.RateLimit = cur
	case WriteUncounted:
		if !ok {
			return nil, ErrNotFound
		}
		r.RateLimit = ratelimit.Current(existing.RateLimit, now)
	}
	if ok {
		r.IsPublic = existing.IsPublic
		r.LastNotifiedScore = existing.LastNotifiedScore
		r.History = existing.History
		if e, has := r.LatestEntry(); has {
			r.History = fmv.AppendHistory(existing.History, e)
		}
	}

	s.fmv[r.AthleteID] = cloneFMV(r)
	out := cloneFMV(r)
	return &out, nil
}

// SetFMVVisibility implements FMVStore.
func (s *MemoryStore) SetFMVVisibility(_ context.Context, athleteID string, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.fmv[athleteID]
	if !ok {
		return ErrNotFound
	}
	r.IsPublic = public
	s.fmv[athleteID] = r
	return nil
}

// MarkFMVNotified implements FMVStore.
func (s *MemoryStore) MarkFMVNotified(_ context.Context, athleteID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.fmv[athleteID]
	if !ok {
		return ErrNotFound
	}
	r.LastNotifiedScore = score
	s.fmv[athleteID] = r
	return nil
}

// ListFMV implements FMVStore, ordered by athlete id.
func (s *MemoryStore) ListFMV(_ context.Context) ([]fmv.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]fmv.Result, 0, len(s.fmv))
	for _, r := range s.fmv {
		out = append(out, cloneFMV(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AthleteID < out[j].AthleteID })
	return out, nil
}

// InsertCompliance implements ComplianceStore.
func (s *MemoryStore) InsertCompliance(_ context.Context, r compliance.Result) error {
	defer observe("insert_compliance", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.compliance[r.DealID]; ok {
		return ErrAlreadyExists
	}
	r.Override = nil
	r.OverrideHistory = nil
	s.compliance[r.DealID] = cloneCompliance(r)
	return nil
}

// GetCompliance implements ComplianceStore.
func (s *MemoryStore) GetCompliance(_ context.Context, dealID string) (*compliance.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.compliance[dealID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneCompliance(r)
	return &out, nil
}

// SetOverride implements ComplianceStore.
func (s *MemoryStore) SetOverride(_ context.Context, dealID string, o compliance.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.compliance[dealID]
	if !ok {
		return ErrNotFound
	}
	r.OverrideHistory = compliance.SupersedeOverride(r.OverrideHistory, r.Override)
	r.Override = &o
	s.compliance[dealID] = r
	return nil
}

// CreateResponse implements ResponseStore.
func (s *MemoryStore) CreateResponse(_ context.Context, r reconsider.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.responses[r.ID]; ok {
		return ErrAlreadyExists
	}
	s.responses[r.ID] = cloneRecord(r)
	return nil
}

// GetResponse implements ResponseStore.
func (s *MemoryStore) GetResponse(_ context.Context, id string) (*reconsider.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.responses[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRecord(r)
	return &out, nil
}

// ApplyTransition implements ResponseStore.
func (s *MemoryStore) ApplyTransition(_ context.Context, t reconsider.Transition) error {
	defer observe("apply_transition", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.responses[t.Record.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != t.ExpectedStatus {
		return faults.Conflict(faults.ReasonConcurrentUpdate,
			"response is "+string(cur.Status)+", expected "+string(t.ExpectedStatus))
	}
	if t.Entry.Status == reconsider.TagReconsidered && cur.Reconsidered() {
		return faults.Conflict(faults.ReasonConcurrentUpdate, "response was reconsidered concurrently")
	}
	s.responses[t.Record.ID] = cloneRecord(t.Record)
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func cloneFMV(r fmv.Result) fmv.Result {
	r.Strengths = slices.Clone(r.Strengths)
	r.Weaknesses = slices.Clone(r.Weaknesses)
	r.Suggestions = slices.Clone(r.Suggestions)
	r.History = slices.Clone(r.History)
	r.Signals = cloneSignals(r.Signals)
	return r
}

func cloneSignals(s fmv.Signals) fmv.Signals {
	s.Accounts = slices.Clone(s.Accounts)
	s.Deals = slices.Clone(s.Deals)
	if s.Ranking != nil {
		rk := *s.Ranking
		s.Ranking = &rk
	}
	return s
}

func cloneCompliance(r compliance.Result) compliance.Result {
	dims := make([]compliance.DimensionResult, len(r.Dimensions))
	for i, d := range r.Dimensions {
		d.Notes = slices.Clone(d.Notes)
		d.Flags = slices.Clone(d.Flags)
		dims[i] = d
	}
	r.Dimensions = dims
	r.ReasonCodes = slices.Clone(r.ReasonCodes)
	r.FixRecommendations = slices.Clone(r.FixRecommendations)
	r.FaultedDimensions = slices.Clone(r.FaultedDimensions)
	if r.Override != nil {
		o := *r.Override
		r.Override = &o
	}
	r.OverrideHistory = slices.Clone(r.OverrideHistory)
	return r
}

func cloneRecord(r reconsider.Record) reconsider.Record {
	r.History = slices.Clone(r.History)
	if r.RespondedAt != nil {
		at := *r.RespondedAt
		r.RespondedAt = &at
	}
	return r
}
