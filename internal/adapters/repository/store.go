// Package repository is the persistence boundary for FMV records, compliance
// results and response records. Every write that guards an invariant is a
// single atomic predicate so concurrent callers cannot both succeed.
package repository

import (
	"context"
	"time"

	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/reconsider"
)

// WriteMode selects the admission predicate applied by SaveFMV.
type WriteMode int

// Write modes.
const (
	// WriteInitial inserts the first record and fails with ErrAlreadyExists if one exists.
	WriteInitial WriteMode = iota
	// WriteCounted consumes one daily recalculation, failing with
	// RateLimitExceeded when the day's allowance is used.
	WriteCounted
	// WriteUncounted replaces the record without touching the counter.
	WriteUncounted
)

func (m WriteMode) String() string {
	switch m {
	case WriteInitial:
		return "initial"
	case WriteCounted:
		return "counted"
	case WriteUncounted:
		return "uncounted"
	default:
		return "unknown"
	}
}

// FMVStore persists live FMV records.
type FMVStore interface {
	// GetFMV returns ErrNotFound for an unknown athlete.
	GetFMV(ctx context.Context, athleteID string) (*fmv.Result, error)

	// SaveFMV writes r under mode and returns the record as persisted. The
	// store owns the counter, the public flag and the notified baseline, so
	// those fields of the returned record are authoritative over r's.
	SaveFMV(ctx context.Context, r fmv.Result, mode WriteMode, limit int, now time.Time) (*fmv.Result, error)

	// SetFMVVisibility flips the public flag.
	SetFMVVisibility(ctx context.Context, athleteID string, public bool) error

	// MarkFMVNotified moves the notified baseline to score.
	MarkFMVNotified(ctx context.Context, athleteID string, score float64) error

	// ListFMV returns every record, used to warm the cohort index.
	ListFMV(ctx context.Context) ([]fmv.Result, error)
}

// ComplianceStore persists compliance results. Computed fields are written
// once; an officer override lives in its own columns.
type ComplianceStore interface {
	// InsertCompliance fails with ErrAlreadyExists when the deal version was already scored.
	InsertCompliance(ctx context.Context, r compliance.Result) error

	// GetCompliance returns ErrNotFound for an unknown deal.
	GetCompliance(ctx context.Context, dealID string) (*compliance.Result, error)

	// SetOverride records o as the current override for dealID. An override
	// already on file moves to the result's OverrideHistory in the same step.
	SetOverride(ctx context.Context, dealID string, o compliance.Override) error
}

// ResponseStore persists deal invite and match responses.
type ResponseStore interface {
	// CreateResponse fails with ErrAlreadyExists for a duplicate id.
	CreateResponse(ctx context.Context, r reconsider.Record) error

	// GetResponse returns ErrNotFound for an unknown id.
	GetResponse(ctx context.Context, id string) (*reconsider.Record, error)

	// ApplyTransition stores t.Record only if the stored status still equals
	// t.ExpectedStatus and, for a reconsideration, the record has not been
	// reconsidered. Otherwise it fails with a concurrent-update StateConflict.
	ApplyTransition(ctx context.Context, t reconsider.Transition) error
}

// Store is the full persistence boundary.
type Store interface {
	FMVStore
	ComplianceStore
	ResponseStore

	Ping(ctx context.Context) error
	Close() error
}
