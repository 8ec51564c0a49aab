// Package faults defines the error taxonomy shared by the decision engines.
//
// ValidationError and RateLimitExceeded always reach the caller unchanged.
// ScorerFault is recovered inside the compliance engine and surfaces only as a
// flag on the result. StateConflict carries the reason a reconsideration was
// refused so callers can show the matching message.
package faults

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds.
var (
	ErrValidation    = errors.New("validation failed")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrScorerFault   = errors.New("scorer fault")
	ErrStateConflict = errors.New("state conflict")
)

// ValidationError reports a missing or malformed required input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RateLimitExceeded is returned when an athlete has used every recalculation for the UTC day.
type RateLimitExceeded struct {
	AthleteID string
	Limit     int
	Used      int
	ResetAt   time.Time
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded: athlete %s used %d of %d recalculations, resets at %s",
		e.AthleteID, e.Used, e.Limit, e.ResetAt.UTC().Format(time.RFC3339))
}

// Is matches ErrRateLimited.
func (e *RateLimitExceeded) Is(target error) bool { return target == ErrRateLimited }

// ScorerFault records an unexpected failure inside one compliance dimension.
type ScorerFault struct {
	Dimension string
	Cause     error
}

func (e *ScorerFault) Error() string {
	return fmt.Sprintf("scorer fault in %s: %v", e.Dimension, e.Cause)
}

// Is matches ErrScorerFault.
func (e *ScorerFault) Is(target error) bool { return target == ErrScorerFault }

// Unwrap exposes the underlying cause.
func (e *ScorerFault) Unwrap() error { return e.Cause }

// ConflictReason distinguishes why a state transition was refused.
type ConflictReason string

// Conflict reasons.
const (
	ReasonExpired          ConflictReason = "expired"
	ReasonWrongStatus      ConflictReason = "wrong-status"
	ReasonAlreadyUsed      ConflictReason = "already-used"
	ReasonConcurrentUpdate ConflictReason = "concurrent-update"
)

// StateConflict reports an ineligible or lost state transition.
type StateConflict struct {
	Reason ConflictReason
	Detail string
}

func (e *StateConflict) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("state conflict: %s", e.Reason)
	}
	return fmt.Sprintf("state conflict: %s: %s", e.Reason, e.Detail)
}

// Is matches ErrStateConflict.
func (e *StateConflict) Is(target error) bool { return target == ErrStateConflict }

// Conflict builds a StateConflict.
func Conflict(reason ConflictReason, detail string) error {
	return &StateConflict{Reason: reason, Detail: detail}
}

// ReasonOf extracts the conflict reason from err, if any.
func ReasonOf(err error) (ConflictReason, bool) {
	var sc *StateConflict
	if errors.As(err, &sc) {
		return sc.Reason, true
	}
	return "", false
}
