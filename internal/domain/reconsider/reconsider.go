// Package reconsider manages the response lifecycle of deal invites and
// matches, including the single-use 48 hour window for reopening a declined
// or rejected response.
package reconsider

import (
	"math"
	"strings"
	"time"

	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/types"
)

// Window is how long after responding a decline may be reconsidered.
const Window = 48 * time.Hour

// Kind distinguishes deal invites from agency matches.
type Kind string

// Record kinds.
const (
	KindDealInvite Kind = "deal_invite"
	KindMatch      Kind = "match"
)

// Status is the current state of a response.
type Status string

// Statuses.
const (
	StatusInvited   Status = "invited"
	StatusContacted Status = "contacted"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusRejected  Status = "rejected"
)

// HistoryTag labels a history entry. It is a Status or the reconsidered marker.
type HistoryTag string

// TagReconsidered marks the single permitted reconsideration.
const TagReconsidered HistoryTag = "reconsidered"

// Action is a response to an open invite or match.
type Action string

// Actions.
const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
	ActionReject  Action = "reject"
)

// HistoryEntry is one append-only audit row.
type HistoryEntry struct {
	Status HistoryTag `json:"status"`
	At     time.Time  `json:"timestamp"`
}

// Record is a persisted response.
type Record struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	AthleteID   string         `json:"athleteId"`
	SubjectID   string         `json:"subjectId"`
	Status      Status         `json:"status"`
	RespondedAt *time.Time     `json:"respondedAt,omitempty"`
	History     []HistoryEntry `json:"responseHistory"`
}

// ActiveStatus is the open state a record of this kind starts in and returns to.
func (r Record) ActiveStatus() Status {
	if r.Kind == KindMatch {
		return StatusContacted
	}
	return StatusInvited
}

// Reconsidered reports whether the single reconsideration has been used.
func (r Record) Reconsidered() bool {
	for _, h := range r.History {
		if h.Status == TagReconsidered {
			return true
		}
	}
	return false
}

// TimeRemaining is the window countdown.
type TimeRemaining struct {
	Expired        bool    `json:"expired"`
	HoursRemaining float64 `json:"hoursRemaining"`
}

// GetTimeRemaining is the only place the window arithmetic lives; eligibility
// and countdown displays both use it. A nil respondedAt is expired.
func GetTimeRemaining(respondedAt *time.Time, now time.Time) TimeRemaining {
	if respondedAt == nil {
		return TimeRemaining{Expired: true}
	}
	left := respondedAt.Add(Window).Sub(now)
	if left <= 0 {
		return TimeRemaining{Expired: true}
	}
	return TimeRemaining{HoursRemaining: math.Floor(left.Hours()*100) / 100}
}

// Eligibility is the outcome of CanReconsider.
type Eligibility struct {
	Eligible      bool                    `json:"eligible"`
	Reason        faults.ConflictReason   `json:"reason,omitempty"`
	Failures      []faults.ConflictReason `json:"failures,omitempty"`
	TimeRemaining *TimeRemaining          `json:"timeRemaining,omitempty"`
}

// CanReconsider checks every condition independently. When several fail,
// Reason reports the first of already-used, wrong-status, expired.
func CanReconsider(r Record, now time.Time) Eligibility {
	tr := GetTimeRemaining(r.RespondedAt, now)
	e := Eligibility{TimeRemaining: &tr}

	if r.Reconsidered() {
		e.Failures = append(e.Failures, faults.ReasonAlreadyUsed)
	}
	if r.Status != StatusDeclined && r.Status != StatusRejected {
		e.Failures = append(e.Failures, faults.ReasonWrongStatus)
	}
	if tr.Expired {
		e.Failures = append(e.Failures, faults.ReasonExpired)
	}

	if len(e.Failures) == 0 {
		e.Eligible = true
		return e
	}
	e.Reason = e.Failures[0]
	return e
}

// Transition is a validated state change for the caller to persist with a
// compare-and-swap on ExpectedStatus.
type Transition struct {
	NewStatus      Status       `json:"newStatus"`
	Entry          HistoryEntry `json:"historyEntry"`
	ExpectedStatus Status       `json:"expectedStatus"`
	Record         Record       `json:"record"`
}

// Reconsider reopens a declined or rejected response. Any failed check aborts
// with a StateConflict and the record is left as it was.
func Reconsider(r Record, now time.Time) (Transition, error) {
	if e := CanReconsider(r, now); !e.Eligible {
		return Transition{}, faults.Conflict(e.Reason, conflictDetail(e.Reason, r))
	}

	entry := HistoryEntry{Status: TagReconsidered, At: now}
	next := r.clone()
	next.Status = r.ActiveStatus()
	next.RespondedAt = nil
	next.History = append(next.History, entry)

	return Transition{NewStatus: next.Status, Entry: entry, ExpectedStatus: r.Status, Record: next}, nil
}

// Respond applies accept, decline or reject to an open response.
func Respond(r Record, action Action, now time.Time) (Transition, error) {
	var target Status
	switch Action(types.Normalize(string(action))) {
	case ActionAccept:
		target = StatusAccepted
	case ActionDecline:
		target = StatusDeclined
	case ActionReject:
		target = StatusRejected
	default:
		return Transition{}, faults.Invalid("action", "must be accept, decline or reject")
	}
	if r.Status != r.ActiveStatus() {
		return Transition{}, faults.Conflict(faults.ReasonWrongStatus,
			"response is "+string(r.Status)+", expected "+string(r.ActiveStatus()))
	}

	entry := HistoryEntry{Status: HistoryTag(target), At: now}
	next := r.clone()
	next.Status = target
	at := now
	next.RespondedAt = &at
	next.History = append(next.History, entry)

	return Transition{NewStatus: target, Entry: entry, ExpectedStatus: r.Status, Record: next}, nil
}

// New opens a response record in its active status.
func New(id string, kind Kind, athleteID, subjectID string, now time.Time) (Record, error) {
	switch {
	case strings.TrimSpace(id) == "":
		return Record{}, faults.Invalid("id", "required")
	case strings.TrimSpace(athleteID) == "":
		return Record{}, faults.Invalid("athleteId", "required")
	case kind != KindDealInvite && kind != KindMatch:
		return Record{}, faults.Invalid("kind", "must be deal_invite or match")
	}
	r := Record{ID: id, Kind: kind, AthleteID: athleteID, SubjectID: subjectID}
	r.Status = r.ActiveStatus()
	r.History = []HistoryEntry{{Status: HistoryTag(r.Status), At: now}}
	return r, nil
}

func (r Record) clone() Record {
	out := r
	out.History = append(make([]HistoryEntry, 0, len(r.History)+1), r.History...)
	if r.RespondedAt != nil {
		at := *r.RespondedAt
		out.RespondedAt = &at
	}
	return out
}

func conflictDetail(reason faults.ConflictReason, r Record) string {
	switch reason {
	case faults.ReasonAlreadyUsed:
		return "this response has already been reconsidered once"
	case faults.ReasonWrongStatus:
		return "response is " + string(r.Status) + ", not declined or rejected"
	case faults.ReasonExpired:
		return "the 48 hour reconsideration window has closed"
	default:
		return ""
	}
}
