package compliance

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/nilcore/internal/domain/faults"
)

// ApplyOverride returns a copy of r carrying the officer's override. The
// computed verdict is left untouched and an override already on r moves to
// OverrideHistory, so every verdict stays available for audit.
func (e *Engine) ApplyOverride(r Result, o Override) (Result, error) {
	o.OfficerID = strings.TrimSpace(o.OfficerID)
	o.Justification = strings.TrimSpace(o.Justification)
	switch {
	case o.OfficerID == "":
		return r, faults.Invalid("override.officerId", "required")
	case o.Justification == "":
		return r, faults.Invalid("override.justification", "required")
	case o.Score < 0 || o.Score > 100:
		return r, faults.Invalid("override.score", "must be within 0..100")
	}

	v, ok := e.Version(r.ScoreVersion)
	if !ok {
		return r, faults.Invalid("scoreVersion", "unknown version "+r.ScoreVersion)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.At.IsZero() {
		o.At = e.clock.Now()
	}
	o.Tier = v.TierFor(o.Score)
	r.OverrideHistory = SupersedeOverride(r.OverrideHistory, r.Override)
	r.Override = &o
	return r, nil
}

// SupersedeOverride returns history with current appended when there is one.
// The input slice is never modified.
func SupersedeOverride(history []Override, current *Override) []Override {
	if current == nil {
		return history
	}
	return append(slices.Clone(history), *current)
}
