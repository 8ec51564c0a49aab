// Package advisor derives advisory notifications from engine results. It is
// pure: the same result and instant always produce the same list.
package advisor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/ratelimit"
	"github.com/okian/nilcore/internal/domain/types"
)

// Notification types.
const (
	TypeScoreIncrease      = "score_increase"
	TypeStaleScore         = "stale_score"
	TypeShareScore         = "share_score"
	TypeRateLimit          = "rate_limit"
	TypeTopImprovement     = "top_improvement"
	TypeComplianceCritical = "compliance_critical"
	TypeComplianceRed      = "compliance_red"
	TypeComplianceYellow   = "compliance_yellow"
	TypeComplianceReady    = "compliance_ready"
	TypeScorerFault        = "scorer_fault"
	TypeOverrideApplied    = "override_applied"
)

// Notification is one advisory item.
type Notification struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Category string         `json:"category"`
	Priority types.Priority `json:"priority"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithLimiter sets the limiter used to describe recalculation allowance.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *Advisor) {
		if l != nil {
			a.limiter = l
		}
	}
}

// WithStaleAfter sets the age after which a score is considered stale.
func WithStaleAfter(d time.Duration) Option {
	return func(a *Advisor) {
		if d > 0 {
			a.staleAfter = d
		}
	}
}

// Advisor holds the notification thresholds.
type Advisor struct {
	limiter           *ratelimit.Limiter
	staleAfter        time.Duration
	increaseThreshold float64
	shareThreshold    float64
}

// New returns an advisor with the standard thresholds.
func New(opts ...Option) *Advisor {
	a := &Advisor{
		limiter:           ratelimit.New(),
		staleAfter:        30 * 24 * time.Hour,
		increaseThreshold: 5,
		shareThreshold:    70,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ForFMV derives athlete-facing notifications from an FMV result at now.
func (a *Advisor) ForFMV(r fmv.Result, now time.Time) []Notification {
	var out []Notification
	id := func(kind string) string { return kind + ":" + r.AthleteID }

	if gain := types.Round2(r.Score - r.LastNotifiedScore); gain >= a.increaseThreshold {
		out = append(out, Notification{
			ID: id(TypeScoreIncrease), Type: TypeScoreIncrease, Category: "achievement", Priority: types.PriorityHigh,
			Title:   "Your FMV score went up",
			Message: fmt.Sprintf("Your FMV score rose %.2f points to %.2f (%s tier).", gain, r.Score, r.Tier),
		})
	}

	if !r.LastCalculatedAt.IsZero() && now.Sub(r.LastCalculatedAt) > a.staleAfter {
		days := int(now.Sub(r.LastCalculatedAt).Hours() / 24)
		out = append(out, Notification{
			ID: id(TypeStaleScore), Type: TypeStaleScore, Category: "reminder", Priority: types.PriorityMedium,
			Title:   "Your FMV score is out of date",
			Message: fmt.Sprintf("Your score was last calculated %d days ago. Recalculate to reflect recent activity.", days),
		})
	}

	if r.Score >= a.shareThreshold && !r.IsPublic {
		out = append(out, Notification{
			ID: id(TypeShareScore), Type: TypeShareScore, Category: "suggestion", Priority: types.PriorityMedium,
			Title:   "Share your FMV score",
			Message: fmt.Sprintf("A score of %.2f stands out to brands. Make it public to appear in comparisons.", r.Score),
		})
	}

	if st := a.limiter.Status(r.RateLimit, now); st.Used > 0 {
		msg := fmt.Sprintf("%d of %d recalculations left today.", st.Remaining, st.Limit)
		if st.Remaining == 0 {
			msg = "Daily recalculation limit reached. It resets at " + st.ResetAt.UTC().Format(time.RFC3339) + "."
		}
		out = append(out, Notification{
			ID: id(TypeRateLimit), Type: TypeRateLimit, Category: "info", Priority: types.PriorityLow,
			Title: "Recalculation allowance", Message: msg,
		})
	}

	if len(r.Suggestions) > 0 {
		s := r.Suggestions[0]
		out = append(out, Notification{
			ID: id(TypeTopImprovement), Type: TypeTopImprovement, Category: "suggestion", Priority: types.PriorityLow,
			Title:   "Biggest opportunity: " + string(s.Area),
			Message: fmt.Sprintf("%s (up to +%.2f points).", s.Action, s.PotentialGain),
		})
	}
	return sorted(out)
}

// ForCompliance derives officer-facing notifications from a compliance result.
func (a *Advisor) ForCompliance(r compliance.Result) []Notification {
	var out []Notification
	id := func(kind string) string { return kind + ":" + r.DealID }

	switch {
	case r.CriticalForced:
		var crit []string
		for _, d := range r.Dimensions {
			for _, f := range d.Flags {
				if f.Critical() {
					crit = append(crit, f.Code)
				}
			}
		}
		out = append(out, Notification{
			ID: id(TypeComplianceCritical), Type: TypeComplianceCritical, Category: "alert", Priority: types.PriorityHigh,
			Title:   "Critical compliance issue",
			Message: fmt.Sprintf("Deal %s was forced to red by: %s.", r.DealID, strings.Join(crit, ", ")),
		})
	case r.RiskTier == compliance.TierRed:
		out = append(out, Notification{
			ID: id(TypeComplianceRed), Type: TypeComplianceRed, Category: "alert", Priority: types.PriorityHigh,
			Title:   "High-risk deal",
			Message: fmt.Sprintf("Deal %s scored %.2f. Top issue: %s.", r.DealID, r.TotalScore, firstOr(r.ReasonCodes, "none")),
		})
	case r.RiskTier == compliance.TierYellow:
		out = append(out, Notification{
			ID: id(TypeComplianceYellow), Type: TypeComplianceYellow, Category: "review", Priority: types.PriorityMedium,
			Title:   "Deal needs review",
			Message: fmt.Sprintf("Deal %s scored %.2f with %d open findings.", r.DealID, r.TotalScore, len(r.ReasonCodes)),
		})
	default:
		out = append(out, Notification{
			ID: id(TypeComplianceReady), Type: TypeComplianceReady, Category: "info", Priority: types.PriorityLow,
			Title:   "Deal ready for approval",
			Message: fmt.Sprintf("Deal %s scored %.2f with no blocking findings.", r.DealID, r.TotalScore),
		})
	}

	if len(r.FaultedDimensions) > 0 {
		names := make([]string, len(r.FaultedDimensions))
		for i, d := range r.FaultedDimensions {
			names[i] = string(d)
		}
		out = append(out, Notification{
			ID: id(TypeScorerFault), Type: TypeScorerFault, Category: "review", Priority: types.PriorityMedium,
			Title:   "Partial compliance score",
			Message: "These dimensions could not be scored and need manual review: " + strings.Join(names, ", ") + ".",
		})
	}

	if o := r.Override; o != nil {
		out = append(out, Notification{
			ID: id(TypeOverrideApplied), Type: TypeOverrideApplied, Category: "info", Priority: types.PriorityLow,
			Title:   "Officer override on file",
			Message: fmt.Sprintf("Officer %s set %.2f (%s) over the computed %.2f (%s): %s", o.OfficerID, o.Score, o.Tier, r.TotalScore, r.RiskTier, o.Justification),
		})
	}
	return sorted(out)
}

func sorted(ns []Notification) []Notification {
	if ns == nil {
		return []Notification{}
	}
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Priority.Rank() != ns[j].Priority.Rank() {
			return ns[i].Priority.Rank() < ns[j].Priority.Rank()
		}
		return ns[i].ID < ns[j].ID
	})
	return ns
}

func firstOr(xs []string, fallback string) string {
	if len(xs) == 0 {
		return fallback
	}
	return xs[0]
}
