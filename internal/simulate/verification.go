package simulate

import (
	"fmt"

	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/types"
)

const criticalReason = "CRITICAL_FORCED_RED"

var complianceTables = compliance.NewEngine() //nolint:gochecknoglobals // read-only version registry

// checkFMV verifies a stored FMV record against its own version table.
func checkFMV(r fmv.Result) []string {
	var out []string
	if r.Score < 0 || r.Score > 100 {
		out = append(out, fmt.Sprintf("fmv %s: score %.2f outside 0..100", r.AthleteID, r.Score))
	}
	if v, ok := fmv.Lookup(r.Version); !ok {
		out = append(out, fmt.Sprintf("fmv %s: unknown version %q", r.AthleteID, r.Version))
	} else if want := v.TierFor(r.Score); r.Tier != want {
		out = append(out, fmt.Sprintf("fmv %s: tier %s for score %.2f, want %s", r.AthleteID, r.Tier, r.Score, want))
	}
	if r.PercentileRank != fmv.PercentileUnavailable && (r.PercentileRank < 0 || r.PercentileRank > 100) {
		out = append(out, fmt.Sprintf("fmv %s: percentile %.2f outside 0..100", r.AthleteID, r.PercentileRank))
	}
	v := r.EstimatedDealValue
	if v.Low.GreaterThan(v.Mid) || v.Mid.GreaterThan(v.High) {
		out = append(out, fmt.Sprintf("fmv %s: deal value range %s/%s/%s not ordered", r.AthleteID, v.Low, v.Mid, v.High))
	}
	if len(r.History) == 0 {
		out = append(out, fmt.Sprintf("fmv %s: empty history", r.AthleteID))
	}
	return out
}

// checkInitial verifies a first computation did not touch the daily counter.
func checkInitial(r fmv.Result) []string {
	if len(r.History) != 1 || r.History[0].Trigger != fmv.TriggerInitial {
		return []string{fmt.Sprintf("fmv %s: first computation not recorded as initial", r.AthleteID)}
	}
	if r.RateLimit.CountToday != 0 {
		return []string{fmt.Sprintf("fmv %s: first computation counted (%d)", r.AthleteID, r.RateLimit.CountToday)}
	}
	return nil
}

// checkDailyLimit verifies that of several concurrent manual recalculations
// exactly limit were admitted and the rest refused.
func checkDailyLimit(athleteID string, admitted, refused, attempts, limit int) []string {
	want := min(attempts, limit)
	if admitted != want || admitted+refused != attempts {
		return []string{fmt.Sprintf("fmv %s: %d admitted and %d refused of %d, want %d admitted",
			athleteID, admitted, refused, attempts, want)}
	}
	return nil
}

// checkCompliance verifies the tier, the forcing rule and the dimension set.
func checkCompliance(r compliance.Result) []string {
	var out []string
	v, ok := complianceTables.Version(r.ScoreVersion)
	if !ok {
		return []string{fmt.Sprintf("deal %s: unknown score version %q", r.DealID, r.ScoreVersion)}
	}
	if r.TotalScore < 0 || r.TotalScore > 100 {
		out = append(out, fmt.Sprintf("deal %s: total %.2f outside 0..100", r.DealID, r.TotalScore))
	}
	if want := v.Classify(r.TotalScore, r.CriticalForced); r.RiskTier != want {
		out = append(out, fmt.Sprintf("deal %s: tier %s, want %s", r.DealID, r.RiskTier, want))
	}
	if r.CriticalForced && (len(r.ReasonCodes) == 0 || r.ReasonCodes[0] != criticalReason) {
		out = append(out, fmt.Sprintf("deal %s: critical forcing not listed first", r.DealID))
	}
	if r.CriticalForced == r.CanBeApproved {
		out = append(out, fmt.Sprintf("deal %s: canBeApproved=%t with criticalForced=%t", r.DealID, r.CanBeApproved, r.CriticalForced))
	}
	if len(r.Dimensions) != len(v.Dimensions) {
		out = append(out, fmt.Sprintf("deal %s: %d dimensions, want %d", r.DealID, len(r.Dimensions), len(v.Dimensions)))
	}
	return out
}

// checkLeaderboard verifies ordering, competition ranks and that no hidden athlete is listed.
func checkLeaderboard(entries []types.Entry, hidden map[string]bool) []string {
	var out []string
	for i, e := range entries {
		// Ties share the rank of the first entry with that score.
		want := i + 1
		if i > 0 && e.Score == entries[i-1].Score {
			want = entries[i-1].Rank
		}
		if e.Rank != want {
			out = append(out, fmt.Sprintf("leaderboard: entry %d has rank %d, want %d", i, e.Rank, want))
		}
		if i > 0 && e.Score > entries[i-1].Score {
			out = append(out, fmt.Sprintf("leaderboard: entry %d (%.2f) above entry %d (%.2f)", i, e.Score, i-1, entries[i-1].Score))
		}
		if hidden[e.AthleteID] {
			out = append(out, fmt.Sprintf("leaderboard: private athlete %s listed", e.AthleteID))
		}
	}
	return out
}

// checkReconsider verifies that concurrent attempts on one response produced a single winner.
func checkReconsider(id string, won, conflicts, attempts int) []string {
	if won != 1 || won+conflicts != attempts {
		return []string{fmt.Sprintf("response %s: %d reconsidered and %d conflicts of %d attempts, want exactly 1",
			id, won, conflicts, attempts)}
	}
	return nil
}
