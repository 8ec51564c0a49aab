package advisor

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/ratelimit"
	"github.com/okian/nilcore/internal/domain/types"
)

var now = time.Date(2025, 7, 15, 18, 0, 0, 0, time.UTC)

func typesOf(ns []Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Type
	}
	return out
}

func TestForFMV(t *testing.T) {
	Convey("Given a private, stale, improved FMV result with no recalculations today", t, func() {
		r := fmv.Result{
			AthleteID:         "a1",
			Score:             78,
			Tier:              fmv.TierHigh,
			LastNotifiedScore: 70,
			LastCalculatedAt:  now.Add(-31 * 24 * time.Hour),
			RateLimit:         ratelimit.State{CountToday: 2, ResetDate: "2025-06-14"},
			Suggestions:       []fmv.Suggestion{{Area: fmv.AreaBrand, Action: "Complete a first deal", PotentialGain: 14}},
		}
		a := New()
		ns := a.ForFMV(r, now)

		Convey("Then each rule fires once, ordered high to low", func() {
			So(typesOf(ns), ShouldResemble, []string{
				TypeScoreIncrease,
				TypeShareScore,
				TypeStaleScore,
				TypeTopImprovement,
			})
			So(ns[0].Priority, ShouldEqual, types.PriorityHigh)
			So(ns[0].ID, ShouldEqual, "score_increase:a1")
			So(ns[0].Message, ShouldContainSubstring, "8.00 points")
		})

		Convey("Then a counter from an earlier day produces no allowance notice", func() {
			for _, n := range ns {
				So(n.Type, ShouldNotEqual, TypeRateLimit)
			}
		})

		Convey("Then the output is deterministic", func() {
			So(a.ForFMV(r, now), ShouldResemble, ns)
		})
	})

	Convey("Given a public result that used every recalculation today", t, func() {
		r := fmv.Result{
			AthleteID:         "a2",
			Score:             90,
			LastNotifiedScore: 88,
			IsPublic:          true,
			LastCalculatedAt:  now.Add(-time.Hour),
			RateLimit:         ratelimit.State{CountToday: 3, ResetDate: "2025-07-15"},
		}
		ns := New().ForFMV(r, now)

		Convey("Then only the limit notice remains", func() {
			So(typesOf(ns), ShouldResemble, []string{TypeRateLimit})
			So(ns[0].Message, ShouldContainSubstring, "2025-07-16T00:00:00Z")
		})
	})

	Convey("Given a result with nothing to report", t, func() {
		ns := New().ForFMV(fmv.Result{AthleteID: "a3", Score: 40, LastNotifiedScore: 40, LastCalculatedAt: now}, now)
		So(ns, ShouldNotBeNil)
		So(ns, ShouldBeEmpty)
	})
}

func TestForCompliance(t *testing.T) {
	Convey("Given a critical result with a faulted dimension and an override", t, func() {
		r := compliance.Result{
			DealID:         "d1",
			TotalScore:     88,
			RiskTier:       compliance.TierRed,
			CriticalForced: true,
			Dimensions: []compliance.DimensionResult{{
				Dimension: compliance.BrandSafety,
				Flags:     []compliance.Flag{{Code: "BRAND_PROHIBITED_CATEGORY", Severity: compliance.SeverityCritical}},
			}},
			FaultedDimensions: []compliance.DimensionID{compliance.TaxReadiness},
			Override:          &compliance.Override{OfficerID: "o1", Score: 60, Tier: compliance.TierYellow, Justification: "reviewed"},
		}
		ns := New().ForCompliance(r)

		So(typesOf(ns), ShouldResemble, []string{TypeComplianceCritical, TypeScorerFault, TypeOverrideApplied})
		So(ns[0].Message, ShouldContainSubstring, "BRAND_PROHIBITED_CATEGORY")
		So(ns[1].Message, ShouldContainSubstring, "tax_readiness")
	})

	Convey("Given green and yellow results", t, func() {
		green := New().ForCompliance(compliance.Result{DealID: "g", TotalScore: 95, RiskTier: compliance.TierGreen, CanBeApproved: true})
		So(typesOf(green), ShouldResemble, []string{TypeComplianceReady})

		yellow := New().ForCompliance(compliance.Result{DealID: "y", TotalScore: 61, RiskTier: compliance.TierYellow, ReasonCodes: []string{"A", "B"}})
		So(typesOf(yellow), ShouldResemble, []string{TypeComplianceYellow})
		So(yellow[0].Message, ShouldContainSubstring, "2 open findings")
	})
}
