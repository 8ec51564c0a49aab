package compliance

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/types"
)

var fixedNow = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func contractText() string {
	body := "This endorsement agreement sets compensation of five hundred dollars payable on signature. " +
		"The term runs for ninety days from the effective date. Deliverables: two sponsored posts. " +
		"Either party may terminate with ten days written notice. "
	return body + strings.Repeat("Standard provisions apply. ", 20)
}

func cleanDeal() Deal {
	return Deal{
		ID:                 "d1",
		AthleteID:          "a1",
		ThirdPartyName:     "Summit Apparel",
		ThirdPartyCategory: "apparel",
		Type:               DealEndorsement,
		Compensation:       decimal.NewFromInt(500),
		Deliverables:       "Two Instagram posts",
		ContractText:       contractText(),
		ContractRef:        "doc://contracts/d1",
	}
}

func cleanAthlete() AthleteContext {
	return AthleteContext{
		AthleteID:       "a1",
		Role:            RoleCollege,
		State:           "CA",
		Sport:           "basketball",
		TaxAcknowledged: true,
		FMVEstimate: &fmv.DealValue{
			Low:  decimal.NewFromInt(200),
			Mid:  decimal.NewFromInt(600),
			High: decimal.NewFromInt(1000),
		},
	}
}

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithClock(clock.NewManual(fixedNow))}, opts...)...)
}

func TestScoreCleanDeal(t *testing.T) {
	Convey("Given a fully documented college deal within FMV", t, func() {
		res, err := newTestEngine().Score(cleanDeal(), cleanAthlete(), "")
		So(err, ShouldBeNil)

		Convey("Then every dimension is perfect and the tier is green", func() {
			So(res.TotalScore, ShouldEqual, 100)
			So(res.RiskTier, ShouldEqual, TierGreen)
			So(res.CanBeApproved, ShouldBeTrue)
			So(res.ScoreVersion, ShouldEqual, "v1")
			So(res.ComputedAt, ShouldEqual, fixedNow)
			So(len(res.Dimensions), ShouldEqual, 6)
			for _, d := range res.Dimensions {
				So(d.Score, ShouldEqual, 100)
			}
		})

		Convey("Then informational flags do not become reason codes", func() {
			So(res.ReasonCodes, ShouldBeEmpty)
			So(res.FixRecommendations, ShouldBeEmpty)
			g, _ := res.Dimension(GuardianConsent)
			So(g.Flags[0].Code, ShouldEqual, "GUARDIAN_CONSENT_NOT_REQUIRED")
		})

		Convey("Then scoring the same inputs again is identical", func() {
			again, err := newTestEngine().Score(cleanDeal(), cleanAthlete(), "v1")
			So(err, ShouldBeNil)
			So(again, ShouldResemble, res)
		})
	})
}

func TestPayForPlay(t *testing.T) {
	Convey("Given a $50,000 booster-connected performance deal against an $8,000 FMV high", t, func() {
		deal := cleanDeal()
		deal.Compensation = decimal.NewFromInt(50000)
		deal.BoosterConnected = true
		deal.PerformanceBased = true
		athlete := cleanAthlete()
		athlete.FMVEstimate = &fmv.DealValue{Low: decimal.NewFromInt(2000), Mid: decimal.NewFromInt(5000), High: decimal.NewFromInt(8000)}

		res, err := newTestEngine().Score(deal, athlete, "v1")
		So(err, ShouldBeNil)

		Convey("Then fmv_verification raises a critical flag", func() {
			d, ok := res.Dimension(FMVVerification)
			So(ok, ShouldBeTrue)
			So(d.Critical(), ShouldBeTrue)
			So(d.Score, ShouldEqual, 15)
		})

		Convey("Then the tier is forced red although the total is yellow", func() {
			So(res.TotalScore, ShouldAlmostEqual, 66.25, 1e-9)
			So(V1.TierFor(res.TotalScore), ShouldEqual, TierYellow)
			So(res.RiskTier, ShouldEqual, TierRed)
			So(res.CriticalForced, ShouldBeTrue)
			So(res.CanBeApproved, ShouldBeFalse)
		})

		Convey("Then reason codes lead with the forced tier and follow severity then weight", func() {
			So(res.ReasonCodes, ShouldResemble, []string{
				CodeCriticalForcedRed,
				"PAY_FOR_PLAY_RISK",
				"BOOSTER_CONNECTED",
				"PERFORMANCE_BASED_PAY",
				"FMV_EXTREME_OVERPAY",
			})
			So(res.FixRecommendations[0].Priority, ShouldEqual, types.PriorityCritical)
			So(res.FixRecommendations[0].Dimension, ShouldEqual, FMVVerification)
			So(res.FixRecommendations[0].Action, ShouldNotBeBlank)
		})
	})
}

func TestCriticalForcesRed(t *testing.T) {
	Convey("Given a dimension that scores perfectly but raises a critical flag", t, func() {
		e := newTestEngine(WithScorer(BrandSafety, ScorerFunc(func(Input) (Outcome, error) {
			return Outcome{Raw: 100, Flags: []Flag{{Code: "SANCTIONED_SPONSOR", Severity: SeverityCritical, Message: "sponsor is sanctioned"}}}, nil
		})))

		res, err := e.Score(cleanDeal(), cleanAthlete(), "v1")
		So(err, ShouldBeNil)

		Convey("Then a total of 100 still yields red", func() {
			So(res.TotalScore, ShouldEqual, 100)
			So(res.RiskTier, ShouldEqual, TierRed)
			So(res.ReasonCodes[0], ShouldEqual, CodeCriticalForcedRed)
			So(res.ReasonCodes[1], ShouldEqual, "SANCTIONED_SPONSOR")
		})
	})

	Convey("Classification is a function of total and critical only", t, func() {
		So(V1.Classify(92, true), ShouldEqual, TierRed)
		So(V1.Classify(92, false), ShouldEqual, TierGreen)
		So(V1.Classify(80, false), ShouldEqual, TierGreen)
		So(V1.Classify(79.99, false), ShouldEqual, TierYellow)
		So(V1.Classify(50, false), ShouldEqual, TierYellow)
		So(V1.Classify(49.99, false), ShouldEqual, TierRed)
	})
}

func TestScorerFaultIsolation(t *testing.T) {
	Convey("Given a brand scorer that panics and a tax scorer that errors", t, func() {
		e := newTestEngine(
			WithScorer(BrandSafety, ScorerFunc(func(Input) (Outcome, error) { panic("category table missing") })),
			WithScorer(TaxReadiness, ScorerFunc(func(Input) (Outcome, error) { return Outcome{}, errors.New("bad input") })),
		)

		res, err := e.Score(cleanDeal(), cleanAthlete(), "v1")

		Convey("Then scoring completes with both dimensions zeroed and flagged", func() {
			So(err, ShouldBeNil)
			So(res.FaultedDimensions, ShouldResemble, []DimensionID{TaxReadiness, BrandSafety})
			So(res.TotalScore, ShouldEqual, 75)
			So(res.RiskTier, ShouldEqual, TierYellow)

			b, _ := res.Dimension(BrandSafety)
			So(b.Score, ShouldEqual, 0)
			So(b.Faulted, ShouldBeTrue)
			So(b.Notes[0], ShouldContainSubstring, "category table missing")
			So(res.ReasonCodes, ShouldContain, "SCORER_FAULT:BRAND_SAFETY")
			So(res.ReasonCodes, ShouldContain, "SCORER_FAULT:TAX_READINESS")
			So(res.ReasonCodes[0], ShouldEqual, "SCORER_FAULT:TAX_READINESS")
		})
	})
}

func TestMissingOptionalData(t *testing.T) {
	Convey("Given a deal with no contract and no FMV estimate", t, func() {
		deal := cleanDeal()
		deal.ContractText = ""
		deal.ContractRef = ""
		athlete := cleanAthlete()
		athlete.FMVEstimate = nil

		res, err := newTestEngine().Score(deal, athlete, "v1")

		Convey("Then document hygiene scores its floor instead of failing", func() {
			So(err, ShouldBeNil)
			d, _ := res.Dimension(DocumentHygiene)
			So(d.Score, ShouldEqual, 0)
			So(res.ReasonCodes, ShouldContain, "CONTRACT_MISSING")

			f, _ := res.Dimension(FMVVerification)
			So(f.Score, ShouldEqual, 70)
			So(res.TotalScore, ShouldAlmostEqual, 75.5, 1e-9)
			So(res.RiskTier, ShouldEqual, TierYellow)
		})
	})

	Convey("Given a referenced contract whose text is unavailable and an external analysis", t, func() {
		deal := cleanDeal()
		deal.ContractText = ""
		deal.Analysis = &DocumentAnalysis{Score: 50, Notes: "exclusivity clause unclear"}

		res, err := newTestEngine().Score(deal, cleanAthlete(), "v1")
		So(err, ShouldBeNil)

		d, _ := res.Dimension(DocumentHygiene)
		So(d.RawScore, ShouldAlmostEqual, 8.6, 1e-9)
		So(d.Score, ShouldAlmostEqual, 43, 1e-9)
		So(res.ReasonCodes, ShouldContain, "CONTRACT_TEXT_UNAVAILABLE")
		So(strings.Join(d.Notes, "|"), ShouldContainSubstring, "exclusivity")
	})
}

func TestAthleteRules(t *testing.T) {
	Convey("Given a high school athlete in a state that bans high school NIL", t, func() {
		athlete := cleanAthlete()
		athlete.Role = "HS_Student"
		athlete.State = "ma"
		athlete.IsMinor = true
		athlete.GuardianConsent = ConsentApproved

		res, err := newTestEngine().Score(cleanDeal(), athlete, "v1")
		So(err, ShouldBeNil)

		p, _ := res.Dimension(PolicyFit)
		So(p.Score, ShouldEqual, 0)
		So(res.RiskTier, ShouldEqual, TierRed)
		So(res.ReasonCodes[1], ShouldEqual, "STATE_HS_NIL_PROHIBITED")
	})

	Convey("Given a minor whose guardian consent is pending", t, func() {
		athlete := cleanAthlete()
		athlete.IsMinor = true
		athlete.GuardianConsent = ConsentPending

		res, err := newTestEngine().Score(cleanDeal(), athlete, "v1")
		So(err, ShouldBeNil)
		So(res.TotalScore, ShouldEqual, 93)
		So(res.RiskTier, ShouldEqual, TierGreen)
		So(res.ReasonCodes, ShouldResemble, []string{"GUARDIAN_CONSENT_PENDING"})
	})

	Convey("Given a sponsor whose category is only visible in its name", t, func() {
		deal := cleanDeal()
		deal.ThirdPartyCategory = ""
		deal.ThirdPartyName = "Lucky Casino Group"

		res, err := newTestEngine().Score(deal, cleanAthlete(), "v1")
		So(err, ShouldBeNil)
		So(res.RiskTier, ShouldEqual, TierRed)
		So(res.ReasonCodes, ShouldContain, "BRAND_PROHIBITED_CATEGORY")
	})

	Convey("Given a large deal without tax acknowledgement", t, func() {
		deal := cleanDeal()
		deal.Compensation = decimal.NewFromInt(900)
		athlete := cleanAthlete()
		athlete.TaxAcknowledged = false

		res, err := newTestEngine().Score(deal, athlete, "v1")
		So(err, ShouldBeNil)
		tax, _ := res.Dimension(TaxReadiness)
		So(tax.Score, ShouldEqual, 20)
		So(res.FixRecommendations[0].Code, ShouldEqual, "TAX_NOT_ACKNOWLEDGED")
		So(res.FixRecommendations[0].Priority, ShouldEqual, types.PriorityHigh)
	})
}

func TestValidation(t *testing.T) {
	Convey("Given inputs missing required identifiers or carrying bad enums", t, func() {
		e := newTestEngine()
		cases := map[string]func(*Deal, *AthleteContext){
			"deal id":         func(d *Deal, _ *AthleteContext) { d.ID = " " },
			"deal athlete":    func(d *Deal, _ *AthleteContext) { d.AthleteID = "" },
			"context athlete": func(_ *Deal, a *AthleteContext) { a.AthleteID = "" },
			"mismatch":        func(_ *Deal, a *AthleteContext) { a.AthleteID = "other" },
			"negative pay":    func(d *Deal, _ *AthleteContext) { d.Compensation = decimal.NewFromInt(-1) },
			"deal type":       func(d *Deal, _ *AthleteContext) { d.Type = "lottery" },
			"role":            func(_ *Deal, a *AthleteContext) { a.Role = "coach" },
			"consent":         func(_ *Deal, a *AthleteContext) { a.GuardianConsent = "maybe" },
			"analysis":        func(d *Deal, _ *AthleteContext) { d.Analysis = &DocumentAnalysis{Score: 140} },
		}
		for name, mutate := range cases {
			d, a := cleanDeal(), cleanAthlete()
			mutate(&d, &a)
			res, err := e.Score(d, a, "v1")

			So(res, ShouldBeNil)
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
			_ = name
		}

		_, err := e.Score(cleanDeal(), cleanAthlete(), "v9")
		So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
	})
}

func TestTotalsStayBounded(t *testing.T) {
	Convey("Given every combination of risky attributes", t, func() {
		e := newTestEngine()
		for _, booster := range []bool{false, true} {
			for _, perf := range []bool{false, true} {
				for _, school := range []bool{false, true} {
					for _, comp := range []int64{0, 599, 5000, 80000} {
						d := cleanDeal()
						d.BoosterConnected, d.PerformanceBased, d.SchoolAffiliated = booster, perf, school
						d.Compensation = decimal.NewFromInt(comp)

						res, err := e.Score(d, cleanAthlete(), "v1")
						So(err, ShouldBeNil)
						So(res.TotalScore, ShouldBeBetweenOrEqual, 0, 100)
						So(res.RiskTier, ShouldEqual, V1.Classify(res.TotalScore, res.CriticalForced))
					}
				}
			}
		}
	})

	Convey("The v1 weights sum to one", t, func() {
		So(V1.WeightSum(), ShouldAlmostEqual, 1.0, 1e-9)
	})
}

func TestOverride(t *testing.T) {
	Convey("Given a red verdict", t, func() {
		e := newTestEngine()
		deal := cleanDeal()
		deal.ThirdPartyCategory = "gambling"
		res, err := e.Score(deal, cleanAthlete(), "v1")
		So(err, ShouldBeNil)
		So(res.RiskTier, ShouldEqual, TierRed)

		Convey("When an officer overrides it", func() {
			out, err := e.ApplyOverride(*res, Override{OfficerID: "off-1", Score: 82, Justification: "sponsor is a fantasy sports nonprofit"})
			So(err, ShouldBeNil)

			Convey("Then the override supersedes the tier for display only", func() {
				So(out.EffectiveTier(), ShouldEqual, TierGreen)
				So(out.RiskTier, ShouldEqual, TierRed)
				So(out.TotalScore, ShouldEqual, res.TotalScore)
				So(out.ReasonCodes, ShouldResemble, res.ReasonCodes)
				So(out.Override.ID, ShouldNotBeBlank)
				So(out.Override.At, ShouldEqual, fixedNow)
				So(res.Override, ShouldBeNil)
				So(out.OverrideHistory, ShouldBeEmpty)
			})

			Convey("Then a second override keeps the first in history", func() {
				again, err := e.ApplyOverride(out, Override{OfficerID: "off-2", Score: 55, Justification: "sponsor status changed"})
				So(err, ShouldBeNil)
				So(again.Override.OfficerID, ShouldEqual, "off-2")
				So(again.EffectiveTier(), ShouldEqual, TierYellow)
				So(again.OverrideHistory, ShouldHaveLength, 1)
				So(again.OverrideHistory[0], ShouldResemble, *out.Override)
				So(out.OverrideHistory, ShouldBeEmpty)
			})
		})

		Convey("When the justification is missing", func() {
			_, err := e.ApplyOverride(*res, Override{OfficerID: "off-1", Score: 82})
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
		})

		Convey("When the score is out of range", func() {
			_, err := e.ApplyOverride(*res, Override{OfficerID: "off-1", Score: 101, Justification: "x"})
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
		})
	})
}
