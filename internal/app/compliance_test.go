package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nilcore/internal/adapters/repository"
	service "github.com/okian/nilcore/internal/app"
	"github.com/okian/nilcore/internal/domain/advisor"
	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/fmv"
)

type countingAnalyzer struct {
	calls atomic.Int32
	err   error
}

func (a *countingAnalyzer) Analyze(_ context.Context, _ compliance.Deal) (*compliance.DocumentAnalysis, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	return &compliance.DocumentAnalysis{Score: 90, Notes: "reviewed"}, nil
}

func TestService_ScoreCompliance(t *testing.T) {
	Convey("Given a service and an athlete with a stored FMV record", t, func() {
		ctx := context.Background()
		svc := newService(clock.NewManual(start))
		_, err := svc.CalculateFMV(ctx, reachSignals("a1", "football", 40_000), fmv.TriggerManual)
		So(err, ShouldBeNil)

		Convey("When a deal is scored", func() {
			res, err := svc.ScoreCompliance(ctx, deal("d1", "a1"), athlete("a1"), "")
			So(err, ShouldBeNil)

			Convey("Then the result is stored under the default version", func() {
				So(res.ScoreVersion, ShouldEqual, compliance.DefaultVersion)
				So(res.ComputedAt, ShouldEqual, start)
				got, err := svc.GetCompliance(ctx, "d1")
				So(err, ShouldBeNil)
				So(got.TotalScore, ShouldEqual, res.TotalScore)
				So(got.RiskTier, ShouldEqual, res.RiskTier)
			})

			Convey("Then scoring the same deal id again is refused", func() {
				_, err := svc.ScoreCompliance(ctx, deal("d1", "a1"), athlete("a1"), "")
				So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)
			})

			Convey("Then a resubmission links to the prior version", func() {
				next := deal("d2", "a1")
				next.PriorDealID = "d1"
				res, err := svc.ScoreCompliance(ctx, next, athlete("a1"), "")
				So(err, ShouldBeNil)
				So(res.PriorDealID, ShouldEqual, "d1")
			})

			Convey("Then a resubmission for another athlete is rejected", func() {
				next := deal("d3", "a2")
				next.PriorDealID = "d1"
				_, err := svc.ScoreCompliance(ctx, next, athlete("a2"), "")
				So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
			})

			Convey("Then the notifications describe the verdict", func() {
				ns, err := svc.ComplianceNotifications(ctx, "d1")
				So(err, ShouldBeNil)
				So(len(ns), ShouldBeGreaterThan, 0)
				So(ns[0].ID, ShouldEndWith, ":d1")
			})
		})

		Convey("A resubmission of an unknown deal is rejected", func() {
			next := deal("d9", "a1")
			next.PriorDealID = "missing"
			_, err := svc.ScoreCompliance(ctx, next, athlete("a1"), "")
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
			_, err = svc.GetCompliance(ctx, "d9")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("An unknown score version is rejected", func() {
			_, err := svc.ScoreCompliance(ctx, deal("d1", "a1"), athlete("a1"), "v99")
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
		})

		Convey("A deal without an athlete id is rejected", func() {
			_, err := svc.ScoreCompliance(ctx, deal("d4", ""), athlete("a1"), "")
			var ve *faults.ValidationError
			So(errors.As(err, &ve), ShouldBeTrue)
			So(ve.Field, ShouldEqual, "deal.athleteId")
			_, err = svc.GetCompliance(ctx, "d4")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_ScoreCompliance_Analysis(t *testing.T) {
	Convey("Given a service with a contract analyzer", t, func() {
		ctx := context.Background()
		a := &countingAnalyzer{}
		svc := newService(clock.NewManual(start), service.WithAnalyzer(a))

		Convey("A deal with contract text and no analysis is analyzed", func() {
			d := deal("d1", "a1")
			d.ContractText = "Endorsement agreement with a morals clause."
			_, err := svc.ScoreCompliance(ctx, d, athlete("a1"), "")
			So(err, ShouldBeNil)
			So(a.calls.Load(), ShouldEqual, 1)
		})

		Convey("A deal that already carries an analysis is not analyzed again", func() {
			d := deal("d1", "a1")
			d.ContractText = "Endorsement agreement."
			d.Analysis = &compliance.DocumentAnalysis{Score: 50}
			_, err := svc.ScoreCompliance(ctx, d, athlete("a1"), "")
			So(err, ShouldBeNil)
			So(a.calls.Load(), ShouldEqual, 0)
		})

		Convey("Nothing is analyzed for a request with missing identifiers", func() {
			d := deal("", "a1")
			d.ContractText = "Endorsement agreement."
			_, err := svc.ScoreCompliance(ctx, d, athlete("a1"), "")
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)

			d = deal("d5", "a1")
			d.ContractText = "Endorsement agreement."
			_, err = svc.ScoreCompliance(ctx, d, athlete("someone-else"), "")
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
			So(a.calls.Load(), ShouldEqual, 0)
		})

		Convey("An analyzer failure does not block scoring", func() {
			a.err = errors.New("model unavailable")
			d := deal("d1", "a1")
			d.ContractText = "Endorsement agreement."
			res, err := svc.ScoreCompliance(ctx, d, athlete("a1"), "")
			So(err, ShouldBeNil)
			So(res, ShouldNotBeNil)
		})
	})
}

func TestService_OverrideCompliance(t *testing.T) {
	Convey("Given a scored deal", t, func() {
		ctx := context.Background()
		svc := newService(clock.NewManual(start))
		scored, err := svc.ScoreCompliance(ctx, deal("d1", "a1"), athlete("a1"), "")
		So(err, ShouldBeNil)

		Convey("When an officer overrides it", func() {
			res, err := svc.OverrideCompliance(ctx, "d1", compliance.Override{
				OfficerID: "officer-1", Score: 95, Justification: "verified with the brand",
			})
			So(err, ShouldBeNil)

			Convey("Then the override sits beside the computed verdict", func() {
				So(res.Override.Tier, ShouldEqual, compliance.TierGreen)
				So(res.Override.ID, ShouldNotBeEmpty)
				So(res.Override.At, ShouldEqual, start)
				So(res.TotalScore, ShouldEqual, scored.TotalScore)
				So(res.RiskTier, ShouldEqual, scored.RiskTier)

				got, _ := svc.GetCompliance(ctx, "d1")
				So(got.EffectiveTier(), ShouldEqual, compliance.TierGreen)
				So(got.TotalScore, ShouldEqual, scored.TotalScore)
			})

			Convey("Then the notifications mention it", func() {
				ns, _ := svc.ComplianceNotifications(ctx, "d1")
				So(kinds(ns), ShouldContain, advisor.TypeOverrideApplied)
			})

			Convey("Then a second override supersedes it without losing it", func() {
				second, err := svc.OverrideCompliance(ctx, "d1", compliance.Override{
					OfficerID: "officer-2", Score: 30, Justification: "brand failed the audit",
				})
				So(err, ShouldBeNil)
				So(second.Override.OfficerID, ShouldEqual, "officer-2")
				So(second.EffectiveTier(), ShouldEqual, compliance.TierRed)
				So(second.OverrideHistory, ShouldHaveLength, 1)
				So(second.OverrideHistory[0].ID, ShouldEqual, res.Override.ID)
				So(second.OverrideHistory[0].OfficerID, ShouldEqual, "officer-1")
			})
		})

		Convey("An override without a justification is rejected", func() {
			_, err := svc.OverrideCompliance(ctx, "d1", compliance.Override{OfficerID: "officer-1", Score: 95})
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
			got, _ := svc.GetCompliance(ctx, "d1")
			So(got.Override, ShouldBeNil)
		})

		Convey("An override of an unknown deal is not found", func() {
			_, err := svc.OverrideCompliance(ctx, "ghost", compliance.Override{
				OfficerID: "officer-1", Score: 95, Justification: "x",
			})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
