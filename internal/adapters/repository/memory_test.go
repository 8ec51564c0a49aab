package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/reconsider"
)

var day = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

func TestMemoryStoreFMV(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with one initial FMV record", t, func() {
		s := NewMemoryStore()
		saved, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1", Score: 60, LastNotifiedScore: 60}, WriteInitial, 3, day)
		So(err, ShouldBeNil)
		So(saved.RateLimit.CountToday, ShouldEqual, 0)
		So(saved.RateLimit.ResetDate, ShouldEqual, "2025-09-01")

		Convey("When a second initial write races in", func() {
			_, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1"}, WriteInitial, 3, day)
			So(errors.Is(err, ErrAlreadyExists), ShouldBeTrue)
		})

		Convey("When counted writes exceed the daily limit", func() {
			for i := 1; i <= 3; i++ {
				r, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1", Score: 61}, WriteCounted, 3, day)
				So(err, ShouldBeNil)
				So(r.RateLimit.CountToday, ShouldEqual, i)
			}
			_, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1", Score: 99}, WriteCounted, 3, day)

			Convey("Then the fourth is refused and nothing changes", func() {
				var rl *faults.RateLimitExceeded
				So(errors.As(err, &rl), ShouldBeTrue)
				So(rl.ResetAt, ShouldEqual, time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC))
				got, _ := s.GetFMV(ctx, "a1")
				So(got.Score, ShouldEqual, 61)
			})

			Convey("Then the next UTC day starts over", func() {
				r, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1"}, WriteCounted, 3, day.Add(14*time.Hour))
				So(err, ShouldBeNil)
				So(r.RateLimit.CountToday, ShouldEqual, 1)
				So(r.RateLimit.ResetDate, ShouldEqual, "2025-09-02")
			})

			Convey("Then an uncounted write still lands", func() {
				r, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1", Score: 70}, WriteUncounted, 3, day)
				So(err, ShouldBeNil)
				So(r.RateLimit.CountToday, ShouldEqual, 3)
				So(r.Score, ShouldEqual, 70)
			})
		})

		Convey("When visibility and the notified baseline change between read and write", func() {
			So(s.SetFMVVisibility(ctx, "a1", true), ShouldBeNil)
			So(s.MarkFMVNotified(ctx, "a1", 64), ShouldBeNil)
			r, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1", Score: 66, LastNotifiedScore: 60}, WriteUncounted, 3, day)

			Convey("Then the stored values win", func() {
				So(err, ShouldBeNil)
				So(r.IsPublic, ShouldBeTrue)
				So(r.LastNotifiedScore, ShouldEqual, 64)
			})
		})

		Convey("When updating an unknown athlete", func() {
			_, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "nobody"}, WriteCounted, 3, day)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(errors.Is(s.SetFMVVisibility(ctx, "nobody", true), ErrNotFound), ShouldBeTrue)
			_, err = s.GetFMV(ctx, "nobody")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When callers mutate what they read", func() {
			got, _ := s.GetFMV(ctx, "a1")
			got.History = append(got.History, fmv.HistoryEntry{Score: 1})
			again, _ := s.GetFMV(ctx, "a1")
			So(again.History, ShouldBeEmpty)
		})
	})

	Convey("Given many concurrent counted writes", t, func() {
		s := NewMemoryStore()
		_, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1"}, WriteInitial, 3, day)
		So(err, ShouldBeNil)

		var ok, limited atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1"}, WriteCounted, 3, day)
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, faults.ErrRateLimited):
					limited.Add(1)
				}
			}()
		}
		wg.Wait()

		So(ok.Load(), ShouldEqual, 3)
		So(limited.Load(), ShouldEqual, 17)
	})

	Convey("Given writers that all computed from the same stale read", t, func() {
		s := NewMemoryStore()
		initial := fmv.HistoryEntry{Score: 50, Trigger: fmv.TriggerInitial}
		_, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1", History: []fmv.HistoryEntry{initial}}, WriteInitial, 3, day)
		So(err, ShouldBeNil)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(score float64) {
				defer wg.Done()
				stale := []fmv.HistoryEntry{initial, {Score: score, Trigger: fmv.TriggerManual}}
				_, _ = s.SaveFMV(ctx, fmv.Result{AthleteID: "a1", Score: score, History: stale}, WriteCounted, 3, day)
			}(float64(60 + i))
		}
		wg.Wait()

		got, err := s.GetFMV(ctx, "a1")
		So(err, ShouldBeNil)

		Convey("Then every admitted write left its entry", func() {
			So(got.RateLimit.CountToday, ShouldEqual, 3)
			So(got.History, ShouldHaveLength, 1+got.RateLimit.CountToday)
			So(got.History[0], ShouldResemble, initial)
			So(got.History[len(got.History)-1].Score, ShouldEqual, got.Score)
		})
	})

	Convey("Given a record at the history cap", t, func() {
		s := NewMemoryStore()
		full := make([]fmv.HistoryEntry, fmv.MaxHistory)
		for i := range full {
			full[i] = fmv.HistoryEntry{Score: float64(i)}
		}
		_, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1", History: full}, WriteInitial, 3, day)
		So(err, ShouldBeNil)

		r, err := s.SaveFMV(ctx, fmv.Result{AthleteID: "a1", History: []fmv.HistoryEntry{{Score: 99}}}, WriteUncounted, 3, day)
		So(err, ShouldBeNil)
		So(r.History, ShouldHaveLength, fmv.MaxHistory)
		So(r.History[0].Score, ShouldEqual, 1)
		So(r.History[fmv.MaxHistory-1].Score, ShouldEqual, 99)
	})
}

func TestMemoryStoreCompliance(t *testing.T) {
	ctx := context.Background()

	Convey("Given a stored compliance result", t, func() {
		s := NewMemoryStore()
		r := compliance.Result{DealID: "d1", TotalScore: 42, RiskTier: compliance.TierRed, ReasonCodes: []string{"X"}}
		So(s.InsertCompliance(ctx, r), ShouldBeNil)

		Convey("Then the same deal version cannot be scored twice", func() {
			So(errors.Is(s.InsertCompliance(ctx, r), ErrAlreadyExists), ShouldBeTrue)
		})

		Convey("When an override is set", func() {
			o := compliance.Override{ID: "o1", OfficerID: "off", Score: 85, Tier: compliance.TierGreen, Justification: "ok"}
			So(s.SetOverride(ctx, "d1", o), ShouldBeNil)

			Convey("Then computed fields are untouched", func() {
				got, err := s.GetCompliance(ctx, "d1")
				So(err, ShouldBeNil)
				So(got.TotalScore, ShouldEqual, 42)
				So(got.RiskTier, ShouldEqual, compliance.TierRed)
				So(got.EffectiveTier(), ShouldEqual, compliance.TierGreen)
				So(got.OverrideHistory, ShouldBeEmpty)
			})

			Convey("Then a second override keeps the first on file", func() {
				second := compliance.Override{ID: "o2", OfficerID: "lead", Score: 40, Tier: compliance.TierRed, Justification: "revoked"}
				So(s.SetOverride(ctx, "d1", second), ShouldBeNil)

				got, err := s.GetCompliance(ctx, "d1")
				So(err, ShouldBeNil)
				So(got.Override.ID, ShouldEqual, "o2")
				So(got.OverrideHistory, ShouldResemble, []compliance.Override{o})
			})
		})

		Convey("Then overriding an unknown deal fails", func() {
			So(errors.Is(s.SetOverride(ctx, "nope", compliance.Override{}), ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreResponses(t *testing.T) {
	ctx := context.Background()

	Convey("Given a declined response", t, func() {
		s := NewMemoryStore()
		rec, err := reconsider.New("r1", reconsider.KindDealInvite, "a1", "d1", day)
		So(err, ShouldBeNil)
		So(s.CreateResponse(ctx, rec), ShouldBeNil)
		So(errors.Is(s.CreateResponse(ctx, rec), ErrAlreadyExists), ShouldBeTrue)

		declined, err := reconsider.Respond(rec, reconsider.ActionDecline, day)
		So(err, ShouldBeNil)
		So(s.ApplyTransition(ctx, declined), ShouldBeNil)

		stored, _ := s.GetResponse(ctx, "r1")
		tr, err := reconsider.Reconsider(*stored, day.Add(time.Hour))
		So(err, ShouldBeNil)

		Convey("When two callers reconsider from the same snapshot", func() {
			first := s.ApplyTransition(ctx, tr)
			second := s.ApplyTransition(ctx, tr)

			Convey("Then only one wins", func() {
				So(first, ShouldBeNil)
				reason, ok := faults.ReasonOf(second)
				So(ok, ShouldBeTrue)
				So(reason, ShouldEqual, faults.ReasonConcurrentUpdate)

				got, _ := s.GetResponse(ctx, "r1")
				So(got.Status, ShouldEqual, reconsider.StatusInvited)
				So(got.Reconsidered(), ShouldBeTrue)
			})
		})
	})
}
