package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nilcore/internal/adapters/repository"
	service "github.com/okian/nilcore/internal/app"
	"github.com/okian/nilcore/internal/domain/advisor"
	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/fmv"
)

func kinds(ns []advisor.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Type)
	}
	return out
}

func TestService_CalculateFMV_DailyLimit(t *testing.T) {
	Convey("Given an athlete whose first computation is stored", t, func() {
		ctx := context.Background()
		c := clock.NewManual(start)
		svc := newService(c)

		first, err := svc.CalculateFMV(ctx, reachSignals("a1", "football", 10_000), fmv.TriggerManual)
		So(err, ShouldBeNil)

		Convey("Then the first computation is exempt from the limit", func() {
			So(first.RateLimit.CountToday, ShouldEqual, 0)
			So(first.History[0].Trigger, ShouldEqual, fmv.TriggerInitial)
		})

		Convey("When three manual recalculations succeed", func() {
			for i := 0; i < 3; i++ {
				_, err := svc.CalculateFMV(ctx, reachSignals("a1", "football", 10_000), fmv.TriggerManual)
				So(err, ShouldBeNil)
			}
			before, _ := svc.GetFMV(ctx, "a1")

			Convey("Then the fourth is refused and nothing changes", func() {
				_, err := svc.CalculateFMV(ctx, reachSignals("a1", "football", 900_000), fmv.TriggerManual)
				var rl *faults.RateLimitExceeded
				So(errors.As(err, &rl), ShouldBeTrue)
				So(rl.Used, ShouldEqual, 3)
				So(rl.ResetAt, ShouldEqual, time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC))

				after, _ := svc.GetFMV(ctx, "a1")
				So(after.Score, ShouldEqual, before.Score)
				So(len(after.History), ShouldEqual, len(before.History))
				So(after.RateLimit, ShouldResemble, before.RateLimit)
			})

			Convey("Then a scheduled refresh runs from the stored signals without counting", func() {
				rec, err := svc.CalculateFMV(ctx, reachSignals("a1", "football", 900_000), fmv.TriggerScheduled)
				So(err, ShouldBeNil)
				So(rec.RateLimit.CountToday, ShouldEqual, 3)
				So(rec.Score, ShouldEqual, before.Score)
				So(rec.History[len(rec.History)-1].Trigger, ShouldEqual, fmv.TriggerScheduled)
			})

			Convey("Then a queued refresh cannot change the stored score", func() {
				So(svc.Start(ctx), ShouldBeNil)
				queued, err := svc.ScheduleRecompute(ctx, "a1")
				So(err, ShouldBeNil)
				So(queued, ShouldBeTrue)

				stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				So(svc.Stop(stopCtx), ShouldBeNil)

				after, err := svc.GetFMV(ctx, "a1")
				So(err, ShouldBeNil)
				So(after.Score, ShouldEqual, before.Score)
				So(after.RateLimit.CountToday, ShouldEqual, 3)
				So(len(after.History), ShouldEqual, len(before.History)+1)
			})

			Convey("Then the allowance returns at the next UTC midnight", func() {
				c.Set(time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC))
				rec, err := svc.CalculateFMV(ctx, reachSignals("a1", "football", 10_000), fmv.TriggerManual)
				So(err, ShouldBeNil)
				So(rec.RateLimit.CountToday, ShouldEqual, 1)
				So(rec.RateLimit.ResetDate, ShouldEqual, "2025-09-02")
			})
		})
	})
}

func TestService_CalculateFMV_ConcurrentManual(t *testing.T) {
	Convey("Given an athlete with a full daily allowance", t, func() {
		ctx := context.Background()
		svc := newService(clock.NewManual(start))
		_, err := svc.CalculateFMV(ctx, reachSignals("a1", "", 10_000), fmv.TriggerManual)
		So(err, ShouldBeNil)

		Convey("When twelve manual recalculations race", func() {
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				ok      int
				limited int
			)
			for i := 0; i < 12; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.CalculateFMV(ctx, reachSignals("a1", "", 10_000), fmv.TriggerManual)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, faults.ErrRateLimited):
						limited++
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly the allowance is admitted", func() {
				So(ok, ShouldEqual, 3)
				So(limited, ShouldEqual, 9)
				rec, _ := svc.GetFMV(ctx, "a1")
				So(rec.RateLimit.CountToday, ShouldEqual, 3)
			})
		})
	})
}

// staleReads holds every GetFMV once armed until n callers have read, so
// they all compute from the same prior.
type staleReads struct {
	repository.Store
	n       int32
	armed   atomic.Bool
	arrived atomic.Int32
	release chan struct{}
}

func (s *staleReads) GetFMV(ctx context.Context, athleteID string) (*fmv.Result, error) {
	rec, err := s.Store.GetFMV(ctx, athleteID)
	if !s.armed.Load() {
		return rec, err
	}
	if s.arrived.Add(1) == s.n {
		close(s.release)
	}
	select {
	case <-s.release:
	case <-time.After(2 * time.Second):
	}
	return rec, err
}

func TestService_CalculateFMV_ConcurrentHistory(t *testing.T) {
	Convey("Given recalculations that all read the same prior", t, func() {
		ctx := context.Background()
		store := &staleReads{Store: repository.NewMemoryStore(), n: 5, release: make(chan struct{})}
		svc := newService(clock.NewManual(start), service.WithStore(store))
		_, err := svc.CalculateFMV(ctx, reachSignals("a1", "football", 10_000), fmv.TriggerManual)
		So(err, ShouldBeNil)
		store.armed.Store(true)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(followers int64) {
				defer wg.Done()
				_, _ = svc.CalculateFMV(ctx, reachSignals("a1", "football", followers), fmv.TriggerManual)
			}(int64(20_000 * (i + 1)))
		}
		wg.Wait()

		Convey("Then history holds the first computation and every admitted one", func() {
			rec, err := svc.GetFMV(ctx, "a1")
			So(err, ShouldBeNil)
			So(rec.RateLimit.CountToday, ShouldEqual, 3)
			So(rec.History, ShouldHaveLength, 1+rec.RateLimit.CountToday)
			So(rec.History[0].Trigger, ShouldEqual, fmv.TriggerInitial)
			So(rec.History[len(rec.History)-1].Score, ShouldEqual, rec.Score)
		})
	})
}

func TestService_CalculateFMV_Validation(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := newService(clock.NewManual(start))

		Convey("A blank athlete id is rejected before anything is stored", func() {
			_, err := svc.CalculateFMV(context.Background(), fmv.Signals{AthleteID: "  "}, fmv.TriggerManual)
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
		})

		Convey("Negative followers are rejected", func() {
			_, err := svc.CalculateFMV(context.Background(), reachSignals("a1", "", -1), fmv.TriggerManual)
			So(errors.Is(err, faults.ErrValidation), ShouldBeTrue)
			_, err = svc.GetFMV(context.Background(), "a1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_CohortAndLeaderboard(t *testing.T) {
	Convey("Given three football athletes and one swimmer", t, func() {
		ctx := context.Background()
		svc := newService(clock.NewManual(start))
		for _, s := range []struct {
			id        string
			sport     string
			followers int64
		}{
			{"low", "football", 1_000},
			{"mid", "football", 50_000},
			{"top", "football", 2_000_000},
			{"swim", "swimming", 80_000},
		} {
			_, err := svc.CalculateFMV(ctx, reachSignals(s.id, s.sport, s.followers), fmv.TriggerManual)
			So(err, ShouldBeNil)
		}

		Convey("Then a new athlete is placed against the stored cohort", func() {
			rec, err := svc.CalculateFMV(ctx, reachSignals("new", "football", 50_000), fmv.TriggerManual)
			So(err, ShouldBeNil)
			So(rec.CohortSize, ShouldEqual, 3)
			So(rec.PercentileRank, ShouldBeBetween, 0, 100)
		})

		Convey("Then private scores are ranked but not listed", func() {
			entry, err := svc.Rank(ctx, "top", "football")
			So(err, ShouldBeNil)
			So(entry.Rank, ShouldEqual, 1)

			board, err := svc.Leaderboard(ctx, "football", 10)
			So(err, ShouldBeNil)
			So(board, ShouldBeEmpty)
		})

		Convey("When two athletes go public", func() {
			_, err := svc.SetVisibility(ctx, "mid", true)
			So(err, ShouldBeNil)
			rec, err := svc.SetVisibility(ctx, "swim", true)
			So(err, ShouldBeNil)
			So(rec.IsPublic, ShouldBeTrue)

			Convey("Then the sport board shows only the public football athlete", func() {
				board, err := svc.Leaderboard(ctx, "Football", 10)
				So(err, ShouldBeNil)
				So(len(board), ShouldEqual, 1)
				So(board[0].AthleteID, ShouldEqual, "mid")
				So(board[0].Rank, ShouldEqual, 1)
			})

			Convey("Then the overall board includes both", func() {
				board, _ := svc.Leaderboard(ctx, "", 10)
				So(len(board), ShouldEqual, 2)
			})

			Convey("Then a recalculation keeps the public flag", func() {
				rec, err := svc.CalculateFMV(ctx, reachSignals("mid", "football", 60_000), fmv.TriggerManual)
				So(err, ShouldBeNil)
				So(rec.IsPublic, ShouldBeTrue)
			})
		})

		Convey("Then an unknown athlete cannot be made public", func() {
			_, err := svc.SetVisibility(ctx, "ghost", true)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then a zero limit is rejected", func() {
			_, err := svc.Leaderboard(ctx, "", 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})
	})
}

func TestService_Notifications(t *testing.T) {
	Convey("Given an athlete whose score rose after a recalculation", t, func() {
		ctx := context.Background()
		c := clock.NewManual(start)
		svc := newService(c)

		_, err := svc.CalculateFMV(ctx, fmv.Signals{AthleteID: "a1", Sport: "football"}, fmv.TriggerManual)
		So(err, ShouldBeNil)
		_, err = svc.CalculateFMV(ctx, reachSignals("a1", "football", 1_000_000), fmv.TriggerManual)
		So(err, ShouldBeNil)

		Convey("Then a score increase and the allowance are reported", func() {
			ns, err := svc.Notifications(ctx, "a1")
			So(err, ShouldBeNil)
			So(kinds(ns), ShouldContain, advisor.TypeScoreIncrease)
			So(kinds(ns), ShouldContain, advisor.TypeRateLimit)
		})

		Convey("When the athlete acknowledges them", func() {
			rec, err := svc.AcknowledgeNotifications(ctx, "a1")
			So(err, ShouldBeNil)
			So(rec.LastNotifiedScore, ShouldEqual, rec.Score)

			Convey("Then the increase is no longer reported", func() {
				ns, _ := svc.Notifications(ctx, "a1")
				So(kinds(ns), ShouldNotContain, advisor.TypeScoreIncrease)
			})
		})

		Convey("Then a month later the score is stale", func() {
			c.Advance(31 * 24 * time.Hour)
			ns, _ := svc.Notifications(ctx, "a1")
			So(kinds(ns), ShouldContain, advisor.TypeStaleScore)
		})

		Convey("Then an unknown athlete has no notifications", func() {
			_, err := svc.Notifications(ctx, "ghost")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
