package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/nilcore/internal/domain/faults"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAdmit(t *testing.T) {
	Convey("Given a default limiter and an athlete computed for the first time", t, func() {
		l := New()
		now := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
		s := l.Initial(now)

		So(s.CountToday, ShouldEqual, 0)
		So(s.ResetDate, ShouldEqual, "2025-09-01")

		Convey("When three recalculations run the same day", func() {
			var err error
			for i := 0; i < 3; i++ {
				s, err = l.Admit("a1", s, now.Add(time.Duration(i)*time.Hour))
				So(err, ShouldBeNil)
			}

			Convey("Then the count is three and no more are allowed", func() {
				So(s.CountToday, ShouldEqual, 3)
				So(l.Allows(s, now), ShouldBeFalse)
				So(l.Status(s, now).Remaining, ShouldEqual, 0)
			})

			Convey("Then a fourth is refused without touching the state", func() {
				next, err := l.Admit("a1", s, now.Add(5*time.Hour))
				So(errors.Is(err, faults.ErrRateLimited), ShouldBeTrue)

				var rl *faults.RateLimitExceeded
				So(errors.As(err, &rl), ShouldBeTrue)
				So(rl.ResetAt, ShouldEqual, time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC))
				So(rl.Used, ShouldEqual, 3)
				So(next, ShouldResemble, s)
			})

			Convey("Then the next UTC day starts from zero", func() {
				tomorrow := time.Date(2025, 9, 2, 0, 0, 1, 0, time.UTC)
				So(l.Allows(s, tomorrow), ShouldBeTrue)

				next, err := l.Admit("a1", s, tomorrow)
				So(err, ShouldBeNil)
				So(next, ShouldResemble, State{CountToday: 1, ResetDate: "2025-09-02"})
			})
		})
	})
}

func TestCustomLimit(t *testing.T) {
	Convey("Given a limiter with a limit of one", t, func() {
		l := New(WithDailyLimit(1), WithDailyLimit(0))
		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

		So(l.Limit(), ShouldEqual, 1)

		s, err := l.Admit("a", State{}, now)
		So(err, ShouldBeNil)
		So(s.CountToday, ShouldEqual, 1)

		_, err = l.Admit("a", s, now)
		So(err, ShouldNotBeNil)

		st := l.Status(s, now)
		So(st.Used, ShouldEqual, 1)
		So(st.Limit, ShouldEqual, 1)
	})
}
