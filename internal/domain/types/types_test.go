package types_test

import (
	"sort"
	"testing"

	types "github.com/okian/nilcore/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPriority(t *testing.T) {
	Convey("Given a shuffled priority list", t, func() {
		ps := []types.Priority{types.PriorityLow, "bogus", types.PriorityCritical, types.PriorityMedium, types.PriorityHigh}

		Convey("When sorted by rank", func() {
			sort.SliceStable(ps, func(i, j int) bool { return ps[i].Rank() < ps[j].Rank() })

			Convey("Then critical comes first and unknown last", func() {
				So(ps, ShouldResemble, []types.Priority{
					types.PriorityCritical, types.PriorityHigh, types.PriorityMedium, types.PriorityLow, "bogus",
				})
			})
		})
	})
}

func TestNumericHelpers(t *testing.T) {
	Convey("Round2 keeps two decimals", t, func() {
		So(types.Round2(12.345), ShouldAlmostEqual, 12.35, 1e-9)
		So(types.Round2(-1.005), ShouldAlmostEqual, -1.0, 0.011)
		So(types.Round2(80), ShouldEqual, 80)
	})

	Convey("Clamp bounds values", t, func() {
		So(types.Clamp(120, 0, 100), ShouldEqual, 100)
		So(types.Clamp(-3, 0, 100), ShouldEqual, 0)
		So(types.Clamp(42.5, 0, 100), ShouldEqual, 42.5)
	})

	Convey("Normalize canonicalizes tokens", t, func() {
		So(types.Normalize("  Sports Betting "), ShouldEqual, "sports_betting")
		So(types.Normalize("High-School"), ShouldEqual, "high_school")
	})
}

func TestEntry(t *testing.T) {
	Convey("Given a leaderboard entry", t, func() {
		e := types.Entry{Rank: 1, AthleteID: "a-1", Sport: "football", Score: 88.4}

		So(e.Rank, ShouldEqual, 1)
		So(e.AthleteID, ShouldEqual, "a-1")
		So(e.Score, ShouldEqual, 88.4)
	})
}
