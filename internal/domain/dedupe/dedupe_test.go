package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nilcore/internal/domain/dedupe"
)

func TestPendingSet(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty pending set", t, func() {
		d := dedupe.NewPendingSet()
		So(d.Size(), ShouldEqual, 0)

		Convey("When an athlete is claimed", func() {
			So(d.Claim(ctx, "athlete-1"), ShouldBeTrue)

			Convey("Then a second claim is refused until release", func() {
				So(d.Claim(ctx, "athlete-1"), ShouldBeFalse)
				So(d.Pending(ctx, "athlete-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)

				d.Release(ctx, "athlete-1")
				So(d.Pending(ctx, "athlete-1"), ShouldBeFalse)
				So(d.Claim(ctx, "athlete-1"), ShouldBeTrue)
			})
		})

		Convey("When an unknown key is released", func() {
			d.Release(ctx, "ghost")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded pending set at capacity", t, func() {
		d := dedupe.NewPendingSet(dedupe.WithMaxSize(3))
		for _, k := range []string{"a", "b", "c"} {
			So(d.Claim(ctx, k), ShouldBeTrue)
		}

		Convey("When another key is claimed", func() {
			So(d.Claim(ctx, "d"), ShouldBeTrue)

			Convey("Then the oldest claim is dropped", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Pending(ctx, "a"), ShouldBeFalse)
				So(d.Pending(ctx, "b"), ShouldBeTrue)
				So(d.Pending(ctx, "d"), ShouldBeTrue)
				So(dedupe.Evicted(d), ShouldEqual, 1)
			})
		})

		Convey("When a middle key is released first", func() {
			d.Release(ctx, "b")
			So(d.Claim(ctx, "d"), ShouldBeTrue)

			Convey("Then nothing is evicted", func() {
				So(dedupe.Evicted(d), ShouldEqual, 0)
				So(d.Pending(ctx, "a"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded pending set", t, func() {
		d := dedupe.NewPendingSet(dedupe.WithMaxSize(0))
		for i := 0; i < 10000; i++ {
			d.Claim(ctx, fmt.Sprintf("athlete-%d", i))
		}
		So(d.Size(), ShouldEqual, 10000)
		So(dedupe.Evicted(d), ShouldEqual, 0)
	})
}

func TestPendingSetConcurrentClaims(t *testing.T) {
	Convey("Given many goroutines racing for the same athletes", t, func() {
		d := dedupe.NewPendingSet()
		var won atomic.Int64
		var wg sync.WaitGroup
		for g := 0; g < 16; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if d.Claim(context.Background(), fmt.Sprintf("athlete-%d", i)) {
						won.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each athlete is claimed exactly once", func() {
			So(won.Load(), ShouldEqual, 50)
			So(d.Size(), ShouldEqual, 50)
		})
	})
}
