package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func job(athlete string) Job {
	return Job{ID: "job-" + athlete, Athlete: athlete}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity two", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Len(ctx), ShouldEqual, 0)
		So(q.Capacity(), ShouldEqual, 2)

		Convey("When two jobs are enqueued", func() {
			So(q.Enqueue(ctx, job("a")), ShouldBeNil)
			So(q.Enqueue(ctx, job("b")), ShouldBeNil)

			Convey("Then a third is refused as full", func() {
				err := q.Enqueue(ctx, job("c"))
				So(errors.Is(err, ErrQueueFull), ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("Then jobs come out in order", func() {
				ch := q.Dequeue(ctx)
				So((<-ch).AthleteID(), ShouldEqual, "a")
				q.MarkDequeued()
				So((<-ch).AthleteID(), ShouldEqual, "b")
				q.MarkDequeued()
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the caller's context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(q.Enqueue(cctx, job("a")), context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given a closed queue with pending jobs", t, func() {
		q := NewInMemoryQueue(WithCapacity(4))
		So(q.Enqueue(ctx, job("a")), ShouldBeNil)
		So(q.Close(), ShouldBeNil)
		So(q.IsClosed(), ShouldBeTrue)

		Convey("Then new jobs are refused", func() {
			So(errors.Is(q.Enqueue(ctx, job("b")), ErrQueueClosed), ShouldBeTrue)
		})

		Convey("Then pending jobs drain before the channel closes", func() {
			var got []string
			for j := range q.Dequeue(ctx) {
				got = append(got, j.AthleteID())
			}
			So(got, ShouldResemble, []string{"a"})
		})

		Convey("Then closing again is harmless", func() {
			So(q.Close(), ShouldBeNil)
		})
	})
}

func TestInMemoryQueueConcurrentProducers(t *testing.T) {
	Convey("Given producers and consumers sharing a queue", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(1000))

		var wg sync.WaitGroup
		for p := 0; p < 10; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_ = q.Enqueue(ctx, job(fmt.Sprintf("%d-%d", p, i)))
				}
			}(p)
		}
		wg.Wait()
		So(q.Close(), ShouldBeNil)

		seen := make(map[string]bool)
		for j := range q.Dequeue(ctx) {
			seen[j.AthleteID()] = true
		}
		So(len(seen), ShouldEqual, 1000)
	})
}
