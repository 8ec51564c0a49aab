package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nilcore/internal/adapters/mq/queue"
	"github.com/okian/nilcore/internal/adapters/mq/worker")

type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]error
}

func (r *recorder) Handle(_ context.Context, j worker.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, j.AthleteID())
	if r.fail != nil {
		if err, ok := r.fail[j.AthleteID()]; ok {
			return err
		}
	}
	if j.AthleteID() == "panics" {
		panic("boom")
	}
	return nil
}

func (r *recorder) athletes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func enqueue(q *queue.InMemoryQueue, ids ...string) {
	for _, id := range ids {
		So(q.Enqueue(context.Background(), queue.Job{ID: "j-" + id, Athlete: id}), ShouldBeNil)
	}
}

func TestPool(t *testing.T) {
	Convey("Given a pool over a queue with pending jobs", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		h := &recorder{fail: map[string]error{"bad": errors.New("store down")}}
		enqueue(q, "a", "b", "bad", "panics", "c")

		p := worker.NewPool(3, q, h, worker.WithJobTimeout(time.Second))
		So(p.Size(), ShouldEqual, 3)
		p.Start(context.Background())

		Convey("When the pool is shut down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			So(p.Shutdown(ctx), ShouldBeNil)

			Convey("Then every pending job was handled despite failures and panics", func() {
				So(h.athletes(), ShouldHaveLength, 5)
				So(h.athletes(), ShouldContain, "c")
				So(q.IsClosed(), ShouldBeTrue)
			})

			Convey("Then a second shutdown returns immediately", func() {
				So(p.Shutdown(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a worker whose context is cancelled", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		w := worker.NewRecomputeWorker(q, worker.HandlerFunc(func(context.Context, worker.Job) error { return nil }))
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		cancel()

		select {
		case <-w.Done():
		case <-time.After(time.Second):
			t.Fatal("worker did not stop")
		}
	})

	Convey("Given a handler slower than the job timeout", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		var gotDeadline bool
		var mu sync.Mutex
		w := worker.NewRecomputeWorker(q, worker.HandlerFunc(func(ctx context.Context, _ worker.Job) error {
			<-ctx.Done()
			mu.Lock()
			gotDeadline = errors.Is(ctx.Err(), context.DeadlineExceeded)
			mu.Unlock()
			return ctx.Err()
		}), worker.WithJobTimeout(20*time.Millisecond))
		enqueue(q, "slow")
		So(q.Close(), ShouldBeNil)

		go w.Run(context.Background())
		select {
		case <-w.Done():
		case <-time.After(time.Second):
			t.Fatal("worker did not finish")
		}
		mu.Lock()
		defer mu.Unlock()
		So(gotDeadline, ShouldBeTrue)
	})
}
