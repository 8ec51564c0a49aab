// Package dedupe tracks which athletes already have a scheduled FMV
// recomputation pending, so a burst of refresh requests collapses to one job.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper records pending keys.
type Deduper interface {
	// Claim records key and reports true when it was not already pending.
	Claim(ctx context.Context, key string) bool

	// Release forgets key once its job has finished or could not be queued.
	Release(ctx context.Context, key string)

	// Pending reports whether key is currently claimed.
	Pending(ctx context.Context, key string) bool

	Size() int64
}

// pendingSet keeps claimed keys in claim order. In bounded mode the oldest
// claim is dropped to make room, which at worst allows one duplicate job.
type pendingSet struct {
	mu      sync.Mutex
	order   *list.List
	keys    map[string]*list.Element
	maxSize int
	evicted int64
}

// NewPendingSet returns an in-memory Deduper.
func NewPendingSet(opts ...Option) Deduper {
	d := &pendingSet{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.order = list.New()
	d.keys = make(map[string]*list.Element)
	return d
}

func (d *pendingSet) Claim(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.keys[key]; ok {
		return false
	}
	if d.maxSize > 0 && len(d.keys) >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			delete(d.keys, oldest.Value.(string))
			d.order.Remove(oldest)
			d.evicted++
		}
	}
	d.keys[key] = d.order.PushBack(key)
	return true
}

func (d *pendingSet) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		d.order.Remove(el)
		delete(d.keys, key)
	}
}

func (d *pendingSet) Pending(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.keys[key]
	return ok
}

func (d *pendingSet) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.keys))
}

// Evicted reports how many claims were dropped to stay within the bound.
func Evicted(d Deduper) int64 {
	ps, ok := d.(*pendingSet)
	if !ok {
		return 0
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.evicted
}
