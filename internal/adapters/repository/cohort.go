package repository

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/types"
	"github.com/okian/nilcore/pkg/metrics"
)

// CohortIndex keeps every athlete's current FMV score ordered for peer
// comparison and the public leaderboard. One treap holds every athlete and
// one more per sport.
//
// Ordering: score DESC, then athlete id ASC. "less" means ranks earlier, so
// an in-order walk yields the leaderboard from best to worst.
type CohortIndex struct {
	mu      sync.RWMutex
	all     *node
	bySport map[string]*node
	members map[string]member
}

type member struct {
	score  float64
	sport  string
	public bool
}

type node struct {
	id     string
	score  float64
	public bool
	prio   uint64
	left   *node
	right  *node
	size   int
	pubCnt int
}

// NewCohortIndex returns an empty index.
func NewCohortIndex() *CohortIndex {
	return &CohortIndex{
		bySport: make(map[string]*node),
		members: make(map[string]member),
	}
}

// Upsert places athleteID at score, replacing any previous position.
func (c *CohortIndex) Upsert(_ context.Context, athleteID, sport string, score float64, public bool) {
	start := time.Now()
	sport = types.Normalize(sport)

	c.mu.Lock()
	c.place(athleteID, member{score: score, sport: sport, public: public})
	size := len(c.members)
	c.mu.Unlock()

	metrics.UpdateCohortSize(size)
	metrics.RecordRepositoryLatency("cohort_upsert", float64(time.Since(start).Milliseconds()))
}

// UpdateScore moves athleteID to score. A known athlete keeps the visibility
// the index already holds, since only SetPublic changes it; an unknown one is
// added with public.
func (c *CohortIndex) UpdateScore(_ context.Context, athleteID, sport string, score float64, public bool) {
	start := time.Now()
	sport = types.Normalize(sport)

	c.mu.Lock()
	if old, ok := c.members[athleteID]; ok {
		public = old.public
	}
	c.place(athleteID, member{score: score, sport: sport, public: public})
	size := len(c.members)
	c.mu.Unlock()

	metrics.UpdateCohortSize(size)
	metrics.RecordRepositoryLatency("cohort_upsert", float64(time.Since(start).Milliseconds()))
}

// SetPublic flips an athlete's leaderboard visibility without moving them.
func (c *CohortIndex) SetPublic(_ context.Context, athleteID string, public bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.members[athleteID]
	if !ok {
		return ErrNotFound
	}
	if m.public != public {
		m.public = public
		c.place(athleteID, m)
	}
	return nil
}

// place puts m into every tree it belongs to. Caller holds the write lock.
func (c *CohortIndex) place(athleteID string, m member) {
	if old, ok := c.members[athleteID]; ok {
		c.detach(athleteID, old)
	}
	c.members[athleteID] = m
	c.all = insert(c.all, athleteID, m)
	if m.sport != "" {
		c.bySport[m.sport] = insert(c.bySport[m.sport], athleteID, m)
	}
}

// Remove drops athleteID from the index.
func (c *CohortIndex) Remove(_ context.Context, athleteID string) {
	c.mu.Lock()
	if old, ok := c.members[athleteID]; ok {
		c.detach(athleteID, old)
		delete(c.members, athleteID)
	}
	size := len(c.members)
	c.mu.Unlock()
	metrics.UpdateCohortSize(size)
}

// detach removes athleteID from its trees. Caller holds the write lock.
func (c *CohortIndex) detach(athleteID string, m member) {
	c.all = deleteNode(c.all, athleteID, m.score)
	if m.sport == "" {
		return
	}
	if t := deleteNode(c.bySport[m.sport], athleteID, m.score); t != nil {
		c.bySport[m.sport] = t
	} else {
		delete(c.bySport, m.sport)
	}
}

func (c *CohortIndex) tree(sport string) *node {
	if sport = types.Normalize(sport); sport == "" {
		return c.all
	}
	return c.bySport[sport]
}

// Rank returns athleteID's position among every member of the sport cohort
// (all athletes when sport is empty). Equal scores share a rank.
func (c *CohortIndex) Rank(_ context.Context, athleteID, sport string) (types.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.members[athleteID]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	if s := types.Normalize(sport); s != "" && s != m.sport {
		return types.Entry{}, ErrNotFound
	}
	return types.Entry{
		Rank:      countAbove(c.tree(sport), m.score) + 1,
		AthleteID: athleteID,
		Sport:     m.sport,
		Score:     m.score,
	}, nil
}

// TopN returns up to n public athletes in leaderboard order.
func (c *CohortIndex) TopN(_ context.Context, sport string, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("cohort_top_n", float64(time.Since(start).Milliseconds()))
	}()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Entry, 0, n)
	collectPublic(c.tree(sport), n, &out)
	for i := range out {
		out[i].Sport = c.members[out[i].AthleteID].sport
	}
	assignRanksWithTies(out)
	return out, nil
}

// Sample returns at most limit peers spread evenly across the sport cohort,
// so the percentile computed from them tracks the full distribution.
func (c *CohortIndex) Sample(_ context.Context, sport string, limit int) []fmv.Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t := c.tree(sport)
	size := nsize(t)
	if size == 0 || limit == 0 {
		return []fmv.Peer{}
	}
	if limit < 0 || limit >= size {
		out := make([]fmv.Peer, 0, size)
		collectAll(t, &out)
		return out
	}
	out := make([]fmv.Peer, 0, limit)
	for i := 0; i < limit; i++ {
		n := selectAt(t, i*size/limit)
		out = append(out, fmv.Peer{AthleteID: n.id, Score: n.score})
	}
	return out
}

// Count returns the number of athletes in the sport cohort (all when empty).
func (c *CohortIndex) Count(_ context.Context, sport string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return nsize(c.tree(sport))
}

// Sports lists the sports that currently have members.
func (c *CohortIndex) Sports() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bySport))
	for s := range c.bySport {
		out = append(out, s)
	}
	return out
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func npub(n *node) int {
	if n == nil {
		return 0
	}
	return n.pubCnt
}

func fix(n *node) {
	if n == nil {
		return
	}
	n.size = 1 + nsize(n.left) + nsize(n.right)
	n.pubCnt = npub(n.left) + npub(n.right)
	if n.public {
		n.pubCnt++
	}
}

func less(aScore float64, aID string, bScore float64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

// priority hashes the id so tree shape does not depend on insertion order or score.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(id)))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, m member) *node {
	if n == nil {
		nn := &node{id: id, score: m.score, public: m.public, prio: priority(id)}
		fix(nn)
		return nn
	}
	if less(m.score, id, n.score, n.id) {
		n.left = insert(n.left, id, m)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, m)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAbove counts members with a strictly higher score.
func countAbove(n *node, score float64) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// selectAt returns the k-th node (0-based) in leaderboard order.
func selectAt(n *node, k int) *node {
	for n != nil {
		left := nsize(n.left)
		switch {
		case k < left:
			n = n.left
		case k == left:
			return n
		default:
			k -= left + 1
			n = n.right
		}
	}
	return nil
}

func collectPublic(n *node, limit int, out *[]types.Entry) {
	if n == nil || npub(n) == 0 || len(*out) >= limit {
		return
	}
	collectPublic(n.left, limit, out)
	if n.public && len(*out) < limit {
		*out = append(*out, types.Entry{AthleteID: n.id, Score: n.score})
	}
	collectPublic(n.right, limit, out)
}

func collectAll(n *node, out *[]fmv.Peer) {
	if n == nil {
		return
	}
	collectAll(n.left, out)
	*out = append(*out, fmv.Peer{AthleteID: n.id, Score: n.score})
	collectAll(n.right, out)
}

// assignRanksWithTies gives equal scores the same rank; the next distinct
// score takes its position, so ranks read 1, 2, 2, 4.
func assignRanksWithTies(entries []types.Entry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
