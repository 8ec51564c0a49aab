// Package analysis produces the optional document analysis that the
// compliance engine blends into document hygiene. The in-memory analyzer
// stands in for an external document model, including its latency.
package analysis

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/types"
)

const (
	defaultMinLatency = 20 * time.Millisecond
	defaultMaxLatency = 60 * time.Millisecond
	defaultRandomSeed = 42
)

// ErrNoText is returned when the deal has no contract text to read.
var ErrNoText = errors.New("no contract text")

// Analyzer reads a contract and grades it 0..100.
type Analyzer interface {
	Analyze(ctx context.Context, deal compliance.Deal) (*compliance.DocumentAnalysis, error)
}

// Clause is one provision the analyzer looks for.
type Clause struct {
	Name   string
	Weight float64
	Words  []string
}

// DefaultClauses are the protective provisions checked beyond the basic
// checklist the compliance engine already applies.
func DefaultClauses() []Clause {
	return []Clause{
		{Name: "name, image and likeness grant", Weight: 2, Words: []string{"likeness", "name, image", "publicity"}},
		{Name: "exclusivity", Weight: 1, Words: []string{"exclusiv"}},
		{Name: "morals clause", Weight: 1, Words: []string{"moral", "conduct"}},
		{Name: "governing law", Weight: 1, Words: []string{"governing law", "jurisdiction"}},
		{Name: "confidentiality", Weight: 1, Words: []string{"confidential"}},
		{Name: "intellectual property", Weight: 1, Words: []string{"intellectual property", "ownership of content"}},
		{Name: "indemnification", Weight: 1, Words: []string{"indemn"}},
		{Name: "school policy compliance", Weight: 2, Words: []string{"institution", "school policy", "ncaa", "athletic department"}},
	}
}

// Option configures an InMemoryAnalyzer.
type Option func(*InMemoryAnalyzer)

// WithLatencyRange sets the simulated latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(a *InMemoryAnalyzer) {
		if minLatency >= 0 && maxLatency > minLatency {
			a.minLatency = minLatency
			a.maxLatency = maxLatency
		}
	}
}

// WithClauses replaces the clause checklist.
func WithClauses(clauses []Clause) Option {
	return func(a *InMemoryAnalyzer) {
		if len(clauses) > 0 {
			a.clauses = clauses
		}
	}
}

// InMemoryAnalyzer implements Analyzer with a weighted clause checklist.
type InMemoryAnalyzer struct {
	clauses    []Clause
	minLatency time.Duration
	maxLatency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewInMemoryAnalyzer creates an analyzer with configuration options.
func NewInMemoryAnalyzer(opts ...Option) *InMemoryAnalyzer {
	a := &InMemoryAnalyzer{
		clauses:    DefaultClauses(),
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // latency jitter only
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze grades deal.ContractText. The score is deterministic; only latency varies.
func (a *InMemoryAnalyzer) Analyze(ctx context.Context, deal compliance.Deal) (*compliance.DocumentAnalysis, error) {
	text := strings.ToLower(strings.TrimSpace(deal.ContractText))
	if text == "" {
		return nil, eris.Wrapf(ErrNoText, "deal %s", deal.ID)
	}

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "document analysis cancelled")
	case <-time.After(a.latency()):
	}

	var total, got float64
	var missing []string
	for _, c := range a.clauses {
		total += c.Weight
		if containsAny(text, c.Words) {
			got += c.Weight
		} else {
			missing = append(missing, c.Name)
		}
	}
	if total == 0 {
		return &compliance.DocumentAnalysis{Score: 100}, nil
	}

	out := &compliance.DocumentAnalysis{Score: types.Round2(got / total * 100)}
	if len(missing) > 0 {
		out.Notes = "missing " + strings.Join(missing, ", ")
	}
	return out, nil
}

func (a *InMemoryAnalyzer) latency() time.Duration {
	span := a.maxLatency - a.minLatency
	if span <= 0 {
		return a.minLatency
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.minLatency + time.Duration(a.rng.Int63n(int64(span)))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
