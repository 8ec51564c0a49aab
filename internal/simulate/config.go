// Package simulate drives synthetic load against a running server and checks
// the invariants the server promises on every response it returns.
package simulate

import (
	"runtime"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Athletes int           // Number of synthetic athletes
	Deals    int           // Number of deals to score
	Workers  int           // Number of concurrent workers
	Timeout  time.Duration // HTTP request timeout
	Rate     float64       // Client-side request rate per second; 0 is unlimited
	Contend  int           // Concurrent reconsider attempts per response
	Seed     uint64        // Generator seed; equal seeds produce equal runs
	Verbose  bool          // Log every violation as it is found
}

// DefaultConfig returns a Config sized for a quick local run.
func DefaultConfig() Config {
	return Config{
		BaseURL:  "http://localhost:9080",
		Athletes: 50,
		Deals:    100,
		Workers:  runtime.NumCPU() * 2,
		Timeout:  10 * time.Second,
		Rate:     15,
		Contend:  5,
		Seed:     1,
	}
}

// Stats holds counters for one run.
type Stats struct {
	Calculations  int
	RateLimited   int
	DealsScored   int
	RedDeals      int
	Responses     int
	Reconsidered  int
	Conflicts     int
	Throttled     int
	Failed        int
	Violations    []string
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	LeaderboardOK bool
}

// OK reports whether the run found no invariant violations and no failures.
func (s *Stats) OK() bool { return len(s.Violations) == 0 && s.Failed == 0 }
