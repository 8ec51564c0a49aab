// Package types contains small value types shared across the domain packages.
package types

import (
	"math"
	"strings"
)

// Priority orders recommendations and notifications.
type Priority string

// Priorities, most urgent first.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns a sort key where lower is more urgent. Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Entry is one row of the public FMV leaderboard.
type Entry struct {
	Rank      int     `json:"rank"`
	AthleteID string  `json:"athlete_id"`
	Sport     string  `json:"sport,omitempty"`
	Score     float64 `json:"score"`
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Normalize lowercases and trims an enum-like token, mapping spaces and dashes to underscores.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
