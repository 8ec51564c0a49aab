package fmv

import (
	"math"
	"sort"

	"github.com/okian/nilcore/internal/domain/types"
)

// PercentileUnavailable is reported when no peer besides the athlete exists.
const PercentileUnavailable = -1.0

const (
	maxFactors       = 3
	maxSuggestions   = 4
	minSpread        = 5.0
	minGain          = 1.0
	MaxHistory       = 30
	halfWeightOnTies = 0.5
)

// Percentile ranks score within peers, excluding athleteID. Ties count half.
func Percentile(athleteID string, score float64, peers []Peer) (float64, int) {
	var below, equal float64
	n := 0
	for _, p := range peers {
		if p.AthleteID == athleteID {
			continue
		}
		n++
		switch {
		case p.Score < score:
			below++
		case p.Score == score:
			equal++
		}
	}
	if n == 0 {
		return PercentileUnavailable, 0
	}
	return types.Round2((below + halfWeightOnTies*equal) / float64(n) * 100), n
}

// factors splits sub-scores into strengths and weaknesses relative to the
// athlete's own mean. A defaulted athletic score is not evidence and is skipped.
func factors(sub SubScores, athleticDefaulted bool) ([]Factor, []Factor) {
	var areas []Area
	for _, a := range Areas {
		if a == AreaAthletic && athleticDefaulted {
			continue
		}
		areas = append(areas, a)
	}
	if len(areas) < 2 {
		return []Factor{}, []Factor{}
	}

	var sum float64
	for _, a := range areas {
		sum += sub.Get(a)
	}
	mean := sum / float64(len(areas))

	var sq float64
	for _, a := range areas {
		d := sub.Get(a) - mean
		sq += d * d
	}
	threshold := math.Max(math.Sqrt(sq/float64(len(areas))), minSpread)

	strengths := []Factor{}
	weaknesses := []Factor{}
	for _, a := range areas {
		d := sub.Get(a) - mean
		f := Factor{Area: a, Score: sub.Get(a), Delta: types.Round2(d)}
		switch {
		case d > threshold:
			strengths = append(strengths, f)
		case d < -threshold:
			weaknesses = append(weaknesses, f)
		}
	}
	return topByMagnitude(strengths), topByMagnitude(weaknesses)
}

func topByMagnitude(fs []Factor) []Factor {
	sort.SliceStable(fs, func(i, j int) bool {
		return math.Abs(fs[i].Delta) > math.Abs(fs[j].Delta)
	})
	if len(fs) > maxFactors {
		fs = fs[:maxFactors]
	}
	return fs
}

// suggestions ranks areas by the FMV points a perfect sub-score would add.
func suggestions(s Signals, sub SubScores, w Weights, athleticDefaulted bool) []Suggestion {
	out := []Suggestion{}
	for _, a := range Areas {
		gain := types.Round2((100 - sub.Get(a)) * w.Get(a))
		if gain < minGain {
			continue
		}
		out = append(out, Suggestion{
			Area:          a,
			Action:        actionFor(a, s, athleticDefaulted),
			CurrentScore:  sub.Get(a),
			PotentialGain: gain,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PotentialGain > out[j].PotentialGain })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func actionFor(a Area, s Signals, athleticDefaulted bool) string {
	switch a {
	case AreaSocial:
		if s.AverageEngagement() < 3 {
			return "Raise engagement with consistent, interactive posts; engagement counts more than raw reach"
		}
		return "Grow followers on a second platform to extend reach"
	case AreaAthletic:
		if athleticDefaulted {
			return "Link verified recruiting or performance rankings to replace the neutral default"
		}
		return "Keep verified rankings current after each season"
	case AreaMarket:
		return "Highlight local market ties and school division in your public profile"
	case AreaBrand:
		if len(s.Deals) == 0 {
			return "Complete a first compliant NIL deal to establish a brand track record"
		}
		return "Diversify deal categories and keep every deal compliance-cleared"
	default:
		return ""
	}
}

// AppendHistory returns history plus e, keeping only the newest MaxHistory entries.
func AppendHistory(history []HistoryEntry, e HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, min(len(history)+1, MaxHistory))
	start := 0
	if over := len(history) + 1 - MaxHistory; over > 0 {
		start = over
	}
	out = append(out, history[start:]...)
	return append(out, e)
}
