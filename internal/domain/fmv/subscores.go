package fmv

import (
	"math"
	"strings"

	"github.com/okian/nilcore/internal/domain/types"
)

const (
	followerPoints    = 60.0
	followerSaturate  = 6.0 // log10(1,000,000)
	engagementPoints  = 40.0
	engagementCapPct  = 10.0
	dealCountPoints   = 10.0
	dealCountCap      = 5
	diversityPoints   = 5.0
	diversityCap      = 4
	cleanRecordPoints = 30.0
	redDealPenalty    = 15.0
)

// socialScore rewards reach with diminishing returns and engagement linearly up to a cap.
func socialScore(s Signals) float64 {
	f := float64(s.TotalFollowers())
	reach := math.Min(1, math.Log10(math.Max(f, 1))/followerSaturate) * followerPoints
	engagement := math.Min(s.AverageEngagement(), engagementCapPct) / engagementCapPct * engagementPoints
	return types.Round2(types.Clamp(reach+engagement, 0, 100))
}

// athleticScore uses verified ranking data when present. The boolean reports
// whether the neutral default was applied instead.
func athleticScore(s Signals, neutral float64) (float64, bool) {
	if s.Ranking == nil || !s.Ranking.Verified || s.Ranking.OverallRank <= 0 {
		return neutral, true
	}
	for _, b := range rankBands {
		if s.Ranking.OverallRank <= b.maxRank {
			return b.score, false
		}
	}
	return unrankedScore, false
}

func marketScore(s Signals) float64 {
	sport, ok := sportTiers[types.Normalize(s.Sport)]
	if !ok {
		sport = defaultSportTier
	}

	state := strings.ToUpper(strings.TrimSpace(s.State))
	var region float64
	switch {
	case largeMarkets[state]:
		region = 30
	case mediumMarkets[state]:
		region = 20
	default:
		region = 10
	}

	division, ok := divisionPoints[types.Normalize(s.Division)]
	if !ok {
		division = unknownDivisionPoints
	}

	return types.Round2(types.Clamp(sport*4+region+division, 0, 100))
}

// brandScore counts live deals, category diversity, and a clean compliance record.
func brandScore(s Signals) float64 {
	var live, red int
	categories := make(map[string]struct{})
	for _, d := range s.Deals {
		switch types.Normalize(d.Status) {
		case "active", "completed":
			live++
			if c := types.Normalize(d.Category); c != "" {
				categories[c] = struct{}{}
			}
		}
		if types.Normalize(d.RiskTier) == "red" {
			red++
		}
	}

	score := dealCountPoints*float64(min(live, dealCountCap)) +
		diversityPoints*float64(min(len(categories), diversityCap)) +
		math.Max(0, cleanRecordPoints-redDealPenalty*float64(red))
	return types.Round2(types.Clamp(score, 0, 100))
}

// completeness is the fraction of signal groups actually supplied.
func completeness(s Signals) float64 {
	present := 0
	checks := []bool{
		len(s.Accounts) > 0,
		s.AverageEngagement() > 0,
		s.Ranking != nil && s.Ranking.Verified,
		types.Normalize(s.Division) != "",
		strings.TrimSpace(s.State) != "",
		len(s.Deals) > 0,
	}
	for _, ok := range checks {
		if ok {
			present++
		}
	}
	return types.Round2(float64(present) / float64(len(checks)))
}
