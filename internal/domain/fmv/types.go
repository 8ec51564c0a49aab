package fmv

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/nilcore/internal/domain/ratelimit"
)

// Area names one of the four sub-scores.
type Area string

// Sub-score areas in reporting order.
const (
	AreaSocial   Area = "social"
	AreaAthletic Area = "athletic"
	AreaMarket   Area = "market"
	AreaBrand    Area = "brand"
)

// Areas lists every area in reporting order.
var Areas = []Area{AreaSocial, AreaAthletic, AreaMarket, AreaBrand} //nolint:gochecknoglobals // fixed table

// Tier is the FMV band.
type Tier string

// FMV tiers.
const (
	TierElite      Tier = "elite"
	TierHigh       Tier = "high"
	TierMedium     Tier = "medium"
	TierDeveloping Tier = "developing"
	TierEmerging   Tier = "emerging"
)

// Trigger records why a calculation ran.
type Trigger string

// Triggers.
const (
	TriggerInitial   Trigger = "initial"
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// SocialAccount is one platform presence.
type SocialAccount struct {
	Platform       string  `json:"platform"`
	Followers      int64   `json:"followers"`
	EngagementRate float64 `json:"engagementRate"`
	Verified       bool    `json:"verified"`
}

// Ranking is externally sourced performance data.
type Ranking struct {
	OverallRank int    `json:"overallRank"`
	Source      string `json:"source,omitempty"`
	Verified    bool   `json:"verified"`
}

// DealSummary is a prior NIL deal as seen by the brand sub-score.
type DealSummary struct {
	Status       string          `json:"status"`
	Category     string          `json:"category,omitempty"`
	Compensation decimal.Decimal `json:"compensation"`
	RiskTier     string          `json:"riskTier,omitempty"`
}

// Signals is everything the engine knows about an athlete.
type Signals struct {
	AthleteID string          `json:"athleteId"`
	Sport     string          `json:"sport,omitempty"`
	State     string          `json:"state,omitempty"`
	Division  string          `json:"division,omitempty"`
	Accounts  []SocialAccount `json:"accounts,omitempty"`
	Ranking   *Ranking        `json:"ranking,omitempty"`
	Deals     []DealSummary   `json:"deals,omitempty"`
}

// TotalFollowers sums followers across platforms.
func (s Signals) TotalFollowers() int64 {
	var total int64
	for _, a := range s.Accounts {
		if a.Followers > 0 {
			total += a.Followers
		}
	}
	return total
}

// AverageEngagement is the mean engagement rate (percent) over accounts reporting one.
func (s Signals) AverageEngagement() float64 {
	var sum float64
	var n int
	for _, a := range s.Accounts {
		if a.EngagementRate > 0 {
			sum += a.EngagementRate
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// SubScores holds the four 0..100 components.
type SubScores struct {
	Social   float64 `json:"social"`
	Athletic float64 `json:"athletic"`
	Market   float64 `json:"market"`
	Brand    float64 `json:"brand"`
}

// Get returns the sub-score for area.
func (s SubScores) Get(a Area) float64 {
	switch a {
	case AreaSocial:
		return s.Social
	case AreaAthletic:
		return s.Athletic
	case AreaMarket:
		return s.Market
	case AreaBrand:
		return s.Brand
	default:
		return 0
	}
}

// DealValue is an estimated per-deal value band in USD.
type DealValue struct {
	Low  decimal.Decimal `json:"low"`
	Mid  decimal.Decimal `json:"mid"`
	High decimal.Decimal `json:"high"`
}

// Factor is a strength or weakness relative to the athlete's own mean.
type Factor struct {
	Area  Area    `json:"area"`
	Score float64 `json:"score"`
	Delta float64 `json:"delta"`
}

// Suggestion is an improvement ranked by potential FMV gain.
type Suggestion struct {
	Area          Area    `json:"area"`
	Action        string  `json:"action"`
	CurrentScore  float64 `json:"currentScore"`
	PotentialGain float64 `json:"potentialGain"`
}

// HistoryEntry is one retained past score.
type HistoryEntry struct {
	Score        float64   `json:"score"`
	Tier         Tier      `json:"tier"`
	CalculatedAt time.Time `json:"calculatedAt"`
	Trigger      Trigger   `json:"trigger"`
}

// Peer is one cohort member.
type Peer struct {
	AthleteID string  `json:"athleteId"`
	Score     float64 `json:"score"`
}

// Result is the live FMV record for one athlete.
type Result struct {
	AthleteID          string          `json:"athleteId"`
	Version            string          `json:"version"`
	SubScores          SubScores       `json:"subScores"`
	Score              float64         `json:"fmvScore"`
	Tier               Tier            `json:"fmvTier"`
	PercentileRank     float64         `json:"percentileRank"`
	CohortSize         int             `json:"cohortSize"`
	EstimatedDealValue DealValue       `json:"estimatedDealValue"`
	Completeness       float64         `json:"dataCompleteness"`
	AthleticDefaulted  bool            `json:"athleticDefaulted"`
	Strengths          []Factor        `json:"strengths"`
	Weaknesses         []Factor        `json:"weaknesses"`
	Suggestions        []Suggestion    `json:"improvementSuggestions"`
	IsPublic           bool            `json:"isPublicScore"`
	RateLimit          ratelimit.State `json:"rateLimit"`
	LastNotifiedScore  float64         `json:"lastNotifiedScore"`
	LastCalculatedAt   time.Time       `json:"lastCalculatedAt"`
	Sport              string          `json:"sport,omitempty"`
	History            []HistoryEntry  `json:"history"`

	// Signals are the inputs of the latest computation. Scheduled refreshes
	// recompute from them; they never leave the service.
	Signals Signals `json:"-"`
}

// LatestEntry returns the newest history entry.
func (r Result) LatestEntry() (HistoryEntry, bool) {
	if len(r.History) == 0 {
		return HistoryEntry{}, false
	}
	return r.History[len(r.History)-1], true
}

// Request is the input to Engine.Calculate. A nil Prior marks the athlete's first computation.
type Request struct {
	Signals Signals
	Cohort  []Peer
	Prior   *Result
	Trigger Trigger
}

// IsInitial reports whether no prior record exists.
func (r Request) IsInitial() bool { return r.Prior == nil }
