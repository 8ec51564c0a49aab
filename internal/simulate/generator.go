package simulate

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/fmv"
)

var (
	sports     = []string{"football", "basketball", "volleyball", "soccer", "baseball"}
	states     = []string{"CA", "TX", "FL", "NY", "OH", "GA"}
	divisions  = []string{"d1", "d2", "d3", "naia", "juco", "high_school", ""}
	platforms  = []string{"instagram", "tiktok", "x", "youtube"}
	categories = []string{"apparel", "restaurant", "automotive", "energy_drinks", "crypto", "gambling", "local_business", ""}
	dealTypes  = []compliance.DealType{
		compliance.DealSocialMedia, compliance.DealEndorsement, compliance.DealEvent,
		compliance.DealProductLaunch, compliance.DealAppearance,
	}
	consents = []compliance.ConsentStatus{
		compliance.ConsentNone, compliance.ConsentPending, compliance.ConsentApproved, compliance.ConsentDenied,
	}
)

const contractBody = "This agreement sets the compensation and payment schedule, the term and " +
	"duration of the engagement, the deliverables and services owed, and the conditions " +
	"for termination by either party. "

// Generator produces reproducible athletes and deals.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func pick[T any](g *Generator, xs []T) T { return xs[g.rng.IntN(len(xs))] }

// Signals returns FMV inputs for a new athlete with a random identity.
func (g *Generator) Signals() fmv.Signals {
	s := fmv.Signals{
		AthleteID: uuid.NewString(),
		Sport:     pick(g, sports),
		State:     pick(g, states),
		Division:  pick(g, divisions),
	}
	for n := 1 + g.rng.IntN(3); n > 0; n-- {
		// Followers are log-uniform between 100 and 2,000,000.
		followers := int64(math.Pow(10, 2+g.rng.Float64()*4.3))
		s.Accounts = append(s.Accounts, fmv.SocialAccount{
			Platform:       pick(g, platforms),
			Followers:      followers,
			EngagementRate: math.Round((0.5+g.rng.Float64()*9.5)*100) / 100,
			Verified:       g.rng.IntN(4) == 0,
		})
	}
	if g.rng.IntN(2) == 0 {
		s.Ranking = &fmv.Ranking{OverallRank: 1 + g.rng.IntN(1500), Source: "composite", Verified: g.rng.IntN(3) > 0}
	}
	for n := g.rng.IntN(4); n > 0; n-- {
		s.Deals = append(s.Deals, fmv.DealSummary{
			Status:       pick(g, []string{"active", "completed", "proposed"}),
			Category:     pick(g, categories),
			Compensation: decimal.NewFromInt(int64(100 + g.rng.IntN(20000))),
			RiskTier:     pick(g, []string{"green", "yellow", "red"}),
		})
	}
	return s
}

// Deal returns a deal for athleteID together with the athlete's scoring context.
func (g *Generator) Deal(athleteID string) (compliance.Deal, compliance.AthleteContext) {
	d := compliance.Deal{
		ID:                 "deal-" + uuid.NewString(),
		AthleteID:          athleteID,
		ThirdPartyName:     "Sponsor " + strconv.Itoa(g.rng.IntN(1000)),
		ThirdPartyCategory: pick(g, categories),
		Type:               pick(g, dealTypes),
		Compensation:       decimal.NewFromInt(int64(50 + g.rng.IntN(25000))),
		SchoolAffiliated:   g.rng.IntN(5) == 0,
		BoosterConnected:   g.rng.IntN(8) == 0,
		PerformanceBased:   g.rng.IntN(8) == 0,
	}
	switch g.rng.IntN(3) {
	case 0:
		d.ContractRef = "doc://contracts/" + d.ID
	case 1:
		d.ContractText = contractBody + contractBody + contractBody
		d.Deliverables = "Two posts and one appearance"
	}

	a := compliance.AthleteContext{
		AthleteID:       athleteID,
		Role:            compliance.RoleCollege,
		State:           pick(g, states),
		Followers:       int64(1000 + g.rng.IntN(100000)),
		EngagementRate:  1 + g.rng.Float64()*5,
		TaxAcknowledged: g.rng.IntN(3) > 0,
	}
	if g.rng.IntN(4) == 0 {
		a.Role = compliance.RoleHighSchool
		a.IsMinor = true
		a.GuardianConsent = pick(g, consents)
	}
	return d, a
}
