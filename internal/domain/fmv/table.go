package fmv

import "sort"

// Weights combine the four sub-scores. They must sum to 1.
type Weights struct {
	Social   float64
	Athletic float64
	Market   float64
	Brand    float64
}

// Sum returns the total weight.
func (w Weights) Sum() float64 { return w.Social + w.Athletic + w.Market + w.Brand }

// Get returns the weight for area.
func (w Weights) Get(a Area) float64 {
	return SubScores{Social: w.Social, Athletic: w.Athletic, Market: w.Market, Brand: w.Brand}.Get(a)
}

// Band maps a minimum score to a tier.
type Band struct {
	Min  float64
	Tier Tier
}

// Version is a frozen scoring table. Results of the same version are comparable.
type Version struct {
	Name            string
	Weights         Weights
	Bands           []Band
	NeutralAthletic float64
	BaseDealValue   float64
}

// Neutral athletic score used when no verified ranking data exists.
const NeutralAthleticScore = 50.0

// V1 is the current table.
var V1 = Version{ //nolint:gochecknoglobals // versioned constant table
	Name:    "v1",
	Weights: Weights{Social: 0.35, Athletic: 0.25, Market: 0.20, Brand: 0.20},
	Bands: []Band{
		{Min: 85, Tier: TierElite},
		{Min: 70, Tier: TierHigh},
		{Min: 50, Tier: TierMedium},
		{Min: 30, Tier: TierDeveloping},
		{Min: 0, Tier: TierEmerging},
	},
	NeutralAthletic: NeutralAthleticScore,
	BaseDealValue:   20000,
}

var versions = map[string]Version{V1.Name: V1} //nolint:gochecknoglobals // registry of frozen tables

// Lookup returns the table registered under name.
func Lookup(name string) (Version, bool) {
	v, ok := versions[name]
	return v, ok
}

// TierFor classifies score using the version's bands.
func (v Version) TierFor(score float64) Tier {
	bands := append([]Band(nil), v.Bands...)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Min > bands[j].Min })
	for _, b := range bands {
		if score >= b.Min {
			return b.Tier
		}
	}
	return TierEmerging
}

// Sport popularity on a 0..10 scale; unlisted sports get defaultSportTier.
var sportTiers = map[string]float64{ //nolint:gochecknoglobals // lookup table
	"football":   10,
	"basketball": 10,
	"baseball":   9,
	"softball":   9,
	"soccer":     8,
	"volleyball": 7,
	"hockey":     7,
	"track":      6,
	"wrestling":  6,
	"gymnastics": 6,
	"swimming":   5,
	"lacrosse":   5,
	"golf":       4,
	"tennis":     4,
}

const defaultSportTier = 3

var largeMarkets = map[string]bool{ //nolint:gochecknoglobals // lookup table
	"CA": true, "TX": true, "FL": true, "NY": true, "GA": true, "OH": true, "PA": true,
}

var mediumMarkets = map[string]bool{ //nolint:gochecknoglobals // lookup table
	"NC": true, "MI": true, "IL": true, "TN": true, "AZ": true, "IN": true, "WA": true, "CO": true,
}

var divisionPoints = map[string]float64{ //nolint:gochecknoglobals // lookup table
	"d1":          30,
	"d2":          20,
	"d3":          12,
	"naia":        12,
	"juco":        12,
	"high_school": 8,
}

const unknownDivisionPoints = 10

// rankBands map an overall rank ceiling to an athletic score.
var rankBands = []struct { //nolint:gochecknoglobals // lookup table
	maxRank int
	score   float64
}{
	{50, 95},
	{100, 85},
	{300, 72},
	{500, 62},
	{1000, 52},
}

const unrankedScore = 40
