package compliance

// DimensionSpec fixes a dimension's weight and native scale within a version.
type DimensionSpec struct {
	ID     DimensionID
	Weight float64
	Max    float64
}

// ScoreVersion is a frozen weight and threshold table. Two results with the
// same version are always comparable.
type ScoreVersion struct {
	Name       string
	Dimensions []DimensionSpec
	GreenMin   float64
	YellowMin  float64
}

// V1 is the current table.
var V1 = ScoreVersion{ //nolint:gochecknoglobals // versioned constant table
	Name: "v1",
	Dimensions: []DimensionSpec{
		{ID: PolicyFit, Weight: 0.30, Max: 100},
		{ID: DocumentHygiene, Weight: 0.20, Max: 20},
		{ID: FMVVerification, Weight: 0.15, Max: 100},
		{ID: TaxReadiness, Weight: 0.15, Max: 10},
		{ID: BrandSafety, Weight: 0.10, Max: 100},
		{ID: GuardianConsent, Weight: 0.10, Max: 100},
	},
	GreenMin:  80,
	YellowMin: 50,
}

// DefaultVersion names the table used when a caller does not pick one.
const DefaultVersion = "v1"

// WeightSum totals the dimension weights.
func (v ScoreVersion) WeightSum() float64 {
	var sum float64
	for _, d := range v.Dimensions {
		sum += d.Weight
	}
	return sum
}

// Weight returns the weight of id, or 0 if the version does not score it.
func (v ScoreVersion) Weight(id DimensionID) float64 {
	for _, d := range v.Dimensions {
		if d.ID == id {
			return d.Weight
		}
	}
	return 0
}

// TierFor classifies a total score, ignoring critical flags.
func (v ScoreVersion) TierFor(score float64) Tier {
	switch {
	case score >= v.GreenMin:
		return TierGreen
	case score >= v.YellowMin:
		return TierYellow
	default:
		return TierRed
	}
}

// Classify derives the risk tier from the total and whether any critical flag was raised.
func (v ScoreVersion) Classify(total float64, critical bool) Tier {
	if critical {
		return TierRed
	}
	return v.TierFor(total)
}
