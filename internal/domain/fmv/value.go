package fmv

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	minVariance     = 0.25
	varianceSpread  = 0.5
	followerFloor   = 100.0
	followerDivisor = 5.0
)

// estimateDealValue maps score and reach to a value band. Mid is monotonic in
// both inputs; the band widens as completeness falls.
func estimateDealValue(base, score float64, followers int64, completeness float64) DealValue {
	reach := math.Log10(math.Max(float64(followers), followerFloor)) / followerDivisor
	mid := decimal.NewFromFloat(base * score / 100 * reach).Round(0)

	variance := decimal.NewFromFloat(minVariance + varianceSpread*(1-math.Max(0, math.Min(1, completeness))))
	one := decimal.NewFromInt(1)

	return DealValue{
		Low:  mid.Mul(one.Sub(variance)).Round(0),
		Mid:  mid,
		High: mid.Mul(one.Add(variance)).Round(0),
	}
}
