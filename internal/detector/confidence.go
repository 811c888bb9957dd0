package detector

import (
	"math"
	"math/big"

	evmarb "evmarb"
)

// confidence scores a candidate in [0,1]: min(profit_bps/100, 1),
// discounted 0.95 per extra cycle hop beyond 2, and 0.8 per edge whose
// thinner-side reserve sits below liquidityFloor. A pre-simulation filter
// and ordering hint only.
func confidence(profitBps float64, cycleLength int, edges []evmarb.Edge, liquidityFloor *big.Int) float64 {
	score := math.Min(profitBps/100, 1)
	score *= math.Pow(0.95, float64(cycleLength-2))
	score *= math.Pow(0.8, float64(thinLiquidityEdgeCount(edges, liquidityFloor)))
	return score
}

func thinLiquidityEdgeCount(edges []evmarb.Edge, floor *big.Int) int {
	if floor == nil {
		return 0
	}
	count := 0
	for _, e := range edges {
		thin := e.ReserveFrom
		if e.ReserveTo != nil && (thin == nil || e.ReserveTo.Cmp(thin) < 0) {
			thin = e.ReserveTo
		}
		if thin == nil {
			continue
		}
		if thin.Cmp(floor) < 0 {
			count++
		}
	}
	return count
}

// profitBps returns the profit in basis points of input, given finalOutput
// > inputAmount; negative or non-positive profit yields 0.
func profitBps(inputAmount, finalOutput *big.Int) float64 {
	if inputAmount == nil || inputAmount.Sign() <= 0 || finalOutput == nil {
		return 0
	}
	diff := new(big.Int).Sub(finalOutput, inputAmount)
	if diff.Sign() <= 0 {
		return 0
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(diff), new(big.Float).SetInt(inputAmount))
	bps, _ := new(big.Float).Mul(ratio, big.NewFloat(10000)).Float64()
	return bps
}
