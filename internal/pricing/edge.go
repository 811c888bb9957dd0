// Package pricing derives directed edges from pool snapshots and holds
// the per-chain token graph the Detector searches. Edge weights are
// -ln(rate) samples for path discovery; the exact integer formulas live
// alongside them for executable quoting.
package pricing

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	evmarb "evmarb"
)

const basisPointDivisor = 10000

// AmountOutV2 computes the exact constant-product output for amountIn
// swapped against (reserveIn, reserveOut) at feeBps. Returns zero if
// either reserve is zero (no liquidity on that side).
func AmountOutV2(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) *big.Int {
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 || amountIn.Sign() == 0 {
		return big.NewInt(0)
	}
	feeMultiplier := big.NewInt(int64(basisPointDivisor) - int64(feeBps))
	amountInWithFee := new(big.Int).Mul(amountIn, feeMultiplier)
	numerator := new(big.Int).Mul(reserveOut, amountInWithFee)
	denominator := new(big.Int).Add(new(big.Int).Mul(reserveIn, big.NewInt(basisPointDivisor)), amountInWithFee)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(numerator, denominator)
}

// rateWeight converts a rate expressed as a ratio of big.Ints (numerator/
// denominator, both non-negative) into the -ln(rate) edge weight. A
// zero-valued or negative rate yields +Inf, so a drained pool drops out
// of every shortest path.
func rateWeight(numerator, denominator *big.Int) float64 {
	if denominator == nil || denominator.Sign() <= 0 || numerator == nil || numerator.Sign() <= 0 {
		return math.Inf(1)
	}
	rate := new(big.Float).Quo(new(big.Float).SetInt(numerator), new(big.Float).SetInt(denominator))
	rateF, _ := rate.Float64()
	if rateF <= 0 {
		return math.Inf(1)
	}
	return -math.Log(rateF)
}

// DeriveEdges computes the two directed edges for pool, using refToken0/
// refToken1 as the small reference input (in the respective token's native
// precision) for the v2 rate samples. v3 pools ignore the reference input
// and use the closed-form spot price instead; stable-curve and route-list
// pools ignore it too and use their stored spot rate.
func DeriveEdges(pool evmarb.Pool, refToken0, refToken1 *big.Int) (forward, backward evmarb.Edge, err error) {
	switch pool.Family {
	case evmarb.DexFamilyV2ConstantProduct:
		return deriveV2Edges(pool, refToken0, refToken1)
	case evmarb.DexFamilyV3Concentrated:
		return deriveV3Edges(pool)
	case evmarb.DexFamilyStableCurve, evmarb.DexFamilyRouteList:
		return deriveSpotEdges(pool)
	default:
		return evmarb.Edge{}, evmarb.Edge{}, errUnknownFamily(pool.Family)
	}
}

func deriveV2Edges(pool evmarb.Pool, refToken0, refToken1 *big.Int) (forward, backward evmarb.Edge, err error) {
	if pool.V2 == nil {
		return evmarb.Edge{}, evmarb.Edge{}, errMissingSnapshot(pool.ID)
	}
	r0, r1 := pool.V2.Reserve0, pool.V2.Reserve1

	out01 := AmountOutV2(refToken0, r0, r1, pool.FeeBps)
	out10 := AmountOutV2(refToken1, r1, r0, pool.FeeBps)

	forward = baseEdge(pool, pool.Token0, pool.Token1, r0, r1)
	forward.Weight = rateWeight(out01, refToken0)

	backward = baseEdge(pool, pool.Token1, pool.Token0, r1, r0)
	backward.Weight = rateWeight(out10, refToken1)
	return forward, backward, nil
}

func deriveV3Edges(pool evmarb.Pool) (forward, backward evmarb.Edge, err error) {
	if pool.V3 == nil {
		return evmarb.Edge{}, evmarb.Edge{}, errMissingSnapshot(pool.ID)
	}
	sqrtPrice := pool.V3.SqrtPriceX96
	if sqrtPrice == nil || sqrtPrice.Sign() == 0 {
		forward = baseEdge(pool, pool.Token0, pool.Token1, pool.V3.Liquidity, pool.V3.Liquidity)
		forward.Weight = math.Inf(1)
		backward = baseEdge(pool, pool.Token1, pool.Token0, pool.V3.Liquidity, pool.V3.Liquidity)
		backward.Weight = math.Inf(1)
		return forward, backward, nil
	}

	// price0to1 = (sqrtPriceX96 / 2^96)^2: the tick-local spot rate, used
	// for detection and, through ExactOutput, for the executable quote.
	q96 := new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))
	ratio := new(big.Float).Quo(new(big.Float).SetInt(sqrtPrice), q96)
	price0to1F, _ := new(big.Float).Mul(ratio, ratio).Float64()

	feeMultiplier := float64(basisPointDivisor-int64(pool.FeeBps)) / float64(basisPointDivisor)

	forward = baseEdge(pool, pool.Token0, pool.Token1, pool.V3.Liquidity, pool.V3.Liquidity)
	forward.Weight = weightFromFloatRate(price0to1F * feeMultiplier)

	backward = baseEdge(pool, pool.Token1, pool.Token0, pool.V3.Liquidity, pool.V3.Liquidity)
	if price0to1F > 0 {
		backward.Weight = weightFromFloatRate((1 / price0to1F) * feeMultiplier)
	} else {
		backward.Weight = math.Inf(1)
	}
	return forward, backward, nil
}

func deriveSpotEdges(pool evmarb.Pool) (forward, backward evmarb.Edge, err error) {
	var snapshot *evmarb.SpotSnapshot
	if pool.Family == evmarb.DexFamilyStableCurve {
		snapshot = pool.Stable
	} else {
		snapshot = pool.Route
	}
	if snapshot == nil || snapshot.RateToken1PerToken0 == nil {
		return evmarb.Edge{}, evmarb.Edge{}, errMissingSnapshot(pool.ID)
	}

	rateF, _ := new(big.Float).Quo(
		new(big.Float).SetInt(snapshot.RateToken1PerToken0),
		new(big.Float).SetInt(big.NewInt(1e18)),
	).Float64()
	feeMultiplier := float64(basisPointDivisor-int64(pool.FeeBps)) / float64(basisPointDivisor)

	forward = baseEdge(pool, pool.Token0, pool.Token1, nil, nil)
	forward.Weight = weightFromFloatRate(rateF * feeMultiplier)

	backward = baseEdge(pool, pool.Token1, pool.Token0, nil, nil)
	if rateF > 0 {
		backward.Weight = weightFromFloatRate((1 / rateF) * feeMultiplier)
	} else {
		backward.Weight = math.Inf(1)
	}
	return forward, backward, nil
}

// ExactOutput computes the executable quote for one edge at amountIn,
// applying the edge's exact output formula rather than the linearized
// weight used for cycle search. v2 edges use the precise integer
// constant-product formula; v3/stable/route-list edges carry the same
// local approximation used to derive their weight, with the final word
// left to on-chain simulation.
func ExactOutput(e evmarb.Edge, amountIn *big.Int) *big.Int {
	if e.Family == evmarb.DexFamilyV2ConstantProduct && e.ReserveFrom != nil && e.ReserveTo != nil {
		return AmountOutV2(amountIn, e.ReserveFrom, e.ReserveTo, e.FeeBps)
	}
	if math.IsInf(e.Weight, 1) {
		return big.NewInt(0)
	}
	rate := math.Exp(-e.Weight)
	amountInF := new(big.Float).SetInt(amountIn)
	outF := new(big.Float).Mul(amountInF, big.NewFloat(rate))
	out, _ := outF.Int(nil)
	return out
}

func weightFromFloatRate(rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return -math.Log(rate)
}

func baseEdge(pool evmarb.Pool, from, to common.Address, reserveFrom, reserveTo *big.Int) evmarb.Edge {
	return evmarb.Edge{
		PoolID:      pool.ID,
		Family:      pool.Family,
		Router:      pool.Router,
		FeeBps:      pool.FeeBps,
		From:        from,
		To:          to,
		ReserveFrom: reserveFrom,
		ReserveTo:   reserveTo,
	}
}
