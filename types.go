package evmarb

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID identifies one of the EVM-compatible networks this core watches.
// Each chain owns an independent graph, mirror, nonce counter and pause flag.
type ChainID uint64

// Sequence orders pool-snapshot applications the way the chain itself orders
// them: by block number, then by log index within the block. A pool's
// applied sequence must be strictly increasing or the update is a stale
// replay and is discarded by the State Mirror.
type Sequence struct {
	Block    uint64
	LogIndex uint32
}

// Compare returns -1, 0 or 1 as s is less than, equal to, or greater than o.
func (s Sequence) Compare(o Sequence) int {
	switch {
	case s.Block < o.Block:
		return -1
	case s.Block > o.Block:
		return 1
	case s.LogIndex < o.LogIndex:
		return -1
	case s.LogIndex > o.LogIndex:
		return 1
	default:
		return 0
	}
}

// DexFamily is the pricing family a pool belongs to; it determines which
// snapshot fields are populated and how the Pricing Graph derives the
// edge's weight.
type DexFamily uint8

const (
	DexFamilyV2ConstantProduct DexFamily = iota
	DexFamilyV3Concentrated
	DexFamilyStableCurve
	DexFamilyRouteList
)

func (f DexFamily) String() string {
	switch f {
	case DexFamilyV2ConstantProduct:
		return "v2-constant-product"
	case DexFamilyV3Concentrated:
		return "v3-concentrated"
	case DexFamilyStableCurve:
		return "stable-curve"
	case DexFamilyRouteList:
		return "route-list"
	default:
		return "unknown"
	}
}

// SwapDexType maps a DexFamily to the uint8 dexType the arbitrage
// contract's swap-step tuple expects.
func (f DexFamily) SwapDexType() uint8 {
	return uint8(f)
}

// Token is identified by (chain, address); decimals and symbol are fetched
// once at discovery time and never mutated afterward.
type Token struct {
	ChainID  ChainID
	Address  common.Address
	Decimals uint8
	Symbol   string
}

// PoolID uniquely identifies a pool within this process.
type PoolID struct {
	ChainID ChainID
	Address common.Address
}

// V2Snapshot carries the pricing inputs for a v2-constant-product pool.
type V2Snapshot struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// V3Snapshot carries the pricing inputs for a v3-concentrated pool.
type V3Snapshot struct {
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
}

// SpotSnapshot carries a queried spot rate for stable-curve and route-list
// pools, which have no closed-form reserve pair and are instead read
// directly from the pool's own view function.
type SpotSnapshot struct {
	// RateToken1PerToken0 is how much of token1 one unit of token0 buys,
	// scaled by 1e18, after the pool's own fee/slippage curve at a small
	// reference size.
	RateToken1PerToken0 *big.Int

	// CoinIndex0/CoinIndex1 are the stable-curve pool's internal coin
	// indices for Token0/Token1, read at discovery time and used to encode
	// the swap-step data for a stable-curve leg.
	CoinIndex0 int8
	CoinIndex1 int8

	// IsStablePair marks a route-list pool's underlying venue as a stable
	// (vs volatile) pair, used to encode the swap-step data for a
	// route-list leg.
	IsStablePair bool
}

// Pool is the State Mirror's unit of ownership: identity, static metadata,
// and the single current pricing snapshot, versioned by Sequence.
type Pool struct {
	ID       PoolID
	DexID    string
	Family   DexFamily
	Token0   common.Address
	Token1   common.Address
	FeeBps   uint32
	Sequence Sequence

	Router common.Address

	V2     *V2Snapshot
	V3     *V3Snapshot
	Stable *SpotSnapshot
	Route  *SpotSnapshot
}

// Clone returns a deep copy of p safe to hand to a reader without sharing
// *big.Int backing storage with the mirror's authoritative copy.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	out := *p
	if p.V2 != nil {
		out.V2 = &V2Snapshot{
			Reserve0: cloneBigInt(p.V2.Reserve0),
			Reserve1: cloneBigInt(p.V2.Reserve1),
		}
	}
	if p.V3 != nil {
		out.V3 = &V3Snapshot{
			SqrtPriceX96: cloneBigInt(p.V3.SqrtPriceX96),
			Liquidity:    cloneBigInt(p.V3.Liquidity),
		}
	}
	if p.Stable != nil {
		s := *p.Stable
		s.RateToken1PerToken0 = cloneBigInt(p.Stable.RateToken1PerToken0)
		out.Stable = &s
	}
	if p.Route != nil {
		r := *p.Route
		r.RateToken1PerToken0 = cloneBigInt(p.Route.RateToken1PerToken0)
		out.Route = &r
	}
	return &out
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// Edge is derived from a Pool snapshot on read, never stored canonically.
type Edge struct {
	PoolID      PoolID
	Family      DexFamily
	Router      common.Address
	FeeBps      uint32
	From        common.Address
	To          common.Address
	ReserveFrom *big.Int // reference reserve on the source side, nil if not reserve-based
	ReserveTo   *big.Int
	Weight      float64 // -ln(instantaneous marginal rate after fee)
}

// SwapStep mirrors the external arbitrage contract's swap tuple:
// (router, tokenIn, tokenOut, amountIn, data, dexType).
type SwapStep struct {
	Router   common.Address
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	Data     []byte
	DexType  uint8
}

// ID is an opaque identifier for opportunities and execution records,
// backed by a uuid.UUID string.
type ID string

// Opportunity is a proposed arbitrage cycle surfaced by the Detector and
// consumed by the Opportunity Pipeline.
type Opportunity struct {
	ID ID

	ChainID        ChainID
	Edges          []Edge
	Steps          []SwapStep
	InputToken     common.Address
	InputAmount    *big.Int
	StepOutputs    []*big.Int // per-step expected output, same length as Edges
	FinalOutput    *big.Int
	ExpectedProfit *big.Int
	GasEstimate    uint64
	Confidence     float64
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// PoolSequence returns the ordered pool identities the cycle walks, used by
// the Opportunity Pipeline to dedup by edge-sequence identity.
func (o *Opportunity) PoolSequence() []PoolID {
	ids := make([]PoolID, len(o.Edges))
	for i, e := range o.Edges {
		ids[i] = e.PoolID
	}
	return ids
}

// Expired reports whether the opportunity has outlived its validity window.
func (o *Opportunity) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// ExecutionOutcome classifies the terminal state of an execution attempt.
type ExecutionOutcome uint8

const (
	ExecutionOutcomeSuccess ExecutionOutcome = iota
	ExecutionOutcomeDisqualified
	ExecutionOutcomeReverted
	ExecutionOutcomeSubmissionFailed
	ExecutionOutcomeDryRun
)

func (o ExecutionOutcome) String() string {
	switch o {
	case ExecutionOutcomeSuccess:
		return "success"
	case ExecutionOutcomeDisqualified:
		return "disqualified"
	case ExecutionOutcomeReverted:
		return "reverted"
	case ExecutionOutcomeSubmissionFailed:
		return "submission_failed"
	case ExecutionOutcomeDryRun:
		return "dry_run"
	default:
		return "unknown"
	}
}

// ExecutionRecord is the append-only outcome of consuming one Opportunity.
type ExecutionRecord struct {
	OpportunityID ID
	ChainID       ChainID
	Outcome       ExecutionOutcome
	TxHash        common.Hash
	ErrorKind     string
	ActualProfit  *big.Int
	GasUsed       uint64
	BlockNumber   uint64
	SubmittedAt   time.Time
	ConfirmedAt   time.Time
}

// DailyLossAccumulator tracks realized losses within a rolling 24h window,
// kept independently per chain.
type DailyLossAccumulator struct {
	ResetAt     time.Time
	RunningLoss *big.Int
}

// Rollover resets the accumulator if now is at least 24h past ResetAt.
func (d *DailyLossAccumulator) Rollover(now time.Time) {
	if d.ResetAt.IsZero() || now.Sub(d.ResetAt) >= 24*time.Hour {
		d.ResetAt = now
		d.RunningLoss = big.NewInt(0)
	}
}

// Add records a realized loss and returns the new running total.
func (d *DailyLossAccumulator) Add(loss *big.Int) *big.Int {
	if d.RunningLoss == nil {
		d.RunningLoss = big.NewInt(0)
	}
	d.RunningLoss = new(big.Int).Add(d.RunningLoss, loss)
	return d.RunningLoss
}

// Breached reports whether the running loss has reached limit.
func (d *DailyLossAccumulator) Breached(limit *big.Int) bool {
	if d.RunningLoss == nil || limit == nil {
		return false
	}
	return d.RunningLoss.Cmp(limit) >= 0
}
