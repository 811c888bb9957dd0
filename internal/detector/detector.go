package detector

import (
	"context"
	"math/big"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	evmarb "evmarb"
	"evmarb/internal/pricing"
)

// PoolLookup resolves a pool's full snapshot by ID, used only to encode a
// cycle's swap-step data (the Graph's Edge view does not carry per-family
// metadata like stable-curve coin indices).
type PoolLookup func(id evmarb.PoolID) (evmarb.Pool, bool)

// Config tunes one chain's Detector run. Every field is a plain value so
// operators can tune the search without a rebuild.
type Config struct {
	SourceToken    common.Address
	MaxCycleDepth  int
	InputAmount    *big.Int
	MinProfit      *big.Int
	LiquidityFloor *big.Int
	ValidityWindow time.Duration
}

// DefaultConfig returns the stock tuning: cycles up to three hops, a 2s
// validity window applied as the opportunity's own expiry stamp.
func DefaultConfig(source common.Address) Config {
	return Config{
		SourceToken:    source,
		MaxCycleDepth:  3,
		InputAmount:    big.NewInt(1_000_000_000_000_000_000),
		MinProfit:      big.NewInt(0),
		LiquidityFloor: big.NewInt(0),
		ValidityWindow: 2 * time.Second,
	}
}

// Detector searches one chain's Pricing Graph for cyclic arbitrage
// opportunities. At most one search runs per Detector at a time: triggers
// arriving mid-run set a dirty flag that is consumed as one follow-up run
// when the current search finishes, so a burst of pool updates costs one
// extra search, not one search per update.
type Detector struct {
	chainID evmarb.ChainID
	graph   *pricing.Graph
	pools   PoolLookup
	cfg     Config
	logger  *zap.Logger

	group singleflight.Group
	dirty atomic.Bool
	out   chan evmarb.Opportunity
}

// New constructs a Detector for one chain's graph.
func New(chainID evmarb.ChainID, graph *pricing.Graph, pools PoolLookup, cfg Config, logger *zap.Logger) *Detector {
	return &Detector{
		chainID: chainID,
		graph:   graph,
		pools:   pools,
		cfg:     cfg,
		logger:  logger.Named("detector"),
		out:     make(chan evmarb.Opportunity, 256),
	}
}

// Opportunities returns the channel opportunities are published on.
func (d *Detector) Opportunities() <-chan evmarb.Opportunity {
	return d.out
}

// Trigger schedules one detection run. If a run is already in flight the
// trigger is coalesced: the in-flight run picks it up as a single
// follow-up pass before releasing the singleflight slot.
func (d *Detector) Trigger(ctx context.Context) {
	d.dirty.Store(true)
	for d.dirty.Load() && ctx.Err() == nil {
		_, _, _ = d.group.Do("run", func() (interface{}, error) {
			for d.dirty.Swap(false) {
				d.run(ctx)
			}
			return nil, nil
		})
	}
}

func (d *Detector) run(ctx context.Context) {
	vertices := d.graph.Vertices()
	edges := d.graph.AllEdges()

	bf := negativeCycleSearch(vertices, edges, d.cfg.SourceToken)
	dfs := boundedCycleSearch(d.graph.EdgesFrom, d.cfg.SourceToken, d.cfg.MaxCycleDepth)

	seen := make(map[string]bool)
	var candidates []cycle
	for _, c := range append(bf, dfs...) {
		if c.length() < 2 || c.length() > d.cfg.MaxCycleDepth {
			continue
		}
		c = c.canonical(d.cfg.SourceToken)
		k := c.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		candidates = append(candidates, c)
	}

	now := time.Now()
	var opportunities []evmarb.Opportunity
	for _, c := range candidates {
		opp, ok := d.quote(c, now)
		if !ok {
			continue
		}
		opportunities = append(opportunities, opp)
	}

	sort.Slice(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if a.ExpectedProfit.Cmp(b.ExpectedProfit) != 0 {
			return a.ExpectedProfit.Cmp(b.ExpectedProfit) > 0
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	for _, opp := range opportunities {
		select {
		case d.out <- opp:
		case <-ctx.Done():
			return
		default:
			d.logger.Warn("opportunity channel full, dropping candidate", zap.String("id", string(opp.ID)))
		}
	}
}

// quote performs the executable quote: each edge's exact output formula
// applied sequentially, not the linearized weight used for search. c is
// promoted to an Opportunity only if the final output exceeds the input
// by at least the configured minimum profit.
func (d *Detector) quote(c cycle, now time.Time) (evmarb.Opportunity, bool) {
	amount := new(big.Int).Set(d.cfg.InputAmount)
	outputs := make([]*big.Int, len(c.edges))
	for i, e := range c.edges {
		out := pricing.ExactOutput(e, amount)
		if out.Sign() <= 0 {
			return evmarb.Opportunity{}, false
		}
		outputs[i] = out
		amount = out
	}

	profit := new(big.Int).Sub(amount, d.cfg.InputAmount)
	if profit.Sign() <= 0 || profit.Cmp(d.cfg.MinProfit) < 0 {
		return evmarb.Opportunity{}, false
	}

	steps, err := d.buildSteps(c)
	if err != nil {
		d.logger.Warn("failed to encode swap steps", zap.Error(err))
		return evmarb.Opportunity{}, false
	}

	bps := profitBps(d.cfg.InputAmount, amount)
	conf := confidence(bps, c.length(), c.edges, d.cfg.LiquidityFloor)

	return evmarb.Opportunity{
		ID:             evmarb.ID(uuid.New().String()),
		ChainID:        d.chainID,
		Edges:          c.edges,
		Steps:          steps,
		InputToken:     c.source(),
		InputAmount:    new(big.Int).Set(d.cfg.InputAmount),
		StepOutputs:    outputs,
		FinalOutput:    amount,
		ExpectedProfit: profit,
		Confidence:     conf,
		CreatedAt:      now,
		ExpiresAt:      now.Add(d.cfg.ValidityWindow),
	}, true
}

func (d *Detector) buildSteps(c cycle) ([]evmarb.SwapStep, error) {
	steps := make([]evmarb.SwapStep, len(c.edges))
	amount := d.cfg.InputAmount
	for i, e := range c.edges {
		pool, ok := d.pools(e.PoolID)
		if !ok {
			pool = evmarb.Pool{ID: e.PoolID, Family: e.Family, Router: e.Router, FeeBps: e.FeeBps}
		}
		data, err := encodeSwapData(pool)
		if err != nil {
			return nil, err
		}
		steps[i] = evmarb.SwapStep{
			Router:   e.Router,
			TokenIn:  e.From,
			TokenOut: e.To,
			AmountIn: amount,
			Data:     data,
			DexType:  e.Family.SwapDexType(),
		}
		amount = pricing.ExactOutput(e, amount)
	}
	return steps, nil
}
