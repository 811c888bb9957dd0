// Package pipeline implements the per-chain opportunity queue: a bounded
// FIFO with dedup-by-pool-sequence, expiration, and a USD profit filter,
// swept on a timer so stale entries never pile up while no consumer is
// dequeuing.
package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	evmarb "evmarb"
	"evmarb/internal/oracle"
)

// Config tunes one chain's Pipeline.
type Config struct {
	Capacity     int
	DedupWindow  time.Duration
	MinProfitUSD float64
	GCInterval   time.Duration
}

// DefaultConfig returns reasonable defaults: a few hundred in-flight
// opportunities, a one-second dedup window, no USD floor until configured.
func DefaultConfig() Config {
	return Config{
		Capacity:    256,
		DedupWindow: time.Second,
		GCInterval:  500 * time.Millisecond,
	}
}

// Pipeline is a bounded per-chain FIFO of pending opportunities.
type Pipeline struct {
	mu    sync.Mutex
	queue []evmarb.Opportunity

	recent map[string]time.Time

	cfg    Config
	oracle oracle.PriceOracle
	logger *zap.Logger
}

// New constructs a Pipeline for one chain. oracle may be oracle.Noop{}.
func New(cfg Config, priceOracle oracle.PriceOracle, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		queue:  make([]evmarb.Opportunity, 0, cfg.Capacity),
		recent: make(map[string]time.Time),
		cfg:    cfg,
		oracle: priceOracle,
		logger: logger.Named("pipeline"),
	}
}

func dedupKey(o evmarb.Opportunity) string {
	return fmt.Sprintf("%v", o.PoolSequence())
}

// Enqueue admits o unless an equivalent opportunity (same ordered pool
// sequence) was enqueued within the dedup window, or the queue is full.
// Returns false, nil on a rejected-but-not-erroneous dedup/capacity case.
func (p *Pipeline) Enqueue(o evmarb.Opportunity, now time.Time) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := dedupKey(o)
	if last, ok := p.recent[key]; ok && now.Sub(last) < p.cfg.DedupWindow {
		return false, nil
	}
	if len(p.queue) >= p.cfg.Capacity {
		p.logger.Warn("pipeline at capacity, dropping opportunity", zap.String("id", string(o.ID)))
		return false, nil
	}

	p.recent[key] = now
	p.queue = append(p.queue, o)
	return true, nil
}

// Dequeue pops the oldest pending opportunity that survives expiration and
// the USD profit filter, skipping (and discarding) anything that doesn't.
// Returns false if the queue is empty after filtering.
func (p *Pipeline) Dequeue(ctx context.Context, now time.Time) (evmarb.Opportunity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]

		if next.Expired(now) {
			p.logger.Debug("dropping expired opportunity", zap.String("id", string(next.ID)))
			continue
		}

		if p.cfg.MinProfitUSD > 0 {
			usd, err := p.oracle.USDPrice(ctx, next.ChainID, next.InputToken)
			if err != nil {
				// An oracle failure lets the opportunity proceed; the
				// simulator evaluates it in native units only.
				return next, true
			}
			profitUSD := usd * weiToFloat(next.ExpectedProfit)
			if profitUSD < p.cfg.MinProfitUSD {
				p.logger.Debug("dropping opportunity below USD profit floor", zap.String("id", string(next.ID)))
				continue
			}
		}

		return next, true
	}
	return evmarb.Opportunity{}, false
}

// Len returns the number of pending opportunities.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Run sweeps expired entries and stale dedup keys on a timer, independent
// of Dequeue calls, so nothing accumulates unboundedly in the absence of
// a consumer.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(time.Now())
		}
	}
}

func (p *Pipeline) sweep(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.queue[:0:0]
	for _, o := range p.queue {
		if !o.Expired(now) {
			kept = append(kept, o)
		}
	}
	p.queue = kept

	for k, t := range p.recent {
		if now.Sub(t) > p.cfg.DedupWindow {
			delete(p.recent, k)
		}
	}
}

// weiToFloat converts a wei-denominated amount to its float64 value in
// whole native-token units (18 decimals), the precision the USD profit
// filter needs and no more.
func weiToFloat(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, new(big.Float).SetInt(big.NewInt(1_000_000_000_000_000_000)))
	out, _ := f.Float64()
	return out
}
