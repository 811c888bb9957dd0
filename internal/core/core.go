// Package core wires one Controller per process, owning a ChainRuntime
// per enabled chain and exposing the operator control surface: pause,
// resume, status, recent trades, opportunity queue, pool mirror snapshot.
// It lives outside the root evmarb package because the per-chain
// collaborators it wires (internal/mirror, internal/pricing,
// internal/detector, internal/pipeline, internal/executor) each import
// evmarb themselves, so an aggregator inside the root package would
// cycle. It depends on narrow local interfaces rather than those concrete
// packages, so a test can drive a runtime with fakes.
package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	evmarb "evmarb"
)

// OpportunitySource is the Detector's output surface this package depends
// on, narrowed so core does not need to import internal/detector directly.
type OpportunitySource interface {
	Opportunities() <-chan evmarb.Opportunity
}

// OpportunityQueue is the Pipeline's surface this package depends on.
type OpportunityQueue interface {
	Enqueue(o evmarb.Opportunity, now time.Time) (bool, error)
	Dequeue(ctx context.Context, now time.Time) (evmarb.Opportunity, bool)
	Len() int
}

// Trader is the Executor's surface this package depends on.
type Trader interface {
	Execute(ctx context.Context, opp evmarb.Opportunity) (evmarb.ExecutionRecord, error)
}

// PoolSource is the Mirror's surface this package depends on.
type PoolSource interface {
	Get(id evmarb.PoolID) (evmarb.Pool, bool)
	Snapshot() []evmarb.Pool
}

// Status reports one chain's current operational state.
type Status struct {
	ChainID       evmarb.ChainID
	Paused        bool
	QueueDepth    int
	MirroredPools int
}

// ChainRuntime bundles one chain's wired collaborators and runs its event
// loop: drain the Detector's opportunities into the Pipeline, then drain
// the Pipeline into the Executor, recording every outcome into a bounded
// history ring.
type ChainRuntime struct {
	ChainID  evmarb.ChainID
	Detector OpportunitySource
	Pipeline OpportunityQueue
	Executor Trader
	Mirror   PoolSource

	// DequeuePollInterval bounds how often Run retries Dequeue when the
	// pipeline is empty; defaults to 50ms if zero.
	DequeuePollInterval time.Duration

	// Cooldown is the post-trade delay before the next dequeue; zero
	// means back-to-back trades are allowed.
	Cooldown time.Duration

	paused  atomic.Bool
	history *historyRing
	logger  *zap.Logger
}

// NewChainRuntime constructs a ChainRuntime with a history ring retaining
// the latest historyCapacity execution records.
func NewChainRuntime(chainID evmarb.ChainID, detector OpportunitySource, pipeline OpportunityQueue, exec Trader, mirror PoolSource, historyCapacity int, logger *zap.Logger) *ChainRuntime {
	return &ChainRuntime{
		ChainID:  chainID,
		Detector: detector,
		Pipeline: pipeline,
		Executor: exec,
		Mirror:   mirror,
		history:  newHistoryRing(historyCapacity),
		logger:   logger.Named(fmt.Sprintf("chain-%d", chainID)),
	}
}

// Run drains the Detector into the Pipeline and the Pipeline into the
// Executor until ctx is canceled. Both loops run concurrently and Run
// blocks until they both return. The pipeline drain is strictly
// sequential, so at most one transaction per chain is ever in flight.
func (rt *ChainRuntime) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		rt.drainDetector(ctx)
	}()
	go func() {
		defer wg.Done()
		rt.drainPipeline(ctx)
	}()

	wg.Wait()
}

func (rt *ChainRuntime) drainDetector(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case opp, ok := <-rt.Detector.Opportunities():
			if !ok {
				return
			}
			if _, err := rt.Pipeline.Enqueue(opp, time.Now()); err != nil {
				rt.logger.Warn("failed to enqueue opportunity", zap.String("id", string(opp.ID)), zap.Error(err))
			}
		}
	}
}

func (rt *ChainRuntime) drainPipeline(ctx context.Context) {
	pollInterval := rt.DequeuePollInterval
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if rt.paused.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		opp, ok := rt.Pipeline.Dequeue(ctx, time.Now())
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		rec, err := rt.Executor.Execute(ctx, opp)
		if err != nil {
			// A loss-limit breach; log the cause and pause. The record
			// itself is still worth archiving.
			rt.logger.Warn("loss limit breached, pausing chain", zap.Error(err))
			rt.Pause()
		}
		rt.history.Add(rec)

		if rt.Cooldown > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(rt.Cooldown):
			}
		}
	}
}

// Pause stops this chain's pipeline from dequeuing; an in-flight
// execution is unaffected and finishes naturally.
func (rt *ChainRuntime) Pause() { rt.paused.Store(true) }

// Resume re-enables dequeuing.
func (rt *ChainRuntime) Resume() { rt.paused.Store(false) }

func (rt *ChainRuntime) status() Status {
	return Status{
		ChainID:       rt.ChainID,
		Paused:        rt.paused.Load(),
		QueueDepth:    rt.Pipeline.Len(),
		MirroredPools: len(rt.Mirror.Snapshot()),
	}
}

// Controller is the process-wide operator control surface, owning one
// ChainRuntime per enabled chain.
type Controller struct {
	mu     sync.RWMutex
	chains map[evmarb.ChainID]*ChainRuntime
	logger *zap.Logger
}

// NewController constructs an empty Controller; chains are added with
// Register before Run is called on them.
func NewController(logger *zap.Logger) *Controller {
	return &Controller{chains: make(map[evmarb.ChainID]*ChainRuntime), logger: logger}
}

// Register adds rt to the controller, keyed by its ChainID.
func (c *Controller) Register(rt *ChainRuntime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chains[rt.ChainID] = rt
}

func (c *Controller) chain(chainID evmarb.ChainID) (*ChainRuntime, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rt, ok := c.chains[chainID]
	return rt, ok
}

// Pause halts dequeuing on chainID. Returns false if chainID is unknown.
func (c *Controller) Pause(chainID evmarb.ChainID) bool {
	rt, ok := c.chain(chainID)
	if !ok {
		return false
	}
	rt.Pause()
	return true
}

// Resume re-enables dequeuing on chainID. Returns false if chainID is
// unknown.
func (c *Controller) Resume(chainID evmarb.ChainID) bool {
	rt, ok := c.chain(chainID)
	if !ok {
		return false
	}
	rt.Resume()
	return true
}

// Status reports chainID's current operational state.
func (c *Controller) Status(chainID evmarb.ChainID) (Status, bool) {
	rt, ok := c.chain(chainID)
	if !ok {
		return Status{}, false
	}
	return rt.status(), true
}

// RecentTrades returns up to n of chainID's most recent execution
// records, newest first.
func (c *Controller) RecentTrades(chainID evmarb.ChainID, n int) ([]evmarb.ExecutionRecord, bool) {
	rt, ok := c.chain(chainID)
	if !ok {
		return nil, false
	}
	return rt.history.Recent(n), true
}

// Opportunities returns chainID's current opportunity queue depth.
func (c *Controller) Opportunities(chainID evmarb.ChainID) (int, bool) {
	rt, ok := c.chain(chainID)
	if !ok {
		return 0, false
	}
	return rt.Pipeline.Len(), true
}

// MirrorSnapshot returns the current pool snapshot for (chainID, poolID).
func (c *Controller) MirrorSnapshot(chainID evmarb.ChainID, poolID evmarb.PoolID) (evmarb.Pool, bool) {
	rt, ok := c.chain(chainID)
	if !ok {
		return evmarb.Pool{}, false
	}
	return rt.Mirror.Get(poolID)
}

// Run starts every registered chain's event loop and blocks until ctx is
// canceled.
func (c *Controller) Run(ctx context.Context) {
	c.mu.RLock()
	runtimes := make([]*ChainRuntime, 0, len(c.chains))
	for _, rt := range c.chains {
		runtimes = append(runtimes, rt)
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for _, rt := range runtimes {
		wg.Add(1)
		go func(rt *ChainRuntime) {
			defer wg.Done()
			rt.Run(ctx)
		}(rt)
	}
	wg.Wait()
}
