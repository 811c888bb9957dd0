// Package mirror applies chain-client event deliveries to the pool
// snapshot table, enforcing strictly increasing per-pool sequence order
// and notifying the Pricing Graph of each successful application. One
// Mirror instance is the single writer for one chain.
package mirror

import (
	"fmt"
	"sync"

	evmarb "evmarb"
	"evmarb/errs"

	"go.uber.org/zap"
)

// UpdateNotifier receives (pool-id, new-snapshot) after every successful
// apply, the hook the Pricing Graph hangs its edge-replacement off of.
type UpdateNotifier func(id evmarb.PoolID, pool evmarb.Pool)

// Mirror owns the pool snapshot table for exactly one chain.
type Mirror struct {
	mu       sync.Mutex
	pools    map[evmarb.PoolID]evmarb.Pool
	logger   *zap.Logger
	notify   UpdateNotifier
	lastDiff Diff
}

// New constructs an empty Mirror. notify may be nil if no downstream
// listener is wired yet (useful in tests).
func New(logger *zap.Logger, notify UpdateNotifier) *Mirror {
	return &Mirror{
		pools:  make(map[evmarb.PoolID]evmarb.Pool),
		logger: logger,
		notify: notify,
	}
}

// Seed registers a pool's initial snapshot at discovery time, bypassing
// the sequence check since there is no prior snapshot to compare against.
func (m *Mirror) Seed(pool evmarb.Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[pool.ID] = *pool.Clone()
}

// Apply applies an incoming snapshot update for pool.ID, enforcing strict
// sequence monotonicity. Returns (true, nil) if applied, or (false, nil)
// if discarded as a stale out-of-order delivery (not an error). Apply
// runs no other checks on the update, so its error result is always nil.
func (m *Mirror) Apply(update evmarb.Pool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.pools[update.ID]
	if exists && update.Sequence.Compare(current.Sequence) <= 0 {
		m.logger.Debug("discarding stale pool update",
			zap.Any("poolId", update.ID), zap.Any("incomingSeq", update.Sequence), zap.Any("currentSeq", current.Sequence))
		return false, nil
	}

	applied := *update.Clone()
	m.pools[update.ID] = applied

	if exists {
		m.lastDiff = Diff{Updates: []evmarb.Pool{applied}}
	} else {
		m.lastDiff = Diff{Additions: []evmarb.Pool{applied}}
	}

	if m.notify != nil {
		m.notify(update.ID, *applied.Clone())
	}
	return true, nil
}

// LastDiff returns the classification of the most recently applied
// update, for observability. The execution-history ring does not read it.
func (m *Mirror) LastDiff() Diff {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDiff
}

// Get returns a defensive copy of the current snapshot for id.
func (m *Mirror) Get(id evmarb.PoolID) (evmarb.Pool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return evmarb.Pool{}, false
	}
	return *p.Clone(), true
}

// Snapshot returns a defensive copy of every pool currently mirrored.
func (m *Mirror) Snapshot() []evmarb.Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]evmarb.Pool, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, *p.Clone())
	}
	return out
}

// DecodeError wraps a per-event decode failure, classified so the caller
// can log and drop it without suspending processing of other events.
func DecodeError(poolAddr string, cause error) error {
	return fmt.Errorf("failed to decode event for pool %s: %w: %v", poolAddr, errs.ErrInvariantViolation, cause)
}
