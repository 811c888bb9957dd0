package chainclient

import "sync"

// NonceManager is the per-chain single-writer nonce counter: initialized
// from the chain, advanced on reservation, rolled back when a submission
// never reached the chain.
type NonceManager struct {
	mu   sync.Mutex
	next uint64
}

// NewNonceManager seeds the counter from the chain's current pending nonce.
func NewNonceManager(seed uint64) *NonceManager {
	return &NonceManager{next: seed}
}

// Reserve returns the next nonce to use and advances the counter
// optimistically; call Rollback if submission fails before the chain
// accepts it, so a later retry does not skip a nonce.
func (n *NonceManager) Reserve() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.next
	n.next++
	return v
}

// Rollback reverts an optimistic reservation when submission never reached
// the chain (e.g. signing failure before SendTransaction).
func (n *NonceManager) Rollback(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.next == nonce+1 {
		n.next = nonce
	}
}

// Resync overwrites the counter from a freshly observed chain nonce, the
// recovery path after a nonce-conflict submission failure.
func (n *NonceManager) Resync(observed uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next = observed
}

// Peek returns the next nonce that would be reserved, without reserving it.
func (n *NonceManager) Peek() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next
}
