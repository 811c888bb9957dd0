package pricing

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	evmarb "evmarb"
)

// Graph is the directed multigraph of tokens for exactly one chain. Edge
// replacement for a pool is atomic: both directions are computed, then
// swapped in under Graph's mutex before the next read, so no reader ever
// observes one direction updated and the other stale for the same pool.
type Graph struct {
	mu          sync.RWMutex
	chainID     evmarb.ChainID
	byPool      map[evmarb.PoolID][2]evmarb.Edge
	adjacency   map[common.Address][]evmarb.Edge
	refAmount   *big.Int
}

// DefaultReferenceInput is the reference input the rate samples are
// evaluated at: one whole token at 18 decimals. Weight sampling only
// needs a small nonzero probe; the executable quote recomputes with the
// true input amount.
var DefaultReferenceInput = big.NewInt(1_000_000_000_000_000_000)

// New constructs an empty Graph for chainID.
func New(chainID evmarb.ChainID) *Graph {
	return &Graph{
		chainID:   chainID,
		byPool:    make(map[evmarb.PoolID][2]evmarb.Edge),
		adjacency: make(map[common.Address][]evmarb.Edge),
		refAmount: DefaultReferenceInput,
	}
}

// ApplyPoolUpdate recomputes both directed edges for pool and atomically
// swaps them into the graph, replacing whatever edges previously existed
// for that pool. This is the Mirror's UpdateNotifier hook.
func (g *Graph) ApplyPoolUpdate(id evmarb.PoolID, pool evmarb.Pool) error {
	forward, backward, err := DeriveEdges(pool, g.refAmount, g.refAmount)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if old, existed := g.byPool[id]; existed {
		g.removeEdgeLocked(old[0])
		g.removeEdgeLocked(old[1])
	}
	g.byPool[id] = [2]evmarb.Edge{forward, backward}
	g.addEdgeLocked(forward)
	g.addEdgeLocked(backward)
	return nil
}

func (g *Graph) addEdgeLocked(e evmarb.Edge) {
	g.adjacency[e.From] = append(g.adjacency[e.From], e)
}

func (g *Graph) removeEdgeLocked(e evmarb.Edge) {
	edges := g.adjacency[e.From]
	for i, candidate := range edges {
		if candidate.PoolID == e.PoolID && candidate.From == e.From && candidate.To == e.To {
			g.adjacency[e.From] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

// EdgesFrom returns a defensive copy of every edge whose source is token.
func (g *Graph) EdgesFrom(token common.Address) []evmarb.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]evmarb.Edge, len(g.adjacency[token]))
	copy(out, g.adjacency[token])
	return out
}

// Vertices returns every token that is the source or destination of at
// least one present edge.
func (g *Graph) Vertices() []common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[common.Address]struct{})
	for from, edges := range g.adjacency {
		if len(edges) > 0 {
			seen[from] = struct{}{}
		}
		for _, e := range edges {
			seen[e.To] = struct{}{}
		}
	}
	out := make([]common.Address, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	return out
}

// AllEdges returns a defensive copy of every edge currently in the graph.
func (g *Graph) AllEdges() []evmarb.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []evmarb.Edge
	for _, edges := range g.adjacency {
		out = append(out, edges...)
	}
	return out
}

// EdgePair returns the two directions currently registered for pool id.
func (g *Graph) EdgePair(id evmarb.PoolID) ([2]evmarb.Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pair, ok := g.byPool[id]
	return pair, ok
}
