// Package detector searches the pricing graph for cyclic arbitrage
// opportunities, combining a Bellman-Ford negative-cycle search with a
// bounded-depth cycle enumeration and publishing promoted candidates on a
// buffered channel.
package detector

import (
	"github.com/ethereum/go-ethereum/common"

	evmarb "evmarb"
)

// cycle is a candidate arbitrage loop: an ordered sequence of edges whose
// first From equals its last To.
type cycle struct {
	edges []evmarb.Edge
}

func (c cycle) source() common.Address {
	return c.edges[0].From
}

func (c cycle) length() int {
	return len(c.edges)
}

// rotation returns c rotated to start at edge i.
func (c cycle) rotation(i int) cycle {
	out := make([]evmarb.Edge, 0, len(c.edges))
	out = append(out, c.edges[i:]...)
	out = append(out, c.edges[:i]...)
	return cycle{edges: out}
}

// canonical rotates c to start at start when the loop passes through it,
// else to its lexicographically smallest rotation. The same loop
// recovered from different vertices then dedups to one candidate instead
// of one per rotation.
func (c cycle) canonical(start common.Address) cycle {
	for i, e := range c.edges {
		if e.From == start {
			return c.rotation(i)
		}
	}
	best, bestKey := 0, c.rotation(0).key()
	for i := 1; i < len(c.edges); i++ {
		if k := c.rotation(i).key(); k < bestKey {
			best, bestKey = i, k
		}
	}
	return c.rotation(best)
}

// key identifies a cycle by its ordered (pool, direction) sequence, so
// the union of both searches can be deduplicated.
func (c cycle) key() string {
	out := make([]byte, 0, len(c.edges)*42)
	for _, e := range c.edges {
		out = append(out, e.PoolID.Address.Bytes()...)
		out = append(out, e.From.Bytes()...)
	}
	return string(out)
}

