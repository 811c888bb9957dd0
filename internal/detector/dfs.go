package detector

import (
	"github.com/ethereum/go-ethereum/common"

	evmarb "evmarb"
)

type visitedTriple struct {
	from, to common.Address
	pool     common.Address
}

// boundedCycleSearch enumerates cycles of length 2..maxDepth by DFS from
// source, rejecting paths that revisit an (edge-source, edge-destination,
// pool) triple. Every path returning to source is a candidate cycle. A
// two-hop round trip through the same pool is never a candidate: it only
// ever loses the fee twice.
func boundedCycleSearch(adjacency func(common.Address) []evmarb.Edge, source common.Address, maxDepth int) []cycle {
	var cycles []cycle
	visited := make(map[visitedTriple]bool)
	var path []evmarb.Edge

	var walk func(current common.Address, depth int)
	walk = func(current common.Address, depth int) {
		if depth >= maxDepth {
			return
		}
		for _, e := range adjacency(current) {
			triple := visitedTriple{from: e.From, to: e.To, pool: e.PoolID.Address}
			if visited[triple] {
				continue
			}

			if e.To == source && depth+1 >= 2 {
				if len(path) == 1 && path[0].PoolID == e.PoolID {
					continue
				}
				cycleEdges := make([]evmarb.Edge, len(path)+1)
				copy(cycleEdges, path)
				cycleEdges[len(path)] = e
				cycles = append(cycles, cycle{edges: cycleEdges})
				continue
			}

			visited[triple] = true
			path = append(path, e)
			walk(e.To, depth+1)
			path = path[:len(path)-1]
			delete(visited, triple)
		}
	}

	walk(source, 0)
	return cycles
}
