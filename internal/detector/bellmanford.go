package detector

import (
	"math"

	"github.com/ethereum/go-ethereum/common"

	evmarb "evmarb"
)

// negativeCycleSearch runs Bellman-Ford from source: relax every edge
// |V|-1 times, then one more pass to find vertices whose incoming edge
// still improves. Each such vertex lies on or downstream of a negative
// cycle; predecessors are traced backward, truncating at the first
// repeated vertex, to recover the cycle itself.
func negativeCycleSearch(vertices []common.Address, edges []evmarb.Edge, source common.Address) []cycle {
	dist := make(map[common.Address]float64, len(vertices))
	pred := make(map[common.Address]evmarb.Edge, len(vertices))
	for _, v := range vertices {
		dist[v] = math.Inf(1)
	}
	dist[source] = 0

	relax := func() bool {
		improved := false
		for _, e := range edges {
			if dist[e.From] == math.Inf(1) {
				continue
			}
			if cand := dist[e.From] + e.Weight; cand < dist[e.To] {
				dist[e.To] = cand
				pred[e.To] = e
				improved = true
			}
		}
		return improved
	}

	for i := 0; i < len(vertices)-1; i++ {
		if !relax() {
			break
		}
	}

	var cycles []cycle
	flagged := make(map[common.Address]bool)
	for _, e := range edges {
		if dist[e.From] == math.Inf(1) {
			continue
		}
		if dist[e.From]+e.Weight >= dist[e.To] {
			continue
		}
		if flagged[e.To] {
			continue
		}
		flagged[e.To] = true
		if c, ok := traceCycle(pred, e.To); ok {
			cycles = append(cycles, c)
		}
	}
	return cycles
}

// traceCycle walks predecessor pointers backward from start until a vertex
// repeats, then rebuilds the forward (From->To) edge sequence of that
// repeated loop.
func traceCycle(pred map[common.Address]evmarb.Edge, start common.Address) (cycle, bool) {
	visitedIndex := make(map[common.Address]int)
	var visitedOrder []common.Address
	current := start

	for {
		if idx, seen := visitedIndex[current]; seen {
			n := len(visitedOrder)
			edges := make([]evmarb.Edge, 0, n-idx)
			for i := n - 1; i >= idx; i-- {
				edges = append(edges, pred[visitedOrder[i]])
			}
			return cycle{edges: edges}, true
		}

		e, ok := pred[current]
		if !ok {
			return cycle{}, false
		}
		visitedIndex[current] = len(visitedOrder)
		visitedOrder = append(visitedOrder, current)
		current = e.From

		if len(visitedOrder) > len(pred)+2 {
			return cycle{}, false
		}
	}
}
