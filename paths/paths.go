// Package paths computes reference shortest path costs for a topology, independently of the
// distributed algorithm, so that converged routing tables can be checked against them.
package paths

import (
	"github.com/encodeous/dvsim/state"
)

// Neighbours returns, for every node, the nodes it has a finite direct cost to.
func Neighbours(costs []state.CostVector, inf state.Metric) [][]state.NodeId {
	neighs := make([][]state.NodeId, len(costs))
	for i, row := range costs {
		for j, c := range row {
			if i != j && c < inf {
				neighs[i] = append(neighs[i], state.NodeId(j))
			}
		}
	}
	return neighs
}

// Solve returns the cost from every node to every other node.
//
// initial determines which nodes exchange vectors (the neighbour set is fixed when a node is
// created), current holds the link costs in effect. A node may reach a destination over any
// direct link with finite cost, but only relays through nodes that were neighbours initially.
// Costs saturate at inf.
func Solve(initial, current []state.CostVector, inf state.Metric) []state.CostVector {
	n := len(current)
	neighs := Neighbours(initial, inf)

	dist := make([]state.CostVector, n)
	for i := range dist {
		dist[i] = state.NewCostVector(n, inf)
		dist[i][i] = current[i][i].Normalise(inf)
	}

	// Bellman-Ford: at most n-1 edges on a shortest path, one more round to detect a fixed point
	for range n + 1 {
		changed := false
		for i := range n {
			for x := range n {
				if x == i {
					continue
				}
				best := current[i][x].Normalise(inf)
				for _, v := range neighs[i] {
					if int(v) == x {
						continue
					}
					if c := state.AddMetric(current[i][v], dist[v][x], inf); c < best {
						best = c
					}
				}
				if best != dist[i][x] {
					dist[i][x] = best
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	return dist
}

// SolveStatic is Solve for a topology whose link costs never changed.
func SolveStatic(costs []state.CostVector, inf state.Metric) []state.CostVector {
	return Solve(costs, costs, inf)
}

// Mismatch is a destination whose routed cost differs from the reference.
type Mismatch struct {
	Node state.NodeId
	Dest state.NodeId
	Got  state.Metric
	Want state.Metric
}

// Compare returns every entry of got that differs from want.
func Compare(got, want []state.CostVector) []Mismatch {
	var out []Mismatch
	for i := range want {
		for x := range want[i] {
			if got[i][x] != want[i][x] {
				out = append(out, Mismatch{
					Node: state.NodeId(i),
					Dest: state.NodeId(x),
					Got:  got[i][x],
					Want: want[i][x],
				})
			}
		}
	}
	return out
}
