package core

import (
	"fmt"
	"time"

	"github.com/encodeous/dvsim/perf"
	"github.com/encodeous/dvsim/state"
)

type RouterEvent int

// trace events

const (
	RouteImproved RouterEvent = iota
	RouteWorsened
	RouteRetracted
	NextHopChanged
	UpdateIgnored
)

// warn events

const (
	InconsistentState RouterEvent = iota + 1000
	FixedNeighbourSet
)

func (e RouterEvent) String() string {
	switch e {
	case RouteImproved:
		return "RouteImproved"
	case RouteWorsened:
		return "RouteWorsened"
	case RouteRetracted:
		return "RouteRetracted"
	case NextHopChanged:
		return "NextHopChanged"
	case UpdateIgnored:
		return "UpdateIgnored"
	case InconsistentState:
		return "InconsistentState"
	case FixedNeighbourSet:
		return "FixedNeighbourSet"
	}
	return fmt.Sprintf("RouterEvent(%d)", int(e))
}

// IsWarning reports whether the event indicates a problem rather than normal progress.
func (e RouterEvent) IsWarning() bool {
	return e >= InconsistentState
}

// Network is the substrate a RoutingNode runs on. Every node gets its own Network value.
type Network interface {
	NumNodes() int
	// Infinity is the cost sentinel of the run. All metrics saturate at this value.
	Infinity() state.Metric
	// PoisonReverse is read once per recompute.
	PoisonReverse() bool
	// Now returns the logical time, used only for observability.
	Now() float64
	// Send hands an update to the network, which eventually calls ReceiveUpdate on u.Dest.
	// The network takes ownership of u.
	Send(u state.Update)
	Log(event RouterEvent, desc string, args ...any)
}

// RoutingNode holds the distance-vector state of a single node.
// A RoutingNode is not safe for concurrent use; its host must deliver events one at a time.
type RoutingNode struct {
	id  state.NodeId
	net Network
	obs Observer
	inf state.Metric

	costs      state.CostVector
	neighbours []state.NodeId // fixed at construction, ascending
	table      []state.CostVector
	route      []state.NodeId
}

// NewRoutingNode seeds the node from its direct link costs and announces them to every neighbour.
// It panics if costs does not have one entry per node.
func NewRoutingNode(id state.NodeId, costs state.CostVector, net Network, obs Observer) *RoutingNode {
	num := net.NumNodes()
	if err := state.NodeValidator(id, num); err != nil {
		panic(err)
	}
	if len(costs) != num {
		panic(fmt.Sprintf("node %d: cost vector has %d entries, expected %d", id, len(costs), num))
	}
	if obs == nil {
		obs = Discard
	}
	inf := net.Infinity()
	n := &RoutingNode{
		id:    id,
		net:   net,
		obs:   obs,
		inf:   inf,
		costs: costs.Normalised(inf),
		table: make([]state.CostVector, num),
		route: make([]state.NodeId, num),
	}
	for x := range num {
		if x == int(id) {
			n.table[x] = n.costs.Clone()
		} else {
			n.table[x] = state.NewCostVector(num, inf)
		}
		if n.costs[x] < inf {
			n.route[x] = state.NodeId(x)
			if x != int(id) {
				n.neighbours = append(n.neighbours, state.NodeId(x))
			}
		} else {
			n.route[x] = state.NoRoute
		}
	}

	for _, neigh := range n.neighbours {
		n.send(neigh, n.costs.Clone())
	}
	n.obs.Observe(n.Snapshot())
	return n
}

func (n *RoutingNode) Id() state.NodeId {
	return n.id
}

// Neighbours returns the neighbour set chosen at construction.
func (n *RoutingNode) Neighbours() []state.NodeId {
	return append([]state.NodeId(nil), n.neighbours...)
}

// Cost returns the current cost to dst.
func (n *RoutingNode) Cost(dst state.NodeId) state.Metric {
	return n.table[n.id][dst]
}

// NextHop returns the neighbour used to reach dst, or state.NoRoute.
func (n *RoutingNode) NextHop(dst state.NodeId) state.NodeId {
	return n.route[dst]
}

func (n *RoutingNode) DistanceVector() state.CostVector {
	return n.table[n.id].Clone()
}

func (n *RoutingNode) Routes() []state.NodeId {
	return append([]state.NodeId(nil), n.route...)
}

// Row returns a copy of the last vector received from neighbour id, or nil if id is not a neighbour.
func (n *RoutingNode) Row(id state.NodeId) state.CostVector {
	if !n.isNeighbour(id) {
		return nil
	}
	return n.table[id].Clone()
}

func (n *RoutingNode) isNeighbour(id state.NodeId) bool {
	for _, neigh := range n.neighbours {
		if neigh == id {
			return true
		}
	}
	return false
}

// ReceiveUpdate stores the vector of a neighbour and recomputes if it differs from the last one received.
func (n *RoutingNode) ReceiveUpdate(u state.Update) {
	switch {
	case u.Dest != n.id:
		n.net.Log(InconsistentState, "received update addressed to another node", "update", u)
		return
	case u.Source == n.id || state.NodeValidator(u.Source, len(n.table)) != nil:
		n.net.Log(InconsistentState, "received update from invalid source", "update", u)
		return
	case !n.isNeighbour(u.Source):
		n.net.Log(InconsistentState, "received update from unknown neighbour", "from", u.Source)
		return
	case len(u.Vector) != len(n.table):
		n.net.Log(InconsistentState, "received update with wrong vector length", "from", u.Source, "len", len(u.Vector))
		return
	}

	vec := u.Vector.Normalised(n.inf)
	if vec.Equal(n.table[u.Source]) {
		perf.UpdatesIgnored.Add(1)
		n.net.Log(UpdateIgnored, "update unchanged", "from", u.Source)
		return
	}
	n.table[u.Source] = vec
	n.Recompute()
}

// UpdateLinkCost changes the direct cost to dest. The neighbour set is not recomputed.
func (n *RoutingNode) UpdateLinkCost(dest state.NodeId, cost state.Metric) {
	if err := state.NodeValidator(dest, len(n.costs)); err != nil {
		panic(err)
	}
	if dest == n.id {
		panic(fmt.Sprintf("node %d: cannot change the cost of a link to itself", n.id))
	}
	cost = cost.Normalise(n.inf)
	if cost < n.inf && !n.isNeighbour(dest) {
		// the new link is only used as a direct route, it never carries vectors
		n.net.Log(FixedNeighbourSet, "link to non-neighbour came up, neighbour set unchanged",
			"dest", dest, "cost", cost)
	} else if cost == n.inf && n.isNeighbour(dest) {
		n.net.Log(FixedNeighbourSet, "link to neighbour went down, it still receives vectors",
			"dest", dest)
	}
	n.costs[dest] = cost
	n.Recompute()
}

// Recompute runs one Bellman-Ford relaxation over the stored neighbour vectors and, if the
// distance vector changed, sends it to every neighbour.
func (n *RoutingNode) Recompute() {
	start := time.Now()
	defer func() {
		perf.RecomputeLatency.Add(float64(time.Since(start).Microseconds()))
	}()
	perf.Recomputes.Add(1)

	own := n.table[n.id]
	poison := n.net.PoisonReverse()
	costChanged, hopChanged := false, false

	for x := range own {
		dst := state.NodeId(x)
		if dst == n.id {
			continue
		}

		// start by assuming the direct link is best
		best, nh := n.costs[x], dst
		for _, neigh := range n.neighbours {
			if neigh == dst {
				continue
			}
			if c := state.AddMetric(n.costs[neigh], n.table[neigh][x], n.inf); c < best {
				best, nh = c, neigh
			}
		}
		// on a tie keep the current next hop
		if cur := n.route[x]; cur != nh && cur != state.NoRoute && n.costVia(cur, dst) == best {
			nh = cur
		}
		if best == n.inf {
			nh = state.NoRoute
		}

		if best != own[x] {
			costChanged = true
			n.logChange(dst, own[x], best, nh)
			perf.RouteChanges.Add(1)
		} else if nh != n.route[x] {
			hopChanged = true
			n.net.Log(NextHopChanged, "new next hop",
				"dst", dst, "old", n.route[x], "via", nh, "cost", best)
		}
		own[x] = best
		n.route[x] = nh
	}

	// a next hop change moves what poison reverse hides
	if costChanged || poison && hopChanged {
		for _, z := range n.neighbours {
			vec := own.Clone()
			if poison {
				for y := range vec {
					// our path to y goes through z, so tell z we cannot reach y
					if state.NodeId(y) != z && n.route[y] == z {
						vec[y] = n.inf
					}
				}
			}
			n.send(z, vec)
		}
	}
	n.obs.Observe(n.Snapshot())
}

// costVia is the cost to dst when forwarding through hop, which is dst itself for the direct link.
func (n *RoutingNode) costVia(hop, dst state.NodeId) state.Metric {
	if hop == dst {
		return n.costs[dst]
	}
	return state.AddMetric(n.costs[hop], n.table[hop][dst], n.inf)
}

func (n *RoutingNode) logChange(dst state.NodeId, old, cost state.Metric, nh state.NodeId) {
	args := []any{"dst", dst, "via", nh, "cost", cost, "old", old, "time", n.net.Now()}
	switch {
	case cost == n.inf:
		n.net.Log(RouteRetracted, "destination unreachable", args...)
	case cost < old:
		n.net.Log(RouteImproved, "new lowest cost", args...)
	default:
		n.net.Log(RouteWorsened, "new lowest cost", args...)
	}
}

func (n *RoutingNode) send(to state.NodeId, vec state.CostVector) {
	perf.UpdatesSent.Add(1)
	n.net.Send(state.Update{Source: n.id, Dest: to, Vector: vec})
}

// Snapshot returns a copy of the node's tables.
func (n *RoutingNode) Snapshot() *Snapshot {
	s := &Snapshot{
		Node:       n.id,
		Time:       n.net.Now(),
		Infinity:   n.inf,
		Neighbours: n.Neighbours(),
		Rows:       make([]state.CostVector, len(n.neighbours)),
		Cost:       n.table[n.id].Clone(),
		Route:      append([]state.NodeId(nil), n.route...),
	}
	for i, neigh := range n.neighbours {
		s.Rows[i] = n.table[neigh].Clone()
	}
	return s
}
