package state

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type NodeId int

func (n NodeId) String() string {
	if n == NoRoute {
		return "-"
	}
	return strconv.Itoa(int(n))
}

// Metric is the cost of a link or a path. Metrics are only ever combined with AddMetric.
type Metric uint32

// AddMetric adds two metrics, saturating at inf.
func AddMetric(a, b, inf Metric) Metric {
	if a >= inf || b >= inf {
		return inf
	}
	sum := uint64(a) + uint64(b)
	if sum >= uint64(inf) {
		return inf
	}
	return Metric(sum)
}

// Normalise clamps m to inf.
func (m Metric) Normalise(inf Metric) Metric {
	return min(m, inf)
}

// CostVector holds one metric per destination, indexed by NodeId.
type CostVector []Metric

func NewCostVector(n int, fill Metric) CostVector {
	v := make(CostVector, n)
	for i := range v {
		v[i] = fill
	}
	return v
}

func (v CostVector) Clone() CostVector {
	return slices.Clone(v)
}

func (v CostVector) Equal(o CostVector) bool {
	return slices.Equal(v, o)
}

// Normalised returns a copy of v with every entry clamped to inf.
func (v CostVector) Normalised(inf Metric) CostVector {
	out := make(CostVector, len(v))
	for i, m := range v {
		out[i] = m.Normalise(inf)
	}
	return out
}

func (v CostVector) String() string {
	parts := make([]string, len(v))
	for i, m := range v {
		parts[i] = strconv.FormatUint(uint64(m), 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Update is a distance vector sent from Source to its neighbour Dest.
// An Update is never mutated after it is handed to the network.
type Update struct {
	Source NodeId
	Dest   NodeId
	Vector CostVector
}

func (u Update) String() string {
	return fmt.Sprintf("(src: %d, dst: %d, vec: %s)", u.Source, u.Dest, u.Vector)
}

// Clone returns an update that shares no memory with u.
func (u Update) Clone() Update {
	u.Vector = u.Vector.Clone()
	return u
}
