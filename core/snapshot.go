package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/encodeous/dvsim/state"
)

// Snapshot is an immutable view of a node's tables at a point in time.
type Snapshot struct {
	Node       state.NodeId
	Time       float64
	Infinity   state.Metric
	Neighbours []state.NodeId
	Rows       []state.CostVector // Rows[i] is the last vector received from Neighbours[i]
	Cost       state.CostVector
	Route      []state.NodeId
}

// CostTo returns the node's current cost to dst.
func (s *Snapshot) CostTo(dst state.NodeId) state.Metric {
	return s.Cost[dst]
}

// NextHop returns the neighbour used to reach dst, or state.NoRoute.
func (s *Snapshot) NextHop(dst state.NodeId) state.NodeId {
	return s.Route[dst]
}

// Reachable reports whether dst has a finite cost.
func (s *Snapshot) Reachable(dst state.NodeId) bool {
	return s.Cost[dst] < s.Infinity
}

// Row returns the vector last received from neighbour n, or nil if n is not a neighbour.
func (s *Snapshot) Row(n state.NodeId) state.CostVector {
	for i, neigh := range s.Neighbours {
		if neigh == n {
			return s.Rows[i]
		}
	}
	return nil
}

func formatTime(t float64) string {
	str := strconv.FormatFloat(t, 'f', -1, 64)
	if !strings.ContainsAny(str, ".eEnN") {
		str += ".0"
	}
	return str
}

func (s *Snapshot) header() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%7s |", "dst"))
	for x := range s.Cost {
		sb.WriteString(fmt.Sprintf("%5d", x))
	}
	return sb.String()
}

func costRow(label string, vec state.CostVector) string {
	sb := strings.Builder{}
	sb.WriteString(label)
	for _, m := range vec {
		sb.WriteString(fmt.Sprintf("%5d", m))
	}
	return sb.String()
}

// Lines renders the snapshot as fixed width text, one table line per entry.
func (s *Snapshot) Lines() []string {
	header := s.header()
	sep := strings.Repeat("-", len(header))

	lines := []string{
		fmt.Sprintf("Current table for %d  at time %s", s.Node, formatTime(s.Time)),
		"",
		"Distance table:",
		header,
		sep,
	}
	for i, neigh := range s.Neighbours {
		lines = append(lines, costRow(fmt.Sprintf(" nbr %2d |", neigh), s.Rows[i]))
	}
	lines = append(lines,
		"",
		"Our distance vector and routes:",
		header,
		sep,
		costRow(" cost   |", s.Cost),
	)

	sb := strings.Builder{}
	sb.WriteString(" route  |")
	for _, nh := range s.Route {
		sb.WriteString(fmt.Sprintf("%5s", nh))
	}
	lines = append(lines, sb.String(), "", "")
	return lines
}

func (s *Snapshot) String() string {
	return strings.Join(s.Lines(), "\n")
}
