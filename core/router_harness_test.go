package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/dvsim/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// RouterHarness runs a set of nodes over a single FIFO queue with no notion of delay.
type RouterHarness struct {
	Nodes  []*RoutingNode
	Poison bool
	Inf    state.Metric
	// OnSend sees every update sent by a fully constructed node, before it is queued.
	OnSend func(from *RoutingNode, u state.Update)

	initial   []state.CostVector
	queue     []state.Update
	actions   []HarnessEvent
	snapshots []*Snapshot
	delivered int
	time      float64
}

type harnessNet struct {
	h  *RouterHarness
	id state.NodeId
}

func (n harnessNet) NumNodes() int {
	return len(n.h.initial)
}

func (n harnessNet) Infinity() state.Metric {
	return n.h.Inf
}

func (n harnessNet) PoisonReverse() bool {
	return n.h.Poison
}

func (n harnessNet) Now() float64 {
	return n.h.time
}

func (n harnessNet) Send(u state.Update) {
	if n.h.OnSend != nil && int(u.Source) < len(n.h.Nodes) {
		n.h.OnSend(n.h.Nodes[u.Source], u)
	}
	n.h.queue = append(n.h.queue, u)
	n.h.actions = append(n.h.actions, MakeEvent("SEND", u.Source, u.Dest, u.Vector))
}

func (n harnessNet) Log(event RouterEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, n.id, event, desc)
	x = append(x, args...)
	n.h.actions = append(n.h.actions, MakeEvent("LOG", x...))
}

func (h *RouterHarness) Observe(s *Snapshot) {
	h.snapshots = append(h.snapshots, s)
}

func NewHarness(costs []state.CostVector, inf state.Metric, poison bool) *RouterHarness {
	h := &RouterHarness{
		Poison:  poison,
		Inf:     inf,
		initial: costs,
	}
	for i, row := range costs {
		h.Nodes = append(h.Nodes, NewRoutingNode(state.NodeId(i), row.Clone(), harnessNet{h, state.NodeId(i)}, h))
	}
	return h
}

func NewScenarioHarness(cfg state.ScenarioCfg) *RouterHarness {
	state.ExpandScenario(&cfg)
	return NewHarness(cfg.CostMatrix(), cfg.Infinity, cfg.PoisonReverse)
}

// Step delivers the oldest queued update. It returns false if the queue is empty.
func (h *RouterHarness) Step() bool {
	if len(h.queue) == 0 {
		return false
	}
	u := h.queue[0]
	h.queue = h.queue[1:]
	h.time++
	h.delivered++
	h.Nodes[u.Dest].ReceiveUpdate(u)
	return true
}

// Drain delivers updates until the queue is empty or limit deliveries have been made.
func (h *RouterHarness) Drain(t *testing.T, limit int) int {
	start := h.delivered
	for h.Step() {
		if h.delivered-start > limit {
			t.Fatalf("no convergence after %d deliveries", limit)
		}
	}
	return h.delivered - start
}

// CheckPoisonOnSend fails t whenever a node sends z a finite cost to a destination it reaches through z.
func (h *RouterHarness) CheckPoisonOnSend(t *testing.T) {
	h.OnSend = func(from *RoutingNode, u state.Update) {
		for y, r := range from.route {
			if state.NodeId(y) != u.Dest && r == u.Dest && u.Vector[y] != h.Inf {
				t.Errorf("node %d sent %v to %d but routes to %d through it", u.Source, u.Vector, u.Dest, y)
			}
		}
	}
}

// SetLink changes the cost of a link on both ends.
func (h *RouterHarness) SetLink(a, b state.NodeId, cost state.Metric) {
	h.Nodes[a].UpdateLinkCost(b, cost)
	h.Nodes[b].UpdateLinkCost(a, cost)
}

func (h *RouterHarness) Costs() []state.CostVector {
	out := make([]state.CostVector, len(h.Nodes))
	for i, n := range h.Nodes {
		out[i] = n.Snapshot().Cost
	}
	return out
}

func (h *RouterHarness) Routes() [][]state.NodeId {
	out := make([][]state.NodeId, len(h.Nodes))
	for i, n := range h.Nodes {
		out[i] = n.Snapshot().Route
	}
	return out
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns and clears the recorded sends.
func (h *RouterHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		}
	}

	h.actions = make([]HarnessEvent, 0)
	return x
}

// GetLogs returns and clears the recorded log events.
func (h *RouterHarness) GetLogs() HarnessEvents {
	x := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			x = append(x, action)
		}
	}

	h.actions = make([]HarnessEvent, 0)
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}
