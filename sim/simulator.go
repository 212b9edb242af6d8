package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/paths"
	"github.com/encodeous/dvsim/perf"
	"github.com/encodeous/dvsim/state"
	"github.com/google/btree"
)

// ErrEventBudget is returned when a run processes more events than the scenario allows, which usually
// means the nodes are counting to infinity.
var ErrEventBudget = errors.New("event budget exhausted")

type eventKind int

const (
	deliverEvent eventKind = iota
	linkEvent
)

type event struct {
	at     float64
	seq    uint64
	kind   eventKind
	update state.Update
	change state.LinkChangeCfg
}

func eventLess(a, b *event) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.seq < b.seq
}

type Stats struct {
	Events      int
	Delivered   int
	Sent        int
	LinkChanges int
	EndTime     float64
}

// Simulator runs every node on a single goroutine against a virtual clock. Events with the same
// timestamp are processed in the order they were scheduled, so a run is fully determined by its
// scenario and seed.
type Simulator struct {
	Cfg   state.ScenarioCfg
	Log   *slog.Logger
	Nodes []*core.RoutingNode
	Stats Stats

	queue       *btree.BTreeG[*event]
	now         float64
	seq         uint64
	rng         *rand.Rand
	lastArrival map[state.Pair[state.NodeId, state.NodeId]]float64
	initial     []state.CostVector
	current     []state.CostVector
}

type simNet struct {
	nodeLog
	sim *Simulator
}

func (n simNet) NumNodes() int {
	return n.sim.Cfg.Nodes
}

func (n simNet) Infinity() state.Metric {
	return n.sim.Cfg.Infinity
}

func (n simNet) PoisonReverse() bool {
	return n.sim.Cfg.PoisonReverse
}

func (n simNet) Now() float64 {
	return n.sim.now
}

func (n simNet) Send(u state.Update) {
	n.sim.send(u)
}

// NewSimulator creates every node, which queues the initial announcements, and schedules the
// scenario's link changes. cfg must already be expanded and validated.
func NewSimulator(cfg state.ScenarioCfg, log *slog.Logger, obs core.Observer) *Simulator {
	s := &Simulator{
		Cfg:         cfg,
		Log:         log,
		queue:       btree.NewG[*event](2, eventLess),
		rng:         rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		lastArrival: make(map[state.Pair[state.NodeId, state.NodeId]]float64),
		initial:     cfg.CostMatrix(),
		current:     cfg.CostMatrix(),
	}
	for i := range cfg.Nodes {
		id := state.NodeId(i)
		net := simNet{newNodeLog(log, id), s}
		s.Nodes = append(s.Nodes, core.NewRoutingNode(id, s.initial[i].Clone(), net, obs))
	}
	for _, change := range cfg.Changes {
		s.push(&event{at: change.At, kind: linkEvent, change: change})
	}
	return s
}

func (s *Simulator) Now() float64 {
	return s.now
}

func (s *Simulator) push(e *event) {
	e.seq = s.seq
	s.seq++
	s.queue.ReplaceOrInsert(e)
}

func (s *Simulator) send(u state.Update) {
	delay := s.Cfg.LinkDelay(u.Source, u.Dest)
	if s.Cfg.Jitter > 0 {
		delay += s.rng.Float64() * s.Cfg.Jitter
	}
	at := s.now + delay

	// updates between a pair of nodes are never reordered
	key := state.Pair[state.NodeId, state.NodeId]{V1: u.Source, V2: u.Dest}
	if last, ok := s.lastArrival[key]; ok && at < last {
		at = last
	}
	s.lastArrival[key] = at

	s.Stats.Sent++
	s.push(&event{at: at, kind: deliverEvent, update: u.Clone()})
}

// Pending returns the number of queued events.
func (s *Simulator) Pending() int {
	return s.queue.Len()
}

// Step processes the next event. It returns false if there is nothing left to do.
func (s *Simulator) Step() bool {
	e, ok := s.queue.DeleteMin()
	if !ok {
		return false
	}
	s.now = e.at
	s.Stats.Events++
	s.Stats.EndTime = s.now

	switch e.kind {
	case deliverEvent:
		s.Stats.Delivered++
		perf.UpdatesDelivered.Add(1)
		if state.DBG_log_updates {
			s.Log.Debug("deliver", "update", e.update, "time", s.now)
		}
		s.Nodes[e.update.Dest].ReceiveUpdate(e.update)
	case linkEvent:
		s.Stats.LinkChanges++
		s.applyChange(e.change)
	}
	return true
}

func (s *Simulator) applyChange(c state.LinkChangeCfg) {
	s.Log.Info("link cost changed", "from", c.From, "to", c.To, "cost", c.Cost, "one_way", c.OneWay, "time", s.now)
	cost := c.Cost.Normalise(s.Cfg.Infinity)
	s.current[c.From][c.To] = cost
	s.Nodes[c.From].UpdateLinkCost(c.To, cost)
	if !c.OneWay {
		s.current[c.To][c.From] = cost
		s.Nodes[c.To].UpdateLinkCost(c.From, cost)
	}
}

// Run processes events until the queue is empty.
func (s *Simulator) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		if s.Stats.Events >= s.Cfg.MaxEvents && s.queue.Len() > 0 {
			return fmt.Errorf("%w after %d events at time %v", ErrEventBudget, s.Stats.Events, s.now)
		}
		if !s.Step() {
			return nil
		}
	}
}

// RunUntil processes every event scheduled at or before t.
func (s *Simulator) RunUntil(ctx context.Context, t float64) error {
	for {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		next, ok := s.queue.Min()
		if !ok || next.at > t {
			return nil
		}
		if s.Stats.Events >= s.Cfg.MaxEvents {
			return fmt.Errorf("%w after %d events at time %v", ErrEventBudget, s.Stats.Events, s.now)
		}
		s.Step()
	}
}

// Tables returns the current distance vector of every node.
func (s *Simulator) Tables() []state.CostVector {
	return Tables(s.Nodes)
}

// Expected returns the costs the nodes should converge to under the current link costs.
func (s *Simulator) Expected() []state.CostVector {
	return paths.Solve(s.initial, s.current, s.Cfg.Infinity)
}

// Verify compares every node's distance vector against the reference solver.
func (s *Simulator) Verify() []paths.Mismatch {
	return paths.Compare(s.Tables(), s.Expected())
}
