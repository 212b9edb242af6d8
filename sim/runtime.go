package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/paths"
	"github.com/encodeous/dvsim/perf"
	"github.com/encodeous/dvsim/state"
)

var errStopped = errors.New("runtime stopped")

// Runtime hosts every node on its own goroutine. Nodes only interact through encoded updates placed
// in each other's mailboxes.
type Runtime struct {
	Context context.Context
	Cancel  context.CancelCauseFunc
	Cfg     state.ScenarioCfg
	Log     *slog.Logger

	actors   []*actor
	inflight sync.WaitGroup
	running  sync.WaitGroup
	start    time.Time
	obs      core.Observer

	sent      atomic.Int64
	delivered atomic.Int64

	mu      sync.Mutex
	initial []state.CostVector
	current []state.CostVector
}

// actor owns a RoutingNode. Everything touching the node runs on the actor's goroutine.
type actor struct {
	nodeLog
	rt   *Runtime
	id   state.NodeId
	node *core.RoutingNode

	mu      sync.Mutex
	mailbox []func(*core.RoutingNode) error
	closed  bool
	wake    chan struct{}
}

func (a *actor) NumNodes() int {
	return a.rt.Cfg.Nodes
}

func (a *actor) Infinity() state.Metric {
	return a.rt.Cfg.Infinity
}

func (a *actor) PoisonReverse() bool {
	return a.rt.Cfg.PoisonReverse
}

func (a *actor) Now() float64 {
	return a.rt.Elapsed()
}

func (a *actor) Send(u state.Update) {
	b, err := u.MarshalBinary()
	if err != nil {
		a.rt.Cancel(fmt.Errorf("node %d: %w", a.id, err))
		return
	}
	perf.UpdateBytes.Add(float64(len(b)))
	a.rt.sent.Add(1)
	a.rt.actors[u.Dest].Dispatch(func(n *core.RoutingNode) error {
		var recv state.Update
		if err := recv.UnmarshalBinary(b); err != nil {
			return err
		}
		perf.UpdatesDelivered.Add(1)
		a.rt.delivered.Add(1)
		n.ReceiveUpdate(recv)
		return nil
	})
}

// Dispatch queues fun to run on the actor's goroutine. It never blocks.
func (a *actor) Dispatch(fun func(*core.RoutingNode) error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.rt.inflight.Add(1)
	a.mailbox = append(a.mailbox, fun)
	perf.MailboxDepth.Add(float64(len(a.mailbox)))
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *actor) take() []func(*core.RoutingNode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := min(len(a.mailbox), state.MailboxFlushBatch)
	batch := a.mailbox[:n:n]
	a.mailbox = a.mailbox[n:]
	return batch
}

func (a *actor) run(ctx context.Context) {
	defer a.rt.running.Done()
	defer a.close()
	for {
		select {
		case <-a.wake:
			for {
				batch := a.take()
				if len(batch) == 0 {
					break
				}
				for _, fun := range batch {
					a.handle(fun)
				}
				if ctx.Err() != nil {
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *actor) handle(fun func(*core.RoutingNode) error) {
	defer a.rt.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			a.rt.Cancel(fmt.Errorf("node %d: panic: %v", a.id, r))
		}
	}()
	start := time.Now()
	err := fun(a.node)
	if err != nil {
		a.log.Error("error occurred during dispatch", "error", err)
		a.rt.Cancel(fmt.Errorf("node %d: %w", a.id, err))
	}
	elapsed := time.Since(start)
	perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
	if elapsed > time.Millisecond*50 {
		a.log.Warn("dispatch took a long time!", "elapsed", elapsed)
	}
}

// close drops everything left in the mailbox so that waiters are released.
func (a *actor) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	for range a.mailbox {
		a.rt.inflight.Done()
	}
	a.mailbox = nil
}

type lockedObserver struct {
	mu  sync.Mutex
	obs core.Observer
}

func (o *lockedObserver) Observe(s *core.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs.Observe(s)
}

// NewRuntime creates every node and queues the initial announcements. No node runs until Start.
func NewRuntime(ctx context.Context, cfg state.ScenarioCfg, log *slog.Logger, obs core.Observer) *Runtime {
	ctx, cancel := context.WithCancelCause(ctx)
	if obs == nil {
		obs = core.Discard
	}
	rt := &Runtime{
		Context: ctx,
		Cancel:  cancel,
		Cfg:     cfg,
		Log:     log,
		start:   time.Now(),
		obs:     &lockedObserver{obs: obs},
		initial: cfg.CostMatrix(),
		current: cfg.CostMatrix(),
	}
	for i := range cfg.Nodes {
		id := state.NodeId(i)
		rt.actors = append(rt.actors, &actor{
			nodeLog: newNodeLog(log, id),
			rt:      rt,
			id:      id,
			wake:    make(chan struct{}, 1),
		})
	}
	for i, a := range rt.actors {
		a.node = core.NewRoutingNode(a.id, rt.initial[i].Clone(), a, rt.obs)
	}
	return rt
}

// Start runs one goroutine per node.
func (rt *Runtime) Start() {
	rt.Log.Debug("starting nodes", "nodes", len(rt.actors))
	for _, a := range rt.actors {
		rt.running.Add(1)
		go a.run(rt.Context)
		// wake up nodes that already have announcements queued
		select {
		case a.wake <- struct{}{}:
		default:
		}
	}
}

// WaitIdle blocks until no update is in flight, which means every node has converged, or until ctx
// or the runtime is cancelled. It returns the cancellation cause of the runtime if it is no longer running.
func (rt *Runtime) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		rt.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return context.Cause(rt.Context)
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-rt.Context.Done():
		<-done
		return context.Cause(rt.Context)
	}
}

// UpdateLinkCost changes the cost of the link from a to b on a's goroutine.
func (rt *Runtime) UpdateLinkCost(a, b state.NodeId, cost state.Metric) {
	cost = cost.Normalise(rt.Cfg.Infinity)
	rt.mu.Lock()
	rt.current[a][b] = cost
	rt.mu.Unlock()
	rt.actors[a].Dispatch(func(n *core.RoutingNode) error {
		n.UpdateLinkCost(b, cost)
		return nil
	})
}

// Run starts the nodes, waits for convergence, then applies the scenario's link changes in order,
// waiting for convergence after each distinct change time.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.Start()
	if err := rt.WaitIdle(ctx); err != nil {
		return err
	}
	changes := rt.Cfg.Changes
	for len(changes) > 0 {
		at := changes[0].At
		for len(changes) > 0 && changes[0].At == at {
			c := changes[0]
			changes = changes[1:]
			rt.Log.Info("link cost changed", "from", c.From, "to", c.To, "cost", c.Cost, "one_way", c.OneWay)
			rt.UpdateLinkCost(c.From, c.To, c.Cost)
			if !c.OneWay {
				rt.UpdateLinkCost(c.To, c.From, c.Cost)
			}
		}
		if err := rt.WaitIdle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Err returns the reason the runtime failed, or nil if it is running or was stopped normally.
func (rt *Runtime) Err() error {
	err := context.Cause(rt.Context)
	if errors.Is(err, errStopped) {
		return nil
	}
	return err
}

// Stop cancels every node and waits for their goroutines to exit.
func (rt *Runtime) Stop() error {
	rt.Cancel(errStopped)
	rt.running.Wait()
	for _, a := range rt.actors {
		a.close()
	}
	rt.Log.Debug("stopped nodes")
	return rt.Err()
}

// Snapshots returns a snapshot of every node, read on the node's own goroutine. It must be called
// while the runtime is running.
func (rt *Runtime) Snapshots(ctx context.Context) ([]*core.Snapshot, error) {
	out := make([]*core.Snapshot, len(rt.actors))
	var wg sync.WaitGroup
	for i, a := range rt.actors {
		wg.Add(1)
		a.Dispatch(func(n *core.RoutingNode) error {
			defer wg.Done()
			out[i] = n.Snapshot()
			return nil
		})
	}
	if err := rt.WaitIdle(ctx); err != nil {
		return nil, err
	}
	wg.Wait()
	return out, nil
}

// Tables returns the distance vector of every node. It must be called while the runtime is running.
func (rt *Runtime) Tables(ctx context.Context) ([]state.CostVector, error) {
	snaps, err := rt.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]state.CostVector, len(snaps))
	for i, s := range snaps {
		out[i] = s.Cost
	}
	return out, nil
}

// Elapsed returns the wall clock time since the runtime was created, in seconds.
func (rt *Runtime) Elapsed() float64 {
	return time.Since(rt.start).Seconds()
}

func (rt *Runtime) Stats() Stats {
	return Stats{
		Sent:      int(rt.sent.Load()),
		Delivered: int(rt.delivered.Load()),
		Events:    int(rt.delivered.Load()),
		EndTime:   rt.Elapsed(),
	}
}

// Expected returns the costs the nodes should converge to under the current link costs.
func (rt *Runtime) Expected() []state.CostVector {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return paths.Solve(rt.initial, rt.current, rt.Cfg.Infinity)
}
