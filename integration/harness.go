//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/sim"
	"github.com/encodeous/dvsim/state"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var leakOpts = []goleak.Option{
	goleak.IgnoreAnyFunction("os/signal.loop"),
}

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Triggered() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}

// WaitFor waits for the signal, failing the test after timeout.
func (s Signal) WaitFor(t *testing.T, timeout time.Duration) {
	select {
	case <-s:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for signal")
	}
}

// VirtualHarness runs a scenario on the async runtime and lets tests watch every snapshot.
type VirtualHarness struct {
	Cfg     state.ScenarioCfg
	Runtime *sim.Runtime
	Trace   *core.Trace
	Verbose bool

	subs     []chan any
	watchers sync.WaitGroup
	done     chan struct{}
}

func NewHarness(nodes int, poison bool) *VirtualHarness {
	return &VirtualHarness{
		Cfg: state.ScenarioCfg{
			Nodes:         nodes,
			PoisonReverse: poison,
		},
		Trace: core.NewTrace(0),
		done:  make(chan struct{}),
	}
}

func (vh *VirtualHarness) AddLink(a, b state.NodeId, cost state.Metric) {
	vh.Cfg.Links = append(vh.Cfg.Links, state.LinkCfg{From: a, To: b, Cost: cost})
}

// Watch calls fn with every snapshot published after Start. The returned signal is triggered the first
// time fn returns true. fn runs on a single goroutine.
func (vh *VirtualHarness) Watch(fn func(s *core.Snapshot) bool) Signal {
	sig := NewSignal()
	ch := vh.Trace.Subscribe(64)
	vh.subs = append(vh.subs, ch)
	vh.watchers.Add(1)
	go func() {
		defer vh.watchers.Done()
		for {
			select {
			case m := <-ch:
				if fn(m.(*core.Snapshot)) {
					sig.Trigger()
				}
			case <-vh.done:
				return
			}
		}
	}()
	return sig
}

func (vh *VirtualHarness) Start(t *testing.T, ctx context.Context) {
	state.ExpandScenario(&vh.Cfg)
	require.NoError(t, state.ScenarioValidator(&vh.Cfg))

	var out io.Writer = io.Discard
	if vh.Verbose {
		out = os.Stderr
	}
	logger, closer, err := sim.NewLogger(out, slog.LevelDebug, t.Name(), "")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = closer.Close()
	})
	vh.Runtime = sim.NewRuntime(ctx, vh.Cfg, logger, vh.Trace)
	vh.Runtime.Start()
}

// Stop stops every node, then every watcher.
func (vh *VirtualHarness) Stop() error {
	err := vh.Runtime.Stop()
	for _, ch := range vh.subs {
		vh.Trace.Unsubscribe(ch)
	}
	close(vh.done)
	vh.watchers.Wait()
	_ = vh.Trace.Close()
	return err
}
