package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/paths"
	"github.com/encodeous/dvsim/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sample(t *testing.T, name string, poison bool) state.ScenarioCfg {
	cfg, err := state.SampleScenario(name, poison)
	require.NoError(t, err)
	require.NoError(t, state.ScenarioValidator(&cfg))
	return cfg
}

func TestSimulatorClassic(t *testing.T) {
	delivered := make(map[bool]int)
	for _, poison := range []bool{true, false} {
		s := NewSimulator(sample(t, "classic", poison), testLogger(), nil)
		require.NoError(t, s.Run(context.Background()))
		assert.Empty(t, s.Verify())
		assert.Equal(t, 1, s.Stats.LinkChanges)
		assert.Equal(t, s.Stats.Sent, s.Stats.Delivered)
		assert.Equal(t, 0, s.Pending())
		assert.Equal(t, state.Metric(51), s.Nodes[1].Cost(0))
		assert.Equal(t, state.Metric(50), s.Nodes[2].Cost(0))
		delivered[poison] = s.Stats.Delivered
	}
	assert.Less(t, delivered[true], delivered[false])
}

func TestSimulatorSamples(t *testing.T) {
	for _, name := range state.SampleNames() {
		for _, poison := range []bool{true, false} {
			s := NewSimulator(sample(t, name, poison), testLogger(), nil)
			require.NoError(t, s.Run(context.Background()), name)
			assert.Empty(t, s.Verify(), name)
		}
	}
}

func TestSimulatorRunUntil(t *testing.T) {
	cfg := sample(t, "classic", true)
	s := NewSimulator(cfg, testLogger(), nil)
	require.NoError(t, s.RunUntil(context.Background(), 39))
	assert.LessOrEqual(t, s.Now(), 39.0)
	assert.Equal(t, paths.SolveStatic(cfg.CostMatrix(), cfg.Infinity), s.Tables())
	// only the link change is left
	assert.Equal(t, 1, s.Pending())

	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, s.Verify())
	assert.GreaterOrEqual(t, s.Now(), 40.0)
}

func TestSimulatorDeterministic(t *testing.T) {
	run := func() ([]string, Stats) {
		var trace []string
		obs := core.ObserverFunc(func(s *core.Snapshot) {
			trace = append(trace, s.String())
		})
		s := NewSimulator(sample(t, "lab", true), testLogger(), obs)
		require.NoError(t, s.Run(context.Background()))
		return trace, s.Stats
	}
	a, statsA := run()
	b, statsB := run()
	assert.Equal(t, statsA, statsB)
	assert.Empty(t, cmp.Diff(a, b))
}

func TestSimulatorFifoPerPair(t *testing.T) {
	cfg := sample(t, "line", true)
	cfg.Jitter = 10
	s := NewSimulator(cfg, testLogger(), nil)
	for s.Pending() > 0 {
		s.queue.DeleteMin()
	}

	for i := range 50 {
		s.send(state.Update{Source: 0, Dest: 1, Vector: state.CostVector{state.Metric(i)}})
		s.send(state.Update{Source: 1, Dest: 0, Vector: state.CostVector{state.Metric(i)}})
	}
	next := map[state.NodeId]state.Metric{}
	last := 0.0
	for s.Pending() > 0 {
		e, _ := s.queue.DeleteMin()
		assert.GreaterOrEqual(t, e.at, last)
		last = e.at
		assert.Equal(t, next[e.update.Source], e.update.Vector[0])
		next[e.update.Source]++
	}
	assert.Equal(t, state.Metric(50), next[0])
	assert.Equal(t, state.Metric(50), next[1])
}

func TestSimulatorEventBudget(t *testing.T) {
	cfg := state.LineScenario(3, false)
	cfg.Changes = []state.LinkChangeCfg{{At: 10, From: 1, To: 2, Cost: state.Unbounded}}
	cfg.MaxEvents = 50
	state.ExpandScenario(&cfg)

	s := NewSimulator(cfg, testLogger(), nil)
	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrEventBudget)
	assert.Equal(t, 50, s.Stats.Events)

	// the same failure with poison reverse settles well within the budget
	cfg.PoisonReverse = true
	s = NewSimulator(cfg, testLogger(), nil)
	assert.NoError(t, s.Run(context.Background()))
}

func TestSimulatorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cause := errors.New("stop")
	cancel(cause)

	s := NewSimulator(sample(t, "classic", true), testLogger(), nil)
	assert.ErrorIs(t, s.Run(ctx), cause)
	assert.Equal(t, 0, s.Stats.Events)
}

func TestSimulatorOneWayChange(t *testing.T) {
	cfg := state.LineScenario(3, true)
	cfg.Changes = []state.LinkChangeCfg{{At: 10, From: 1, To: 2, Cost: state.Unbounded, OneWay: true}}
	state.ExpandScenario(&cfg)

	s := NewSimulator(cfg, testLogger(), nil)
	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, s.Verify())
	assert.Equal(t, cfg.Infinity, s.Nodes[0].Cost(2))
	// 2 still believes in its link to 1
	assert.Equal(t, state.Metric(2), s.Nodes[2].Cost(0))
}

type recordHandler struct {
	slog.Handler
	records *[]slog.Record
}

func (h recordHandler) Handle(_ context.Context, r slog.Record) error {
	*h.records = append(*h.records, r)
	return nil
}

func (h recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return recordHandler{h.Handler.WithAttrs(attrs), h.records}
}

func TestNodeLogLevels(t *testing.T) {
	var records []slog.Record
	h := recordHandler{slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}), &records}
	l := newNodeLog(slog.New(h), 3)

	l.Log(core.InconsistentState, "bad update")
	l.Log(core.RouteImproved, "new lowest cost")
	l.Log(core.UpdateIgnored, "update unchanged")

	require.Len(t, records, 2)
	assert.Equal(t, slog.LevelWarn, records[0].Level)
	assert.Equal(t, slog.LevelDebug, records[1].Level)
	assert.Equal(t, "new lowest cost", records[1].Message)
}

func TestNewLoggerFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "run.log")
	logger, closer, err := NewLogger(io.Discard, slog.LevelDebug, "test", logPath)
	require.NoError(t, err)
	logger.Debug("hello", "node", 1)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello node=1")
}
