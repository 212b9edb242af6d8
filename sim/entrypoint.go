package sim

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/trace"
	"syscall"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/paths"
	"github.com/encodeous/dvsim/state"
	"github.com/google/uuid"
)

type Options struct {
	Async    bool
	Level    slog.Level
	Observer core.Observer
	// LogOutput receives console logs, os.Stderr if nil.
	LogOutput io.Writer
}

// Result describes a finished run.
type Result struct {
	RunId      uuid.UUID
	Final      []*core.Snapshot
	Expected   []state.CostVector
	Mismatches []paths.Mismatch
	Stats      Stats
}

func setupDebugging() func() {
	stop := func() {}
	if state.DBG_trace {
		f, err := os.Create("trace.out")
		if err != nil {
			log.Fatal(err)
		}
		err = trace.Start(f)
		if err != nil {
			log.Fatal(err)
		}
		log.Println("Started tracing")
		stop = func() {
			trace.Stop()
			_ = f.Close()
		}
	}
	if state.DBG_debug {
		go func() {
			log.Println(http.ListenAndServe(state.DebugAddr, nil))
		}()
	}
	return stop
}

// Start runs a scenario to completion, on the simulator or on the async runtime, and checks the
// final tables against the reference solver. cfg must already be expanded and validated.
func Start(ctx context.Context, cfg state.ScenarioCfg, opts Options) (*Result, error) {
	defer setupDebugging()()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)

	runId := uuid.New()
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, closer, err := NewLogger(out, opts.Level, runId.String()[:8], cfg.LogPath)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	logger = logger.With("run", runId.String())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
			return
		}
	}()

	logger.Info("starting run",
		"nodes", cfg.Nodes, "poison_reverse", cfg.PoisonReverse, "infinity", cfg.Infinity,
		"async", opts.Async, "seed", cfg.Seed)

	res := &Result{RunId: runId}
	if opts.Async {
		err = runAsync(ctx, cfg, logger, opts.Observer, res)
	} else {
		err = runSim(ctx, cfg, logger, opts.Observer, res)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		return res, err
	}

	tables := make([]state.CostVector, len(res.Final))
	for i, s := range res.Final {
		tables[i] = s.Cost
	}
	res.Mismatches = paths.Compare(tables, res.Expected)
	for _, m := range res.Mismatches {
		logger.Warn("table differs from shortest path", "node", m.Node, "dst", m.Dest, "got", m.Got, "want", m.Want)
	}
	logger.Info("run complete", "events", res.Stats.Events, "delivered", res.Stats.Delivered,
		"end_time", res.Stats.EndTime, "converged", len(res.Mismatches) == 0)
	return res, nil
}

func runSim(ctx context.Context, cfg state.ScenarioCfg, logger *slog.Logger, obs core.Observer, res *Result) error {
	s := NewSimulator(cfg, logger, obs)
	err := s.Run(ctx)
	res.Stats = s.Stats
	for _, n := range s.Nodes {
		res.Final = append(res.Final, n.Snapshot())
	}
	res.Expected = s.Expected()
	return err
}

func runAsync(ctx context.Context, cfg state.ScenarioCfg, logger *slog.Logger, obs core.Observer, res *Result) error {
	rt := NewRuntime(ctx, cfg, logger, obs)
	err := rt.Run(ctx)
	if err == nil {
		res.Final, err = rt.Snapshots(ctx)
		res.Expected = rt.Expected()
	}
	stopErr := rt.Stop()
	if err == nil {
		err = stopErr
	}
	res.Stats = rt.Stats()
	res.Stats.LinkChanges = len(cfg.Changes)
	return err
}
