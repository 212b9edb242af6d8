package sim

import (
	"context"
	"log/slog"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/state"
)

// nodeLog forwards router events to slog. Warn events are logged at warn level, route changes at
// debug level unless state.DBG_log_route_changes is set.
type nodeLog struct {
	log *slog.Logger
}

func newNodeLog(log *slog.Logger, id state.NodeId) nodeLog {
	return nodeLog{log: log.With("node", id)}
}

func (l nodeLog) Log(event core.RouterEvent, desc string, args ...any) {
	level := slog.LevelDebug
	switch {
	case event.IsWarning():
		level = slog.LevelWarn
	case event == core.UpdateIgnored:
		if !state.DBG_log_updates {
			return
		}
	case state.DBG_log_route_changes:
		level = slog.LevelInfo
	}
	l.log.Log(context.Background(), level, desc, append([]any{"event", event.String()}, args...)...)
}

// Tables returns the current distance vector of every node.
func Tables(nodes []*core.RoutingNode) []state.CostVector {
	out := make([]state.CostVector, len(nodes))
	for i, n := range nodes {
		out[i] = n.DistanceVector()
	}
	return out
}
