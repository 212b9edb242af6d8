//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestOptimalConvergence(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// a <-10-> b, c <-50-> a, b <-100-> c
	const a, b, c = 0, 1, 2
	vh := NewHarness(3, true)
	vh.AddLink(a, b, 10)
	vh.AddLink(a, c, 50)
	vh.AddLink(b, c, 100)

	conv1 := vh.Watch(func(s *core.Snapshot) bool {
		return s.Node == a && s.CostTo(c) == 50 && s.NextHop(c) == c
	})
	conv2 := vh.Watch(func(s *core.Snapshot) bool {
		return s.Node == a && s.CostTo(c) == 20 && s.NextHop(c) == b
	})

	vh.Start(t, ctx)
	conv1.WaitFor(t, 5*time.Second)
	require.NoError(t, vh.Runtime.WaitIdle(ctx))

	// b <-10-> c, the path through b becomes optimal
	vh.Runtime.UpdateLinkCost(b, c, 10)
	vh.Runtime.UpdateLinkCost(c, b, 10)
	conv2.WaitFor(t, 5*time.Second)
	require.NoError(t, vh.Runtime.WaitIdle(ctx))

	tables, err := vh.Runtime.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, vh.Runtime.Expected(), tables)
	assert.NoError(t, vh.Stop())
}

func classicHarness(poison bool) *VirtualHarness {
	vh := NewHarness(3, poison)
	vh.AddLink(0, 1, 4)
	vh.AddLink(0, 2, 50)
	vh.AddLink(1, 2, 1)
	return vh
}

func TestPoisonReverseAvoidsCounting(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	seen := make(map[bool][]state.Metric)
	for _, poison := range []bool{true, false} {
		vh := classicHarness(poison)
		var costs []state.Metric
		vh.Watch(func(s *core.Snapshot) bool {
			if s.Node == 1 && (len(costs) == 0 || costs[len(costs)-1] != s.CostTo(0)) {
				costs = append(costs, s.CostTo(0))
			}
			return false
		})
		vh.Start(t, ctx)
		require.NoError(t, vh.Runtime.WaitIdle(ctx))

		vh.Runtime.UpdateLinkCost(0, 1, 60)
		vh.Runtime.UpdateLinkCost(1, 0, 60)
		require.NoError(t, vh.Runtime.WaitIdle(ctx))

		tables, err := vh.Runtime.Tables(ctx)
		require.NoError(t, err)
		assert.Equal(t, vh.Runtime.Expected(), tables)
		require.NoError(t, vh.Stop())
		seen[poison] = costs
	}

	// with poison reverse, 1 never believes 2's stale route through itself
	for _, c := range seen[true] {
		assert.Contains(t, []state.Metric{4, 51, 60}, c)
	}
	assert.Equal(t, state.Metric(51), seen[true][len(seen[true])-1])
	// without it, 1 and 2 count up from 4 until the direct link to 0 is cheaper
	assert.Contains(t, seen[false], state.Metric(6))
	assert.Equal(t, state.Metric(51), seen[false][len(seen[false])-1])
}

func TestPartitionRetractsRoutes(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 0 - 1 - 2 - 3 - 4, then 2 - 3 fails
	vh := NewHarness(5, true)
	for i := range 4 {
		vh.AddLink(state.NodeId(i), state.NodeId(i+1), 1)
	}
	retracted := vh.Watch(func(s *core.Snapshot) bool {
		return s.Node == 0 && !s.Reachable(4) && s.NextHop(4) == state.NoRoute && s.CostTo(2) == 2
	})
	vh.Start(t, ctx)
	require.NoError(t, vh.Runtime.WaitIdle(ctx))

	vh.Runtime.UpdateLinkCost(2, 3, state.Unbounded)
	vh.Runtime.UpdateLinkCost(3, 2, state.Unbounded)
	retracted.WaitFor(t, 5*time.Second)
	require.NoError(t, vh.Runtime.WaitIdle(ctx))

	snaps, err := vh.Runtime.Snapshots(ctx)
	require.NoError(t, err)
	for _, s := range snaps[:3] {
		assert.False(t, s.Reachable(3))
		assert.False(t, s.Reachable(4))
	}
	assert.True(t, snaps[3].Reachable(4))
	assert.NoError(t, vh.Stop())
}
