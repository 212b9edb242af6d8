package state

import (
	"fmt"
	"slices"
)

func Box(v Metric) *Metric {
	pt := new(Metric)
	*pt = v
	return pt
}

// ClassicScenario is the three node count-to-infinity example: once the 0-1 link rises from 4 to 60,
// nodes 1 and 2 keep routing to 0 through each other unless poison reverse is enabled.
func ClassicScenario(poison bool) ScenarioCfg {
	return ScenarioCfg{
		Nodes:         3,
		Infinity:      DefaultInfinity,
		PoisonReverse: poison,
		Seed:          1,
		Delay:         1,
		Links: []LinkCfg{
			{From: 0, To: 1, Cost: 4},
			{From: 0, To: 2, Cost: 50},
			{From: 1, To: 2, Cost: 1},
		},
		Changes: []LinkChangeCfg{
			{At: 40, From: 0, To: 1, Cost: 60},
		},
	}
}

// LineScenario connects node i to node i+1 with unit cost.
func LineScenario(n int, poison bool) ScenarioCfg {
	cfg := ScenarioCfg{
		Nodes:         n,
		Infinity:      DefaultInfinity,
		PoisonReverse: poison,
		Seed:          1,
		Delay:         1,
	}
	for i := 0; i+1 < n; i++ {
		cfg.Links = append(cfg.Links, LinkCfg{From: NodeId(i), To: NodeId(i + 1), Cost: 1})
	}
	return cfg
}

// RingScenario is a LineScenario whose ends are joined by a link of the given cost.
func RingScenario(n int, closing Metric, poison bool) ScenarioCfg {
	cfg := LineScenario(n, poison)
	if n > 2 {
		cfg.Links = append(cfg.Links, LinkCfg{From: NodeId(n - 1), To: 0, Cost: closing})
	}
	return cfg
}

// LabScenario is a five node topology with a link failure at 30 and a repair at 60.
func LabScenario(poison bool) ScenarioCfg {
	return ScenarioCfg{
		Nodes:         5,
		Infinity:      DefaultInfinity,
		PoisonReverse: poison,
		Seed:          7,
		Delay:         1,
		Jitter:        0.5,
		Links: []LinkCfg{
			{From: 0, To: 1, Cost: 7},
			{From: 0, To: 2, Cost: 9},
			{From: 0, To: 3, Cost: 100},
			{From: 1, To: 2, Cost: 1},
			{From: 2, To: 4, Cost: 10},
			{From: 2, To: 3, Cost: 3},
			{From: 3, To: 4, Cost: 8},
		},
		Changes: []LinkChangeCfg{
			{At: 30, From: 2, To: 3, Cost: Unbounded},
			{At: 60, From: 2, To: 3, Cost: 3},
		},
	}
}

var samples = map[string]func(poison bool) ScenarioCfg{
	"classic": ClassicScenario,
	"lab":     LabScenario,
	"line":    func(poison bool) ScenarioCfg { return LineScenario(5, poison) },
	"ring":    func(poison bool) ScenarioCfg { return RingScenario(6, 10, poison) },
}

func SampleNames() []string {
	names := make([]string, 0, len(samples))
	for k := range samples {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func SampleScenario(name string, poison bool) (ScenarioCfg, error) {
	gen, ok := samples[name]
	if !ok {
		return ScenarioCfg{}, fmt.Errorf("unknown sample %q, expected one of %v", name, SampleNames())
	}
	cfg := gen(poison)
	ExpandScenario(&cfg)
	return cfg, nil
}
