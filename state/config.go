package state

import (
	"fmt"
	"os"
	"slices"

	"github.com/goccy/go-yaml"
)

// LinkCfg describes a bidirectional link. ReverseCost, when set, is the cost from To back to From.
type LinkCfg struct {
	From        NodeId  `yaml:"from"`
	To          NodeId  `yaml:"to"`
	Cost        Metric  `yaml:"cost"`
	ReverseCost *Metric `yaml:"reverse_cost,omitempty"`
	Delay       float64 `yaml:"delay,omitempty"` // overrides the scenario delay for this link
}

// LinkChangeCfg changes the cost of a link at a point in virtual time.
type LinkChangeCfg struct {
	At     float64 `yaml:"at"`
	From   NodeId  `yaml:"from"`
	To     NodeId  `yaml:"to"`
	Cost   Metric  `yaml:"cost"`
	OneWay bool    `yaml:"one_way,omitempty"` // only From observes the change
}

// ScenarioCfg is a complete simulation run.
type ScenarioCfg struct {
	Nodes         int             `yaml:"nodes"`
	Infinity      Metric          `yaml:"infinity,omitempty"`
	PoisonReverse bool            `yaml:"poison_reverse"`
	Seed          uint64          `yaml:"seed,omitempty"`
	Delay         float64         `yaml:"delay,omitempty"`  // base delivery delay
	Jitter        float64         `yaml:"jitter,omitempty"` // uniformly distributed extra delay in [0, jitter)
	MaxEvents     int             `yaml:"max_events,omitempty"`
	LogPath       string          `yaml:"log_path,omitempty"` // if not empty, logs are also written to this file
	Links         []LinkCfg       `yaml:"links"`
	Changes       []LinkChangeCfg `yaml:"changes,omitempty"`
}

func ReadScenario(path string) (*ScenarioCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(file)
}

func ParseScenario(data []byte) (*ScenarioCfg, error) {
	var cfg ScenarioCfg
	err := yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	ExpandScenario(&cfg)
	err = ScenarioValidator(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExpandScenario fills in defaults for omitted fields.
func ExpandScenario(cfg *ScenarioCfg) {
	if cfg.Infinity == 0 {
		cfg.Infinity = DefaultInfinity
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	slices.SortStableFunc(cfg.Changes, func(a, b LinkChangeCfg) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		}
		return 0
	})
}

// CostMatrix returns the initial direct cost vector of every node, normalised to the scenario infinity.
func (c *ScenarioCfg) CostMatrix() []CostVector {
	costs := make([]CostVector, c.Nodes)
	for i := range costs {
		costs[i] = NewCostVector(c.Nodes, c.Infinity)
		costs[i][i] = 0
	}
	for _, l := range c.Links {
		costs[l.From][l.To] = l.Cost.Normalise(c.Infinity)
		rev := l.Cost
		if l.ReverseCost != nil {
			rev = *l.ReverseCost
		}
		costs[l.To][l.From] = rev.Normalise(c.Infinity)
	}
	return costs
}

// LinkDelay returns the delivery delay between two nodes.
func (c *ScenarioCfg) LinkDelay(a, b NodeId) float64 {
	for _, l := range c.Links {
		if (l.From == a && l.To == b || l.From == b && l.To == a) && l.Delay > 0 {
			return l.Delay
		}
	}
	return c.Delay
}

// GetLink returns the configured link between two nodes, in either direction.
func (c *ScenarioCfg) GetLink(a, b NodeId) *LinkCfg {
	idx := slices.IndexFunc(c.Links, func(l LinkCfg) bool {
		return l.From == a && l.To == b || l.From == b && l.To == a
	})
	if idx == -1 {
		return nil
	}
	return &c.Links[idx]
}

// Edges returns every configured link once, as sorted pairs in ascending order.
func (c *ScenarioCfg) Edges() []Pair[NodeId, NodeId] {
	edges := make([]Pair[NodeId, NodeId], 0, len(c.Links))
	for _, l := range c.Links {
		edges = append(edges, MakeSortedPair(l.From, l.To))
	}
	SortPairs(edges)
	return edges
}

func (c *ScenarioCfg) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
