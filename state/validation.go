package state

import (
	"fmt"
	"math"
	"slices"
)

func NodeValidator(id NodeId, n int) error {
	if id < 0 || int(id) >= n {
		return fmt.Errorf("node %d is out of range [0, %d)", id, n)
	}
	return nil
}

func DelayValidator(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return fmt.Errorf("delay %v must be a finite non-negative number", d)
	}
	return nil
}

func ScenarioValidator(cfg *ScenarioCfg) error {
	if cfg.Nodes <= 0 {
		return fmt.Errorf("scenario must have at least one node, got %d", cfg.Nodes)
	}
	if cfg.Nodes > MaxNodes {
		return fmt.Errorf("scenario has %d nodes, at most %d are supported", cfg.Nodes, MaxNodes)
	}
	if cfg.Infinity == 0 {
		return fmt.Errorf("infinity must be positive")
	}
	if err := DelayValidator(cfg.Delay); err != nil {
		return err
	}
	if err := DelayValidator(cfg.Jitter); err != nil {
		return fmt.Errorf("jitter: %w", err)
	}
	if cfg.Delay == 0 && cfg.Jitter == 0 {
		return fmt.Errorf("delay and jitter must not both be zero")
	}
	if cfg.MaxEvents < 0 {
		return fmt.Errorf("max_events must not be negative")
	}

	seen := make([]Pair[NodeId, NodeId], 0, len(cfg.Links))
	for _, l := range cfg.Links {
		if err := NodeValidator(l.From, cfg.Nodes); err != nil {
			return fmt.Errorf("link %d-%d: %w", l.From, l.To, err)
		}
		if err := NodeValidator(l.To, cfg.Nodes); err != nil {
			return fmt.Errorf("link %d-%d: %w", l.From, l.To, err)
		}
		if l.From == l.To {
			return fmt.Errorf("link %d-%d: self links are not allowed", l.From, l.To)
		}
		edge := MakeSortedPair(l.From, l.To)
		if slices.Contains(seen, edge) {
			return fmt.Errorf("duplicate link found: %d, %d", edge.V1, edge.V2)
		}
		seen = append(seen, edge)
		if err := DelayValidator(l.Delay); err != nil {
			return fmt.Errorf("link %d-%d: %w", l.From, l.To, err)
		}
	}

	for _, c := range cfg.Changes {
		if err := DelayValidator(c.At); err != nil {
			return fmt.Errorf("change %d-%d: at: %w", c.From, c.To, err)
		}
		if err := NodeValidator(c.From, cfg.Nodes); err != nil {
			return fmt.Errorf("change %d-%d: %w", c.From, c.To, err)
		}
		if err := NodeValidator(c.To, cfg.Nodes); err != nil {
			return fmt.Errorf("change %d-%d: %w", c.From, c.To, err)
		}
		if c.From == c.To {
			return fmt.Errorf("change %d-%d: self links are not allowed", c.From, c.To)
		}
	}
	return nil
}
