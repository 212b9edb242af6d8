package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validScenario() ScenarioCfg {
	cfg := LineScenario(3, true)
	ExpandScenario(&cfg)
	return cfg
}

func TestScenarioValidator_Valid(t *testing.T) {
	cfg := validScenario()
	assert.NoError(t, ScenarioValidator(&cfg))
}

func TestScenarioValidator_NoNodes(t *testing.T) {
	cfg := validScenario()
	cfg.Nodes = 0
	assert.ErrorContains(t, ScenarioValidator(&cfg), "at least one node")
}

func TestScenarioValidator_LinkOutOfRange(t *testing.T) {
	cfg := validScenario()
	cfg.Links = append(cfg.Links, LinkCfg{From: 0, To: 3, Cost: 1})
	assert.ErrorContains(t, ScenarioValidator(&cfg), "node 3 is out of range [0, 3)")
}

func TestScenarioValidator_DuplicateLink(t *testing.T) {
	cfg := validScenario()
	cfg.Links = append(cfg.Links, LinkCfg{From: 1, To: 0, Cost: 1})
	assert.ErrorContains(t, ScenarioValidator(&cfg), "duplicate link found: 0, 1")
}

func TestScenarioValidator_SelfLink(t *testing.T) {
	cfg := validScenario()
	cfg.Links = append(cfg.Links, LinkCfg{From: 2, To: 2, Cost: 1})
	assert.ErrorContains(t, ScenarioValidator(&cfg), "self links are not allowed")
}

func TestScenarioValidator_BadDelay(t *testing.T) {
	cfg := validScenario()
	cfg.Delay = -1
	assert.ErrorContains(t, ScenarioValidator(&cfg), "finite non-negative")

	cfg = validScenario()
	cfg.Delay = 0
	cfg.Jitter = 0
	assert.ErrorContains(t, ScenarioValidator(&cfg), "must not both be zero")
}

func TestScenarioValidator_BadChange(t *testing.T) {
	cfg := validScenario()
	cfg.Changes = []LinkChangeCfg{{At: 5, From: 0, To: 9, Cost: 1}}
	assert.ErrorContains(t, ScenarioValidator(&cfg), "change 0-9")

	cfg.Changes = []LinkChangeCfg{{At: -5, From: 0, To: 1, Cost: 1}}
	assert.ErrorContains(t, ScenarioValidator(&cfg), "at:")
}
