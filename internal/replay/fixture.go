package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/dnr"
	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/synth"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Norms           []FixtureNorm           `json:"norms"`
	Traces          []trace.Trace           `json:"traces"`
	Config          FixtureConfig           `json:"config"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureNorm is a norm as "type:value" literal tokens per disjunct.
type FixtureNorm struct {
	ID   string     `json:"id"`
	Kind norm.Kind  `json:"kind"`
	Cond [][]string `json:"cond"`
	Proh [][]string `json:"proh"`
	Dead [][]string `json:"dead"`
}

// FixtureConfig mirrors ReplayConfig with JSON tags.
type FixtureConfig struct {
	Strategy           string `json:"strategy"`
	Rounds             int    `json:"rounds"`
	Metric             string `json:"metric"`
	Samples            int    `json:"samples"`
	Seed               uint64 `json:"seed"`
	RequireImprovement bool   `json:"require_improvement"`
}

// FixtureExpectedResult captures the expected action and score per round.
type FixtureExpectedResult struct {
	Round  int     `json:"round"`
	Action string  `json:"action"`
	Score  float64 `json:"score"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToNorm converts a FixtureNorm to a domain norm.
func (fn *FixtureNorm) ToNorm() (*norm.Norm, error) {
	cond, err := norm.ParseFormula(fn.Cond)
	if err != nil {
		return nil, fmt.Errorf("norm %s cond: %w", fn.ID, err)
	}
	proh, err := norm.ParseFormula(fn.Proh)
	if err != nil {
		return nil, fmt.Errorf("norm %s proh: %w", fn.ID, err)
	}
	dead, err := norm.ParseFormula(fn.Dead)
	if err != nil {
		return nil, fmt.Errorf("norm %s dead: %w", fn.ID, err)
	}
	return norm.New(fn.ID, fn.Kind, cond, proh, dead)
}

// FromNorm converts a domain norm to its fixture form.
func FromNorm(n *norm.Norm) FixtureNorm {
	return FixtureNorm{
		ID:   n.ID(),
		Kind: n.Kind(),
		Cond: n.Condition().Literals(),
		Proh: n.Prohibition().Literals(),
		Dead: n.Deadline().Literals(),
	}
}

// ToConfiguration converts the fixture norms to a configuration, registered
// in fixture order.
func (f *Fixture) ToConfiguration() (configuration.Configuration, error) {
	reg := make(configuration.Registry, 0, len(f.Norms))
	norms := make(map[string]*norm.Norm, len(f.Norms))
	for i := range f.Norms {
		n, err := f.Norms[i].ToNorm()
		if err != nil {
			return configuration.Configuration{}, err
		}
		reg = append(reg, configuration.Entry{ID: n.ID(), Kind: n.Kind()})
		norms[n.ID()] = n
	}
	return configuration.New(reg, norms), nil
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() (ReplayConfig, error) {
	strategy, err := synth.ParseStrategy(fc.Strategy)
	if err != nil {
		return ReplayConfig{}, err
	}
	metric, err := eval.ParseMetric(fc.Metric)
	if err != nil {
		return ReplayConfig{}, err
	}
	config := DefaultReplayConfig()
	config.Strategy = strategy
	config.Rounds = fc.Rounds
	config.Seed = fc.Seed
	config.Engine = dnr.DefaultConfig()
	config.Engine.Selection.Metric = metric
	config.Engine.Selection.Samples = fc.Samples
	config.Engine.Gate.RequireImprovement = fc.RequireImprovement
	config.Eval.Metric = metric
	return config, nil
}

// FromReplayConfig converts a domain ReplayConfig to its fixture form.
func FromReplayConfig(c ReplayConfig) FixtureConfig {
	return FixtureConfig{
		Strategy:           string(c.Strategy),
		Rounds:             c.Rounds,
		Metric:             string(c.Engine.Selection.Metric),
		Samples:            c.Engine.Selection.Samples,
		Seed:               c.Seed,
		RequireImprovement: c.Engine.Gate.RequireImprovement,
	}
}

// #endregion fixture-loader
