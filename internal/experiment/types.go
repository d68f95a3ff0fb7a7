package experiment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/highway"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/objective"
	"github.com/danielpatrickdp/norm-revision/internal/selection"
	"github.com/danielpatrickdp/norm-revision/internal/synth"
)

// Norm ids of the highway registry.
const (
	MaxSpeedNormID    = "MSN"
	MinDistanceNormID = "MDN"
)

// SeedStride spaces the per-trial seeds: trial t runs with seed t*SeedStride.
const SeedStride = 12345789

// #region config
// Config describes one experiment: how many trials, which norms, which
// revision strategies and how the results are scored.
type Config struct {
	Name            string   `yaml:"name"`
	Trials          int      `yaml:"trials"`
	Norms           int      `yaml:"norms"` // 1 (MSN) or 2 (MSN, MDN)
	Strategies      []string `yaml:"strategies"`
	TrainTestSplits []bool   `yaml:"train_test_splits"`
	IndependentTest bool     `yaml:"independent_test"`
	Metric          string   `yaml:"metric"`
	Samples         int      `yaml:"samples"` // -1 for exhaustive selection
	Rounds          int      `yaml:"rounds"`
	JointMatrix     bool     `yaml:"joint_matrix"`
	LogSynth        bool     `yaml:"log_synth"` // emit a row per synthesized configuration
	Concurrency     int      `yaml:"concurrency"`

	Objective  objective.LabelerConfig `yaml:"objective"`
	Simulation highway.SimConfig       `yaml:"simulation"`
}

// DefaultConfig returns the default experiment settings.
func DefaultConfig() Config {
	return Config{
		Name:            "highway",
		Trials:          100,
		Norms:           1,
		Strategies:      []string{string(synth.Weakening), string(synth.Strengthening), string(synth.Alteration)},
		TrainTestSplits: []bool{false},
		IndependentTest: false,
		Metric:          string(eval.MetricAccuracy),
		Samples:         selection.Exhaustive,
		Rounds:          4,
		JointMatrix:     true,
		LogSynth:        false,
		Concurrency:     4,
		Objective:       objective.DefaultLabelerConfig(),
		Simulation:      highway.DefaultSimConfig(),
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Fields absent from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate checks names and bounds before any trial runs.
func (c Config) Validate() error {
	if c.Trials < 1 {
		return fmt.Errorf("trials must be positive, got %d", c.Trials)
	}
	if c.Norms < 1 || c.Norms > 2 {
		return fmt.Errorf("norms must be 1 or 2, got %d", c.Norms)
	}
	if c.Rounds < 0 {
		return fmt.Errorf("rounds must not be negative, got %d", c.Rounds)
	}
	if c.Samples != selection.Exhaustive && c.Samples < 1 {
		return fmt.Errorf("samples must be %d or positive, got %d", selection.Exhaustive, c.Samples)
	}
	if len(c.TrainTestSplits) == 0 {
		return fmt.Errorf("train_test_splits must not be empty")
	}
	if _, err := eval.ParseMetric(c.Metric); err != nil {
		return err
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("strategies must not be empty")
	}
	for _, s := range c.Strategies {
		if _, err := synth.ParseStrategy(s); err != nil {
			return err
		}
	}
	if _, err := objective.NewLabeler(c.Objective); err != nil {
		return err
	}
	return nil
}

// Registry returns the norm ids and kinds under revision.
func (c Config) Registry() configuration.Registry {
	reg := configuration.Registry{{ID: MaxSpeedNormID, Kind: norm.KindMaxSpeed}}
	if c.Norms > 1 {
		reg = append(reg, configuration.Entry{ID: MinDistanceNormID, Kind: norm.KindMinDistance})
	}
	return reg
}

// Header returns the metric-row columns of this experiment.
func (c Config) Header() []string {
	return eval.Header(c.Norms, c.JointMatrix)
}

// #endregion config

// #region results
// Revision is one revision round of a trial.
type Revision struct {
	Strategy       string
	TrainTestSplit bool
	Round          int
	Action         string
	Reason         string
	Config         string
	Score          float64
}

// TrialResult collects what one trial produced.
type TrialResult struct {
	Trial         int
	Seed          uint64
	Initial       configuration.Configuration
	Traces        int
	ObjectiveRate float64
	Rows          []eval.Row
	Revisions     []Revision
}

// #endregion results
