package selection

import (
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/synth"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region selector-config
// Exhaustive is the Samples value that enumerates every combination.
const Exhaustive = -1

// SelectorConfig holds the selection mode and the ranking metric.
type SelectorConfig struct {
	Samples int // Exhaustive, or the number of Monte Carlo draws
	Metric  eval.Metric
}

// DefaultSelectorConfig returns exhaustive selection ranked by accuracy.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Samples: Exhaustive,
		Metric:  eval.MetricAccuracy,
	}
}

// Scored is a candidate configuration with its quality.
type Scored struct {
	Config configuration.Configuration
	Score  float64
}

// #endregion selector-config

// #region selector
// Selector combines candidate norms into configurations and ranks them.
type Selector struct {
	config SelectorConfig
	log    *zap.Logger
}

// NewSelector creates a selector. A nil logger is replaced by a no-op one.
func NewSelector(config SelectorConfig, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{config: config, log: log}
}

// Config returns the selector configuration.
func (s *Selector) Config() SelectorConfig {
	return s.config
}

// Select builds configurations from cands over the registry of base, drops
// the empty ones, scores the rest on traces and returns them by score
// descending, ties by Key ascending. rng is only drawn from in Monte Carlo mode.
func (s *Selector) Select(base configuration.Configuration, cands synth.Candidates, traces []trace.Trace, rng *rand.Rand) ([]Scored, error) {
	if _, err := eval.ParseMetric(string(s.config.Metric)); err != nil {
		return nil, err
	}
	if base.IsEmpty() || len(cands) == 0 {
		return nil, nil
	}

	var pool []configuration.Configuration
	if s.config.Samples == Exhaustive {
		pool = Combinations(base.Registry(), cands)
	} else {
		pool = sample(base.Registry(), cands, s.config.Samples, rng)
	}

	memo := eval.NewMemo(traces)
	ranked := make([]Scored, 0, len(pool))
	seen := make(map[string]bool, len(pool))
	for _, c := range pool {
		if c.IsEmpty() || seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		q, err := eval.QualityWith(s.config.Metric, c, traces, memo.Oracle())
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, Scored{Config: c, Score: q})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Config.Key() < ranked[j].Config.Key()
	})

	s.log.Debug("selection ranked",
		zap.Int("pool", len(pool)),
		zap.Int("ranked", len(ranked)),
		zap.Int("samples", s.config.Samples),
	)
	return ranked, nil
}

// Best returns the top-ranked configuration, or false when ranked is empty.
func Best(ranked []Scored) (Scored, bool) {
	if len(ranked) == 0 {
		return Scored{}, false
	}
	return ranked[0], true
}

// #endregion selector

// #region combinations

// Combinations returns one configuration per element of the cartesian
// product of the candidate lists, in registry order, empty ones included.
// A registry id with no candidates yields no combinations.
func Combinations(reg configuration.Registry, cands synth.Candidates) []configuration.Configuration {
	if len(reg) == 0 {
		return nil
	}
	var out []configuration.Configuration
	current := make(map[string]*norm.Norm, len(reg))
	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(reg) {
			out = append(out, configuration.New(reg, current))
			return
		}
		id := reg[depth].ID
		for _, n := range cands[id] {
			current[id] = n
			walk(depth + 1)
		}
		delete(current, id)
	}
	walk(0)
	return out
}

// sample draws k configurations, one candidate per norm uniformly at random.
func sample(reg configuration.Registry, cands synth.Candidates, k int, rng *rand.Rand) []configuration.Configuration {
	for _, e := range reg {
		if len(cands[e.ID]) == 0 {
			return nil
		}
	}
	out := make([]configuration.Configuration, 0, k)
	for i := 0; i < k; i++ {
		picked := make(map[string]*norm.Norm, len(reg))
		for _, e := range reg {
			list := cands[e.ID]
			picked[e.ID] = list[rng.IntN(len(list))]
		}
		out = append(out, configuration.New(reg, picked))
	}
	return out
}

// #endregion combinations
