// Package dnr runs one data-driven norm revision pass: synthesis of
// candidate norms, selection of the best configuration, and the acceptance gate.
package dnr

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/gate"
	"github.com/danielpatrickdp/norm-revision/internal/selection"
	"github.com/danielpatrickdp/norm-revision/internal/synth"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region config
// Config bundles the selection and gate settings of an engine.
type Config struct {
	Selection selection.SelectorConfig
	Gate      gate.GateConfig
}

// DefaultConfig returns exhaustive accuracy selection behind an always-adopt gate.
func DefaultConfig() Config {
	return Config{
		Selection: selection.DefaultSelectorConfig(),
		Gate:      gate.DefaultGateConfig(),
	}
}

// #endregion config

// #region result
// Result is the outcome of one revision pass.
type Result struct {
	Strategy     synth.Strategy
	Candidates   synth.Candidates
	Ranked       []selection.Scored
	Best         selection.Scored
	Found        bool
	CurrentScore float64
	Decision     gate.GateDecision
	Next         configuration.Configuration // Best.Config on commit, else the input configuration
}

// #endregion result

// #region engine
// Engine wires the synthesizer, selector and gate.
type Engine struct {
	synth    *synth.Synthesizer
	selector *selection.Selector
	gate     *gate.Gate
	log      *zap.Logger
}

// New creates an engine. A nil logger is replaced by a no-op one.
func New(config Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		synth:    synth.New(log.Named("synth")),
		selector: selection.NewSelector(config.Selection, log.Named("selection")),
		gate:     gate.NewGate(config.Gate),
		log:      log,
	}
}

// Synthesize runs the synthesis step alone.
func (e *Engine) Synthesize(strategy synth.Strategy, cfg configuration.Configuration, traces []trace.Trace) (synth.Candidates, error) {
	return e.synth.Synthesize(strategy, cfg, traces)
}

// Select runs the selection step alone.
func (e *Engine) Select(cfg configuration.Configuration, cands synth.Candidates, traces []trace.Trace, rng *rand.Rand) ([]selection.Scored, error) {
	return e.selector.Select(cfg, cands, traces, rng)
}

// Revise synthesizes candidates for cfg under strategy, ranks the resulting
// configurations on traces and passes the best one through the gate.
func (e *Engine) Revise(strategy synth.Strategy, cfg configuration.Configuration, traces []trace.Trace, rng *rand.Rand) (Result, error) {
	res := Result{Strategy: strategy, Next: cfg}

	cands, err := e.Synthesize(strategy, cfg, traces)
	if err != nil {
		return res, fmt.Errorf("synthesize: %w", err)
	}
	res.Candidates = cands

	ranked, err := e.Select(cfg, cands, traces, rng)
	if err != nil {
		return res, fmt.Errorf("select: %w", err)
	}
	res.Ranked = ranked
	res.Best, res.Found = selection.Best(ranked)

	current, err := eval.Quality(e.selector.Config().Metric, cfg, traces)
	if err != nil {
		return res, fmt.Errorf("score current: %w", err)
	}
	res.CurrentScore = current

	res.Decision = e.gate.Evaluate(gate.Proposal{
		Current:        cfg,
		CurrentScore:   current,
		Candidate:      res.Best.Config,
		CandidateScore: res.Best.Score,
		Found:          res.Found,
	})
	if res.Decision.Action == gate.ActionCommit {
		res.Next = res.Best.Config
	}

	e.log.Info("revision pass",
		zap.String("strategy", string(strategy)),
		zap.Any("candidates", cands.Sizes()),
		zap.Int("ranked", len(ranked)),
		zap.String("action", res.Decision.Action),
		zap.String("reason", res.Decision.Reason),
		zap.Float64("current_score", current),
		zap.Float64("best_score", res.Best.Score),
	)
	return res, nil
}

// #endregion engine
