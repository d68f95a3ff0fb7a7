// Package experiment runs repeated norm revision trials on simulated highway
// traffic and collects metric rows for every strategy.
package experiment

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/dnr"
	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/highway"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/objective"
	"github.com/danielpatrickdp/norm-revision/internal/replay"
	"github.com/danielpatrickdp/norm-revision/internal/synth"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// metricNone fills the metric column of synthesis rows.
const metricNone = "-"

// #region runner
// Runner executes the trials of one experiment.
type Runner struct {
	config Config
	log    *zap.Logger
}

// NewRunner validates config and creates a runner. A nil logger is replaced
// by a no-op one.
func NewRunner(config Config, log *zap.Logger) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{config: config, log: log}, nil
}

// Config returns the experiment configuration.
func (r *Runner) Config() Config {
	return r.config
}

// Run executes every trial, at most Concurrency at a time, and returns the
// results in trial order. Each trial owns its random source, so the output
// does not depend on scheduling.
func (r *Runner) Run(ctx context.Context) ([]TrialResult, error) {
	results := make([]TrialResult, r.config.Trials)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.config.Concurrency, 1))

	for i := range results {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := r.Trial(i + 1)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// #endregion runner

// #region trial
// Trial runs one trial: sample an initial configuration, simulate traffic
// under it, label the traces and revise with every strategy.
func (r *Runner) Trial(trial int) (TrialResult, error) {
	seed := uint64(trial) * SeedStride
	rng := rand.New(rand.NewPCG(seed, 0))
	log := r.log.With(zap.Int("trial", trial))

	initial, err := SampleConfiguration(r.config.Registry(), rng)
	if err != nil {
		return TrialResult{}, err
	}
	labeler, err := objective.NewLabeler(r.config.Objective)
	if err != nil {
		return TrialResult{}, err
	}
	sim := highway.NewSimulator(r.config.Simulation, log.Named("highway"))

	// The independent set is driven without norms, before the main batch.
	var independent []trace.Trace
	if r.config.IndependentTest {
		independent = labeler.Label(sim.Run(configuration.Configuration{}, rng))
	}
	traces := labeler.Label(initial.LabelTraces(sim.Run(initial, rng)))

	res := TrialResult{
		Trial:         trial,
		Seed:          seed,
		Initial:       initial,
		Traces:        len(traces),
		ObjectiveRate: trace.ObjectiveRate(traces),
	}
	for _, split := range r.config.TrainTestSplits {
		for _, name := range r.config.Strategies {
			strategy, err := synth.ParseStrategy(name)
			if err != nil {
				return TrialResult{}, err
			}
			if err := r.revise(&res, strategy, split, traces, independent, rng, log); err != nil {
				return TrialResult{}, fmt.Errorf("%s: %w", strategy, err)
			}
		}
	}

	log.Info("trial finished",
		zap.String("initial", initial.Key()),
		zap.Int("traces", res.Traces),
		zap.Float64("objective_rate", res.ObjectiveRate),
		zap.Bool("objective_met", labeler.RateAchieved(traces)),
		zap.Int("rows", len(res.Rows)),
	)
	return res, nil
}

// revise appends the synthesis rows, the random-pick baseline row and one
// row per revision round for strategy.
func (r *Runner) revise(res *TrialResult, strategy synth.Strategy, split bool, traces, independent []trace.Trace, rng *rand.Rand, log *zap.Logger) error {
	session := replay.NewSession(r.sessionConfig(strategy, split, res.Seed), log.Named("dnr"))
	engine, harness := session.Engine(), session.Harness()

	cands, err := engine.Synthesize(strategy, res.Initial, traces)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	ranked, err := engine.Select(res.Initial, cands, traces, rng)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	log.Debug("synthesized configurations",
		zap.String("strategy", string(strategy)),
		zap.Int("configurations", len(ranked)),
	)

	row := eval.Row{
		Metric:          r.config.Metric,
		TrainTestSplit:  split,
		IndependentTest: r.config.IndependentTest,
		Strategy:        string(strategy),
		Trial:           res.Trial,
	}

	if r.config.LogSynth {
		for _, c := range ranked {
			ev, err := harness.EvaluateConfiguration(c.Config, traces, independent, rng)
			if err != nil {
				return fmt.Errorf("evaluate synthesized: %w", err)
			}
			synthRow := row
			synthRow.Phase, synthRow.Metric, synthRow.Round, synthRow.Result = eval.PhaseSynth, metricNone, -1, ev
			res.Rows = append(res.Rows, synthRow)
		}
	}

	// Random pick among the synthesized configurations, the selection baseline.
	var pick configuration.Configuration
	if len(ranked) > 0 {
		pick = ranked[rng.IntN(len(ranked))].Config
	}
	ev, err := harness.EvaluatePair(res.Initial, pick, traces, independent, rng)
	if err != nil {
		return fmt.Errorf("evaluate random pick: %w", err)
	}
	randomRow := row
	randomRow.Phase, randomRow.Metric, randomRow.Round, randomRow.Result = eval.PhaseSelection, string(eval.MetricRandom), 0, ev
	res.Rows = append(res.Rows, randomRow)

	rounds, _, err := session.Run(res.Initial, traces, independent, rng)
	if err != nil {
		return err
	}
	for _, rr := range rounds {
		roundRow := row
		roundRow.Phase, roundRow.Round, roundRow.Result = eval.PhaseSelection, rr.Round, rr.EvalResult
		res.Rows = append(res.Rows, roundRow)
		res.Revisions = append(res.Revisions, Revision{
			Strategy:       string(strategy),
			TrainTestSplit: split,
			Round:          rr.Round,
			Action:         rr.Action,
			Reason:         rr.Reason,
			Config:         rr.FinalConfig,
			Score:          rr.Score,
		})
	}
	return nil
}

func (r *Runner) sessionConfig(strategy synth.Strategy, split bool, seed uint64) replay.ReplayConfig {
	metric := eval.Metric(r.config.Metric)

	engine := dnr.DefaultConfig()
	engine.Selection.Metric = metric
	engine.Selection.Samples = r.config.Samples

	ev := eval.DefaultEvalConfig()
	ev.Metric = metric
	ev.TrainTestSplit = split
	ev.IndependentTest = r.config.IndependentTest
	ev.JointMatrix = r.config.JointMatrix
	ev.NormCount = r.config.Norms

	return replay.ReplayConfig{
		Strategy: strategy,
		Rounds:   r.config.Rounds,
		Seed:     seed,
		Engine:   engine,
		Eval:     ev,
	}
}

// #endregion trial

// SampleConfiguration draws one random norm per registry entry.
func SampleConfiguration(reg configuration.Registry, rng *rand.Rand) (configuration.Configuration, error) {
	norms := make(map[string]*norm.Norm, len(reg))
	for _, e := range reg {
		factory, err := norm.FactoryFor(e.Kind)
		if err != nil {
			return configuration.Configuration{}, fmt.Errorf("sample %s: %w", e.ID, err)
		}
		norms[e.ID] = factory.Sample(e.ID, rng)
	}
	return configuration.New(reg, norms), nil
}
