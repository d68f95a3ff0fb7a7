package main

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/experiment"
	"github.com/danielpatrickdp/norm-revision/internal/highway"
	"github.com/danielpatrickdp/norm-revision/internal/logging"
	"github.com/danielpatrickdp/norm-revision/internal/objective"
	"github.com/danielpatrickdp/norm-revision/internal/replay"
	"github.com/danielpatrickdp/norm-revision/internal/synth"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

var (
	outPath    string
	batchPath  string
	configPath string
	seed       uint64
	norms      int
	traces     int
	strategy   string
	rounds     int
	logLevel   string

	logger *zap.Logger
)

// #region main

var rootCmd = &cobra.Command{
	Use:   "fixture-export",
	Short: "Build a replay fixture from a simulated or recorded trace batch",
	Long: `fixture-export samples an initial norm configuration, simulates highway
traffic under it (or loads a recorded batch with --batch), labels the traces
against the system objective and replays the revision rounds once to record
the expected results. The output feeds "replay --fixture".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(logLevel, false)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&outPath, "out", "", "output fixture JSON path (required)")
	rootCmd.Flags().StringVar(&batchPath, "batch", "", "recorded trace batch JSON instead of a simulation")
	rootCmd.Flags().StringVar(&configPath, "config", "", "experiment YAML for objective and simulation settings")
	rootCmd.Flags().Uint64Var(&seed, "seed", experiment.SeedStride, "seed for sampling, simulation and replay")
	rootCmd.Flags().IntVar(&norms, "norms", 1, "number of norms under revision (1 or 2)")
	rootCmd.Flags().IntVar(&traces, "traces", 60, "simulated traces")
	rootCmd.Flags().StringVar(&strategy, "strategy", string(synth.Alteration), "revision strategy")
	rootCmd.Flags().IntVar(&rounds, "rounds", 2, "revision rounds")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.MarkFlagRequired("out")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(cmd *cobra.Command, args []string) error {
	config := experiment.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = experiment.LoadConfig(configPath); err != nil {
			return err
		}
	}
	config.Norms = norms
	config.Simulation.Traces = traces
	if err := config.Validate(); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(seed, 0))
	start, err := experiment.SampleConfiguration(config.Registry(), rng)
	if err != nil {
		return err
	}

	batch, err := loadOrSimulate(config, start, rng)
	if err != nil {
		return err
	}
	fmt.Printf("Labeled %d traces, objective rate %.2f\n", len(batch), trace.ObjectiveRate(batch))

	replayConfig := replay.DefaultReplayConfig()
	if replayConfig.Strategy, err = synth.ParseStrategy(strategy); err != nil {
		return err
	}
	replayConfig.Rounds = rounds
	replayConfig.Seed = seed
	replayConfig.Engine.Selection.Metric = eval.Metric(config.Metric)
	replayConfig.Engine.Selection.Samples = config.Samples
	replayConfig.Eval.Metric = eval.Metric(config.Metric)

	// Replay from the fixture's own norms so the expected results describe
	// exactly what "replay --fixture" will load.
	f := newFixture(start, batch, replayConfig)
	fromFixture, err := f.ToConfiguration()
	if err != nil {
		return err
	}
	results, final, err := replay.Replay(fromFixture, batch, replayConfig, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Replayed %d rounds, final configuration %s\n", len(results), final)

	for _, r := range results {
		f.ExpectedResults = append(f.ExpectedResults, replay.FixtureExpectedResult{
			Round:  r.Round,
			Action: r.Action,
			Score:  r.Score,
		})
	}
	f.Description = fmt.Sprintf("Exported session: %d traces, %d %s rounds from %s",
		len(batch), len(results), replayConfig.Strategy, fromFixture)
	return writeFixture(f, outPath)
}

func loadOrSimulate(config experiment.Config, start configuration.Configuration, rng *rand.Rand) ([]trace.Trace, error) {
	labeler, err := objective.NewLabeler(config.Objective)
	if err != nil {
		return nil, err
	}
	if batchPath != "" {
		batch, err := trace.LoadBatch(batchPath)
		if err != nil {
			return nil, err
		}
		return labeler.Label(start.LabelTraces(batch)), nil
	}
	sim := highway.NewSimulator(config.Simulation, logger.Named("highway"))
	return labeler.Label(start.LabelTraces(sim.Run(start, rng))), nil
}

// #endregion extract

// #region output

func newFixture(start configuration.Configuration, batch []trace.Trace, config replay.ReplayConfig) *replay.Fixture {
	f := &replay.Fixture{
		Traces: batch,
		Config: replay.FromReplayConfig(config),
	}
	for _, n := range start.Norms() {
		f.Norms = append(f.Norms, replay.FromNorm(n))
	}
	return f
}

func writeFixture(f *replay.Fixture, path string) error {
	if err := replay.SaveFixture(path, f); err != nil {
		return err
	}
	fmt.Printf("Wrote fixture to %s\n", path)
	return nil
}

// #endregion output
