package main

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/norm-revision/internal/logging"
	"github.com/danielpatrickdp/norm-revision/internal/replay"
)

var (
	fixturePath string
	strategy    string
	rounds      int
	logLevel    string

	logger   *zap.Logger
	exitCode int
)

// #region main

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay revision rounds from a fixture and compare with the expected results",
	Long: `replay loads a JSON fixture (norms, labeled traces, revision settings and
expected results), runs the revision rounds in memory and prints a comparison
table. Exit code 0 when every round matches, 1 on divergence, 2 on error.`,
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
	RunE: runFixtureMode,
}

func init() {
	rootCmd.Flags().StringVar(&fixturePath, "fixture", "", "path to fixture JSON (required)")
	rootCmd.Flags().StringVar(&strategy, "strategy", "", "override the fixture's revision strategy")
	rootCmd.Flags().IntVar(&rounds, "rounds", 0, "override the fixture's round count")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.MarkFlagRequired("fixture")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region output

func runFixtureMode(cmd *cobra.Command, args []string) error {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		return fmt.Errorf("load fixture: %w", err)
	}
	if strategy != "" {
		f.Config.Strategy = strategy
	}
	if rounds > 0 {
		f.Config.Rounds = rounds
	}

	start, err := f.ToConfiguration()
	if err != nil {
		return fmt.Errorf("fixture norms: %w", err)
	}
	config, err := f.Config.ToReplayConfig()
	if err != nil {
		return fmt.Errorf("fixture config: %w", err)
	}

	logger.Info("replaying fixture",
		zap.String("fixture", fixturePath),
		zap.String("strategy", string(config.Strategy)),
		zap.Int("rounds", config.Rounds),
		zap.Int("traces", len(f.Traces)),
	)
	results, final, err := replay.Replay(start, f.Traces, config, logger)
	if err != nil {
		return err
	}

	exitCode = printComparison(results, f.ExpectedResults)

	s := replay.Summarize(results, final)
	fmt.Printf("Rounds: %d commit, %d no_op, %d gate_reject\n", s.Commits, s.NoOps, s.GateRejects)
	fmt.Printf("Final configuration: %s\n", s.FinalConfig)
	return nil
}

// printComparison outputs a comparison table and returns exit code.
// Rounds without an expected result are listed but not counted.
func printComparison(results []replay.ReplayResult, expected []replay.FixtureExpectedResult) int {
	fmt.Printf("%-6s| %-12s| %-12s| %-9s| %-9s| %s\n", "Round", "Expected", "Replayed", "Exp", "Score", "Match")
	fmt.Printf("%-6s+%-12s+%-12s+%-9s+%-9s+%s\n",
		"------", "-------------", "-------------", "----------", "----------", "------")

	matches, total := 0, 0
	for i, r := range results {
		if i >= len(expected) {
			fmt.Printf("%-6d| %-12s| %-12s| %-9s| %-9.4f| %s\n", r.Round, "-", r.Action, "-", r.Score, "-")
			continue
		}
		total++
		exp := expected[i]
		match := "DIFF"
		if resultMatches(exp, r) {
			match = "OK"
			matches++
		}
		fmt.Printf("%-6d| %-12s| %-12s| %-9.4f| %-9.4f| %s\n", r.Round, exp.Action, r.Action, exp.Score, r.Score, match)
	}

	diverge := total - matches
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", total, matches, diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

// resultMatches compares an expected round with the replayed one.
func resultMatches(exp replay.FixtureExpectedResult, got replay.ReplayResult) bool {
	return exp.Action == got.Action && math.Abs(exp.Score-got.Score) <= 1e-9
}

// #endregion output

