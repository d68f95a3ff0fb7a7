package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/experiment"
	"github.com/danielpatrickdp/norm-revision/internal/logging"
	"github.com/danielpatrickdp/norm-revision/internal/store"
)

var (
	configPath  string
	dbPath      string
	csvPath     string
	trials      int
	concurrency int
	logLevel    string
	jsonLogs    bool

	logger *zap.Logger
)

// #region main

var rootCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Run norm revision trials on simulated highway traffic",
	Long: `experiment samples an initial norm configuration per trial, simulates
highway traffic under it, labels the traces against the system objective and
revises the configuration with every configured strategy. Metric rows go to a
';'-separated CSV file and, with --db, to a SQLite store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(logLevel, jsonLogs)
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
	RunE: runExperiment,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "experiment YAML (defaults apply when empty)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "SQLite store for runs, metric rows and revisions")
	rootCmd.Flags().StringVar(&csvPath, "csv", "results.metrics.csv", "metric rows CSV output (empty to skip)")
	rootCmd.Flags().IntVar(&trials, "trials", 0, "override the number of trials")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "override the number of concurrent trials")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit JSON logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// #endregion main

// #region run

func runExperiment(cmd *cobra.Command, args []string) error {
	config := experiment.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = experiment.LoadConfig(configPath); err != nil {
			return err
		}
	}
	if trials > 0 {
		config.Trials = trials
	}
	if concurrency > 0 {
		config.Concurrency = concurrency
	}

	runner, err := experiment.NewRunner(config, logger)
	if err != nil {
		return err
	}

	var st *store.Store
	var run store.Run
	if dbPath != "" {
		if st, err = store.NewStore(dbPath); err != nil {
			return err
		}
		defer st.Close()
		raw, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		if run, err = st.CreateRun(config.Name, string(raw), config.Header()); err != nil {
			return err
		}
		logger.Info("run created", zap.String("run_id", run.RunID))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := runner.Run(ctx)
	if err != nil {
		if st != nil {
			_ = st.FinishRun(run.RunID, store.StatusFailed)
		}
		return err
	}

	var rows []eval.Row
	for _, res := range results {
		rows = append(rows, res.Rows...)
	}
	if csvPath != "" {
		if err := writeCSV(csvPath, config.Header(), rows); err != nil {
			return err
		}
		logger.Info("metric rows written", zap.String("path", csvPath), zap.Int("rows", len(rows)))
	}
	if st != nil {
		if err := persist(st, run.RunID, results); err != nil {
			_ = st.FinishRun(run.RunID, store.StatusFailed)
			return err
		}
		if err := st.FinishRun(run.RunID, store.StatusDone); err != nil {
			return err
		}
	}

	printSummary(results)
	return nil
}

func writeCSV(path string, header []string, rows []eval.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := eval.WriteCSV(f, header, rows); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

func persist(st *store.Store, runID string, results []experiment.TrialResult) error {
	db := st.DB()
	for _, res := range results {
		for _, row := range res.Rows {
			if err := logging.LogMetricRow(db, runID, row); err != nil {
				return err
			}
		}
		for _, rev := range res.Revisions {
			err := logging.LogRevision(db, store.RevisionRecord{
				RunID:    runID,
				Trial:    res.Trial,
				Strategy: rev.Strategy,
				Round:    rev.Round,
				Action:   rev.Action,
				Reason:   rev.Reason,
				Config:   rev.Config,
				Score:    rev.Score,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// printSummary prints the mean kept score after the last round per strategy.
func printSummary(results []experiment.TrialResult) {
	type acc struct {
		sum float64
		n   int
	}
	last := make(map[string]*acc)
	var order []string
	for _, res := range results {
		final := make(map[string]float64)
		for _, rev := range res.Revisions {
			if last[rev.Strategy] == nil {
				last[rev.Strategy] = &acc{}
				order = append(order, rev.Strategy)
			}
			final[rev.Strategy] = rev.Score
		}
		for s, score := range final {
			last[s].sum += score
			last[s].n++
		}
	}

	fmt.Printf("%-14s| %-7s| %s\n", "Strategy", "Trials", "Final score")
	fmt.Printf("%-14s+%-7s+%s\n", "--------------", "--------", "------------")
	for _, s := range order {
		a := last[s]
		fmt.Printf("%-14s| %-7d| %.4f\n", s, a.n, a.sum/float64(a.n))
	}
}

// #endregion run
