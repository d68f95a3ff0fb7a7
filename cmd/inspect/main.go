package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/norm-revision/internal/store"
)

var (
	dbPath  string
	last    int
	runID   string
	showRow bool
	jsonOut bool
)

// #region main

var rootCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "List experiment runs, their revision rounds and metric rows",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewStore(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		if runID != "" {
			return runDetailMode(st, runID, showRow, jsonOut)
		}
		return runListMode(st, last, jsonOut)
	},
}

func init() {
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to the experiment store (required)")
	rootCmd.Flags().IntVar(&last, "last", 20, "show N most recent runs")
	rootCmd.Flags().StringVar(&runID, "run", "", "show single run detail")
	rootCmd.Flags().BoolVar(&showRow, "rows", false, "with --run, print the metric rows as ';'-separated CSV")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	rootCmd.MarkFlagRequired("db")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID      string `json:"run_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Rows       int    `json:"rows"`
	Revisions  int    `json:"revisions"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// Store returns DESC, reverse for chronological
	listRows := make([]listRow, len(runs))
	for i, r := range runs {
		rows, err := st.MetricRows(r.RunID)
		if err != nil {
			return err
		}
		revs, err := st.Revisions(r.RunID)
		if err != nil {
			return err
		}
		lr := listRow{
			RunID:     r.RunID,
			Name:      r.Name,
			Status:    r.Status,
			Rows:      len(rows),
			Revisions: len(revs),
			StartedAt: r.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
		if !r.FinishedAt.IsZero() {
			lr.FinishedAt = r.FinishedAt.Format("2006-01-02T15:04:05Z")
		}
		listRows[len(runs)-1-i] = lr
	}

	if jsonOut {
		return printJSON(listRows)
	}

	fmt.Printf("%-10s  %-14s  %-8s  %6s  %9s  %s\n", "Run", "Name", "Status", "Rows", "Revisions", "Started")
	fmt.Printf("%-10s+-%-14s+-%-8s+-%6s+-%9s+-%s\n",
		"----------", "--------------", "--------", "------", "---------", "--------------------")
	for _, r := range listRows {
		fmt.Printf("%-10s  %-14s  %-8s  %6d  %9d  %s\n", shortID(r.RunID), r.Name, r.Status, r.Rows, r.Revisions, r.StartedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	RunID     string           `json:"run_id"`
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	Config    string           `json:"config"`
	Revisions []revisionDetail `json:"revisions"`
	Header    []string         `json:"header,omitempty"`
	Rows      [][]string       `json:"rows,omitempty"`
}

type revisionDetail struct {
	Trial    int     `json:"trial"`
	Strategy string  `json:"strategy"`
	Round    int     `json:"round"`
	Action   string  `json:"action"`
	Score    float64 `json:"score"`
	Config   string  `json:"config"`
	Reason   string  `json:"reason,omitempty"`
}

func runDetailMode(st *store.Store, id string, withRows, jsonOut bool) error {
	run, err := resolveRun(st, id)
	if err != nil {
		return err
	}
	revs, err := st.Revisions(run.RunID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:  run.RunID,
		Name:   run.Name,
		Status: run.Status,
		Config: run.ConfigYAML,
	}
	for _, r := range revs {
		out.Revisions = append(out.Revisions, revisionDetail{
			Trial:    r.Trial,
			Strategy: r.Strategy,
			Round:    r.Round,
			Action:   r.Action,
			Score:    r.Score,
			Config:   r.Config,
			Reason:   r.Reason,
		})
	}
	if withRows {
		rows, err := st.MetricRows(run.RunID)
		if err != nil {
			return err
		}
		out.Header = run.Header
		for _, r := range rows {
			out.Rows = append(out.Rows, r.Values)
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	if withRows {
		fmt.Println(strings.Join(out.Header, store.Separator))
		for _, r := range out.Rows {
			fmt.Println(strings.Join(r, store.Separator))
		}
		return nil
	}

	fmt.Printf("Run:     %s\n", out.RunID)
	fmt.Printf("Name:    %s\n", out.Name)
	fmt.Printf("Status:  %s\n", out.Status)
	fmt.Printf("\nRevisions:\n")
	fmt.Printf("  %5s  %-14s  %5s  %-12s  %7s  %s\n", "Trial", "Strategy", "Round", "Action", "Score", "Configuration")
	for _, r := range out.Revisions {
		fmt.Printf("  %5d  %-14s  %5d  %-12s  %7.4f  %s\n", r.Trial, r.Strategy, r.Round, r.Action, r.Score, r.Config)
	}
	return nil
}

// resolveRun accepts a full run id or the 8-character prefix printed by list mode.
func resolveRun(st *store.Store, id string) (store.Run, error) {
	if run, err := st.GetRun(id); err == nil {
		return run, nil
	}
	runs, err := st.ListRuns(-1)
	if err != nil {
		return store.Run{}, err
	}
	var match []store.Run
	for _, r := range runs {
		if strings.HasPrefix(r.RunID, id) {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return store.Run{}, fmt.Errorf("run %s not found", id)
	case 1:
		return match[0], nil
	default:
		return store.Run{}, fmt.Errorf("run prefix %s is ambiguous (%d runs)", id, len(match))
	}
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
