package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/store"
)

// #region log-metric-row
// LogMetricRow writes one metric row of runID to the metric_rows table.
func LogMetricRow(db *sql.DB, runID string, row eval.Row) error {
	_, err := db.Exec(
		`INSERT INTO metric_rows (run_id, phase, strategy, trial, row_values, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID,
		row.Phase,
		row.Strategy,
		row.Trial,
		store.JoinValues(row.Values()),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log metric row: %w", err)
	}
	return nil
}

// #endregion log-metric-row

// #region log-revision
// LogRevision writes a revision round to the revisions table.
func LogRevision(db *sql.DB, rec store.RevisionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO revisions (run_id, trial, strategy, round, action, reason, config_key, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Trial,
		rec.Strategy,
		rec.Round,
		rec.Action,
		nullIfEmpty(rec.Reason),
		rec.Config,
		rec.Score,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log revision: %w", err)
	}
	return nil
}

// #endregion log-revision

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
