package store

import "time"

// #region run-status
// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// #endregion run-status

// #region run-record
// Run is one experiment invocation. Header holds the metric-row column
// names shared by every row of the run.
type Run struct {
	RunID      string
	Name       string
	ConfigYAML string
	Header     []string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// #endregion run-record

// #region metric-record
// MetricRecord is one stored metric row. Values is in Run.Header order.
type MetricRecord struct {
	ID        int64
	RunID     string
	Phase     string
	Strategy  string
	Trial     int
	Values    []string
	CreatedAt time.Time
}

// #endregion metric-record

// #region revision-record
// RevisionRecord is the outcome of one revision round in a trial.
type RevisionRecord struct {
	ID        int64
	RunID     string
	Trial     int
	Strategy  string
	Round     int
	Action    string // "commit" | "no_op" | "gate_reject"
	Reason    string
	Config    string // canonical key of the configuration kept after the round
	Score     float64
	CreatedAt time.Time
}

// #endregion revision-record
