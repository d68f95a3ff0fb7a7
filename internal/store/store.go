package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	config_yaml  TEXT,
	header       TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS metric_rows (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	phase        TEXT NOT NULL,
	strategy     TEXT NOT NULL,
	trial        INTEGER NOT NULL,
	row_values   TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS revisions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	trial        INTEGER NOT NULL,
	strategy     TEXT NOT NULL,
	round        INTEGER NOT NULL,
	action       TEXT NOT NULL,
	reason       TEXT,
	config_key   TEXT NOT NULL,
	score        REAL NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Separator joins header and row cells in a single column.
const Separator = ";"

// #endregion schema

// #region store-struct
// Store keeps experiment runs and their metric rows in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. Writes go through a
// single connection, which also keeps ":memory:" databases coherent.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region runs
// CreateRun inserts a running run with a fresh id.
func (s *Store) CreateRun(name, configYAML string, header []string) (Run, error) {
	run := Run{
		RunID:      uuid.New().String(),
		Name:       name,
		ConfigYAML: configYAML,
		Header:     append([]string(nil), header...),
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, name, config_yaml, header, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Name, run.ConfigYAML, strings.Join(run.Header, Separator),
		run.Status, run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun records the final status of a run.
func (s *Store) FinishRun(runID, status string) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		status, time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(runID string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT run_id, name, config_yaml, header, status, started_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, name, config_yaml, header, status, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var configYAML, finished sql.NullString
	var header, started string
	if err := sc.Scan(&run.RunID, &run.Name, &configYAML, &header, &run.Status, &started, &finished); err != nil {
		return Run{}, err
	}
	run.ConfigYAML = configYAML.String
	run.Header = splitValues(header)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	return run, nil
}

// #endregion runs

// #region metric-rows
// MetricRows returns the metric rows of a run in insertion order.
func (s *Store) MetricRows(runID string) ([]MetricRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, phase, strategy, trial, row_values, created_at
		 FROM metric_rows WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list metric rows: %w", err)
	}
	defer rows.Close()

	var out []MetricRecord
	for rows.Next() {
		var rec MetricRecord
		var values, created string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Phase, &rec.Strategy, &rec.Trial, &values, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Values = splitValues(values)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Revisions returns the revision rounds of a run ordered by trial, strategy
// and round.
func (s *Store) Revisions(runID string) ([]RevisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, trial, strategy, round, action, reason, config_key, score, created_at
		 FROM revisions WHERE run_id = ? ORDER BY trial, strategy, round, id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []RevisionRecord
	for rows.Next() {
		var rec RevisionRecord
		var reason sql.NullString
		var created string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Trial, &rec.Strategy, &rec.Round,
			&rec.Action, &reason, &rec.Config, &rec.Score, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Reason = reason.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// JoinValues renders cells for the row_values column.
func JoinValues(values []string) string {
	return strings.Join(values, Separator)
}

func splitValues(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, Separator)
}

// #endregion metric-rows
