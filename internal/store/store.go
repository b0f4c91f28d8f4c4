// Package store persists terminal runs to SQLite so the daemon can serve
// past results across restarts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/regretlab/adversary-sim/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id             TEXT PRIMARY KEY,
	status             TEXT NOT NULL,
	created_at_unix_ms INTEGER NOT NULL,
	started_at_unix_ms INTEGER,
	ended_at_unix_ms   INTEGER,
	error              TEXT,
	input_json         TEXT NOT NULL,
	result_json        TEXT
);
`

// Store is a SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

// ArchivedRun is one persisted run with its input and result.
type ArchivedRun struct {
	Run    models.Run
	Input  *models.RunInput
	Result *models.RunResult
}

// Open opens (or creates) the archive at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun upserts a run with its input and, when present, its result.
func (s *Store) SaveRun(run models.Run, input *models.RunInput, result *models.RunResult) error {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	var resultJSON any
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = string(b)
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, status, created_at_unix_ms, started_at_unix_ms, ended_at_unix_ms, error, input_json, result_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			started_at_unix_ms = excluded.started_at_unix_ms,
			ended_at_unix_ms = excluded.ended_at_unix_ms,
			error = excluded.error,
			result_json = excluded.result_json`,
		run.ID, string(run.Status), run.CreatedAtUnixMs, run.StartedAtUnixMs,
		run.EndedAtUnixMs, run.Error, string(inputJSON), resultJSON,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun reads one archived run. The second return value reports whether
// the run was found.
func (s *Store) GetRun(runID string) (*ArchivedRun, bool, error) {
	row := s.db.QueryRow(
		`SELECT run_id, status, created_at_unix_ms, started_at_unix_ms, ended_at_unix_ms, error, input_json, result_json
		 FROM runs WHERE run_id = ?`, runID)

	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, true, nil
}

// ListRuns reads all archived runs ordered by creation time, newest first.
func (s *Store) ListRuns() ([]*ArchivedRun, error) {
	rows, err := s.db.Query(
		`SELECT run_id, status, created_at_unix_ms, started_at_unix_ms, ended_at_unix_ms, error, input_json, result_json
		 FROM runs ORDER BY created_at_unix_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*ArchivedRun
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*ArchivedRun, error) {
	var (
		rec        ArchivedRun
		status     string
		started    sql.NullInt64
		ended      sql.NullInt64
		errMsg     sql.NullString
		inputJSON  string
		resultJSON sql.NullString
	)
	err := row.Scan(&rec.Run.ID, &status, &rec.Run.CreatedAtUnixMs,
		&started, &ended, &errMsg, &inputJSON, &resultJSON)
	if err != nil {
		return nil, err
	}

	rec.Run.Status = models.ParseRunStatus(status)
	rec.Run.StartedAtUnixMs = started.Int64
	rec.Run.EndedAtUnixMs = ended.Int64
	rec.Run.Error = errMsg.String

	var input models.RunInput
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	rec.Input = &input

	if resultJSON.Valid {
		var result models.RunResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		rec.Result = &result
	}

	return &rec, nil
}
