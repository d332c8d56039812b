package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteLedger is a SQLite-backed Ledger, for local persistence across
// process restarts without an external database.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteLedger opens (creating if necessary) a SQLite database at path
// and migrates its schema.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite ledger: %w", err)
	}
	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS plan_constructions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id TEXT NOT NULL,
			targets TEXT NOT NULL,
			step_count INTEGER NOT NULL,
			ambiguous INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS plan_executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id TEXT NOT NULL,
			worker_calls INTEGER NOT NULL,
			peak_registers INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_plan_constructions_plan_id ON plan_constructions(plan_id);
		CREATE INDEX IF NOT EXISTS idx_plan_executions_plan_id ON plan_executions(plan_id);
	`)
	return err
}

func (l *SQLiteLedger) RecordConstruction(ctx context.Context, rec ConstructionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	targets, err := json.Marshal(rec.Targets)
	if err != nil {
		return fmt.Errorf("store: marshal targets: %w", err)
	}
	ambiguous := 0
	if rec.Ambiguous {
		ambiguous = 1
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO plan_constructions (plan_id, targets, step_count, ambiguous, error) VALUES (?, ?, ?, ?, ?)`,
		rec.PlanID, string(targets), rec.StepCount, ambiguous, rec.Error)
	return err
}

func (l *SQLiteLedger) RecordExecution(ctx context.Context, rec ExecutionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO plan_executions (plan_id, worker_calls, peak_registers, error) VALUES (?, ?, ?, ?)`,
		rec.PlanID, rec.WorkerCalls, rec.PeakRegisters, rec.Error)
	return err
}

func (l *SQLiteLedger) Constructions(ctx context.Context, planID string) ([]ConstructionRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT plan_id, targets, step_count, ambiguous, error FROM plan_constructions WHERE plan_id = ?`, planID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ConstructionRecord
	for rows.Next() {
		var rec ConstructionRecord
		var targetsJSON string
		var ambiguous int
		if err := rows.Scan(&rec.PlanID, &targetsJSON, &rec.StepCount, &ambiguous, &rec.Error); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(targetsJSON), &rec.Targets); err != nil {
			return nil, fmt.Errorf("store: unmarshal targets: %w", err)
		}
		rec.Ambiguous = ambiguous != 0
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) Executions(ctx context.Context, planID string) ([]ExecutionRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT plan_id, worker_calls, peak_registers, error FROM plan_executions WHERE plan_id = ?`, planID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		if err := rows.Scan(&rec.PlanID, &rec.WorkerCalls, &rec.PeakRegisters, &rec.Error); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
