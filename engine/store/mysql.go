package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLLedger is a MySQL-backed Ledger for deployments that already run a
// MySQL instance for other services and want planning history alongside
// it rather than a separate SQLite file.
type MySQLLedger struct {
	db *sql.DB
}

// NewMySQLLedger opens a connection using dsn (see
// github.com/go-sql-driver/mysql's DSN format) and migrates its schema.
func NewMySQLLedger(dsn string) (*MySQLLedger, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql ledger: %w", err)
	}
	l := &MySQLLedger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *MySQLLedger) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS plan_constructions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			plan_id VARCHAR(255) NOT NULL,
			targets TEXT NOT NULL,
			step_count INT NOT NULL,
			ambiguous TINYINT NOT NULL,
			error TEXT NOT NULL,
			INDEX idx_plan_constructions_plan_id (plan_id)
		)
	`)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(`
		CREATE TABLE IF NOT EXISTS plan_executions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			plan_id VARCHAR(255) NOT NULL,
			worker_calls INT NOT NULL,
			peak_registers INT NOT NULL,
			error TEXT NOT NULL,
			INDEX idx_plan_executions_plan_id (plan_id)
		)
	`)
	return err
}

func (l *MySQLLedger) RecordConstruction(ctx context.Context, rec ConstructionRecord) error {
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

func (l *MySQLLedger) RecordExecution(ctx context.Context, rec ExecutionRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO plan_executions (plan_id, worker_calls, peak_registers, error) VALUES (?, ?, ?, ?)`,
		rec.PlanID, rec.WorkerCalls, rec.PeakRegisters, rec.Error)
	return err
}

func (l *MySQLLedger) Constructions(ctx context.Context, planID string) ([]ConstructionRecord, error) {
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

func (l *MySQLLedger) Executions(ctx context.Context, planID string) ([]ExecutionRecord, error) {
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
func (l *MySQLLedger) Close() error {
	return l.db.Close()
}
