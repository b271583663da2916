package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/fleetsim/fleetsim/pkg/api"
)

// Store is a SQLite-backed run archive. The simulator never reads state
// back from it; it exists so finished runs can be inspected afterwards.
type Store struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// SaveRun archives a finished scenario run in one transaction.
func (s *Store) SaveRun(ctx context.Context, report api.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, provisioned, failed_injections, recoveries_initiated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.RunID, report.StartedAt, report.FinishedAt,
		report.Counters.Provisioned, report.Counters.FailedInjections, report.Counters.RecoveriesInitiated)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for id, svc := range report.Services {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_services (run_id, service_id, state, instance_count, cpu_load, memory_load, throughput)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, id, string(svc.State), svc.InstanceCount, svc.CPULoad, svc.MemoryLoad, svc.Throughput)
		if err != nil {
			return fmt.Errorf("insert service %s: %w", id, err)
		}
	}

	for i, ev := range report.Events {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_events (run_id, seq, ts, message) VALUES (?, ?, ?, ?)`,
			report.RunID, i, ev.Timestamp, ev.Message)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	for i, al := range report.Alerts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_alerts (run_id, seq, ts, message, severity) VALUES (?, ?, ?, ?, ?)`,
			report.RunID, i, al.Timestamp, al.Message, string(al.Severity))
		if err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
	}

	return tx.Commit()
}
