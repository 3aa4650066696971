// Package postgres provides a Postgres-backed result store that mirrors the
// in-memory semantics while appending record batches as JSONB rows.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sweepcore/internal/infra/persistence/memory"
	"sweepcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.ResultStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenResultStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/sweepcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists run records to Postgres while reusing the in-memory store
// for subscribers and fast reads.
type Store struct {
	mem *memory.Store
	db  *sql.DB
	mu  sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), applies the schema, and registers a new run.
func NewStore(dsn, runName string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		return nil, err
	}
	if runName == "" {
		runName = "results"
	}
	var runID int64
	if err := db.QueryRowContext(ctx,
		`INSERT INTO runs(name, created_at) VALUES($1,$2) RETURNING run_id`,
		runName, time.Now().UTC()).Scan(&runID); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	mem := memory.NewStoreWithRunID(runID, runName)
	return &Store{mem: mem, db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id BIGINT NOT NULL REFERENCES runs(run_id),
			idx BIGINT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (run_id, idx)
		)`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// RunID returns the database-assigned run identifier.
func (s *Store) RunID() int64 { return s.mem.RunID() }

// AddResults appends a batch to the results table, then mirrors it in memory.
// The database write happens first so a failed flush can be retried with the
// same batch.
func (s *Store) AddResults(ctx context.Context, records []domain.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.mem.NumberOfResults(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("encode record %d: %w", n+i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results(run_id, idx, payload) VALUES($1,$2,$3)`,
			s.mem.RunID(), n+i, payload); err != nil {
			return 0, fmt.Errorf("insert result %d: %w", n+i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return s.mem.AddResults(ctx, records)
}

// NumberOfResults returns the count of persisted records for this run.
func (s *Store) NumberOfResults(ctx context.Context) (int, error) {
	return s.mem.NumberOfResults(ctx)
}

// MarkStarted stamps the run row and the in-memory mirror.
func (s *Store) MarkStarted(ctx context.Context) error {
	if err := s.mem.MarkStarted(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE runs SET started_at=$1 WHERE run_id=$2`, time.Now().UTC(), s.mem.RunID()); err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	return nil
}

// MarkCompleted stamps the run row and the in-memory mirror.
func (s *Store) MarkCompleted(ctx context.Context) error {
	if err := s.mem.MarkCompleted(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE runs SET completed_at=$1 WHERE run_id=$2`, time.Now().UTC(), s.mem.RunID()); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// Subscribe registers a flush observer on the in-memory mirror.
func (s *Store) Subscribe(sub domain.Subscriber) string { return s.mem.Subscribe(sub) }

// UnsubscribeAll removes every registered observer.
func (s *Store) UnsubscribeAll() { s.mem.UnsubscribeAll() }

// Records returns all records written in this run, in write order.
func (s *Store) Records() []domain.Record { return s.mem.Records() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
