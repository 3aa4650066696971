// Package sqlite provides a SQLite-backed result store. Each batch of records
// is appended to a results table as JSON rows so a crashed acquisition leaves
// everything written up to the last successful flush.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sweepcore/internal/infra/persistence/memory"
	"sweepcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.ResultStore = (*Store)(nil)

// Store persists run records to SQLite while mirroring them in memory for
// subscribers and fast reads.
type Store struct {
	mem  *memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path and registers a new run
// under the given name.
func NewStore(path, runName string) (*Store, error) {
	if path == "" {
		path = "sweepcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if runName == "" {
		runName = "results"
	}
	res, err := db.Exec(`INSERT INTO runs(name, created_at) VALUES(?,?)`, runName, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	mem := memory.NewStoreWithRunID(runID, runName)
	return &Store{mem: mem, db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT
	)`); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS results (
		run_id INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (run_id, idx)
	)`); err != nil {
		return fmt.Errorf("create results table: %w", err)
	}
	return nil
}

// RunID returns the database-assigned run identifier.
func (s *Store) RunID() int64 { return s.mem.RunID() }

// AddResults appends a batch to the results table, then mirrors it in memory
// so subscribers observe the write. The database write happens first; if it
// fails nothing is appended and the caller may retry the same batch.
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
			`INSERT INTO results(run_id, idx, payload) VALUES(?,?,?)`,
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
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET started_at=? WHERE run_id=?`,
		time.Now().UTC().Format(time.RFC3339Nano), s.mem.RunID())
	if err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	return nil
}

// MarkCompleted stamps the run row and the in-memory mirror.
func (s *Store) MarkCompleted(ctx context.Context) error {
	if err := s.mem.MarkCompleted(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET completed_at=? WHERE run_id=?`,
		time.Now().UTC().Format(time.RFC3339Nano), s.mem.RunID())
	if err != nil {
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

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
