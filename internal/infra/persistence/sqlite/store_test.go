package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"sweepcore/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewStore(path, "sweep")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if store.RunID() == 0 {
		t.Fatalf("expected assigned run id")
	}
	if err := store.MarkStarted(ctx); err != nil {
		t.Fatalf("mark started: %v", err)
	}
	idx, err := store.AddResults(ctx, []domain.Record{
		{"v": 1.5, "i": 0.25},
		{"v": 2.5, "i": 0.5},
	})
	if err != nil {
		t.Fatalf("add results: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected write index 0, got %d", idx)
	}

	rows, err := store.DB().Query(`SELECT payload FROM results WHERE run_id=? ORDER BY idx`, store.RunID())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var decoded []map[string]any
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			t.Fatalf("scan: %v", err)
		}
		var rec map[string]any
		if err := json.Unmarshal(payload, &rec); err != nil {
			t.Fatalf("decode: %v", err)
		}
		decoded = append(decoded, rec)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 persisted rows, got %d", len(decoded))
	}
	if decoded[0]["v"].(float64) != 1.5 || decoded[1]["i"].(float64) != 0.5 {
		t.Fatalf("persisted payload mismatch: %v", decoded)
	}

	if err := store.MarkCompleted(ctx); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if _, err := store.AddResults(ctx, []domain.Record{{"v": 3.0}}); err == nil {
		t.Fatalf("expected write after completion to fail")
	}
}

func TestStoreSecondRunGetsFreshID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	first, err := NewStore(path, "one")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	defer func() { _ = first.Close() }()
	second, err := NewStore(path, "two")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	defer func() { _ = second.Close() }()
	if first.RunID() == second.RunID() {
		t.Fatalf("expected distinct run ids, both %d", first.RunID())
	}
	if _, err := second.AddResults(context.Background(), []domain.Record{{"x": 1.0}}); err != nil {
		t.Fatalf("add to second run: %v", err)
	}
	n, err := first.NumberOfResults(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("first run should stay empty, got %d (%v)", n, err)
	}
}
