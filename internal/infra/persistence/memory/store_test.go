package memory

import (
	"context"
	"testing"
	"time"

	"sweepcore/pkg/domain"
)

func TestAddResultsReturnsWriteIndex(t *testing.T) {
	store := NewStore("sweep")
	ctx := context.Background()
	if err := store.MarkStarted(ctx); err != nil {
		t.Fatalf("mark started: %v", err)
	}
	idx, err := store.AddResults(ctx, []domain.Record{{"x": 1.0}, {"x": 2.0}})
	if err != nil {
		t.Fatalf("add results: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected write index 0, got %d", idx)
	}
	idx, err = store.AddResults(ctx, []domain.Record{{"x": 3.0}})
	if err != nil {
		t.Fatalf("add results: %v", err)
	}
	if idx != 2 {
		t.Fatalf("expected write index 2, got %d", idx)
	}
	n, err := store.NumberOfResults(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 results, got %d (%v)", n, err)
	}
}

func TestCompletedRunRejectsWrites(t *testing.T) {
	store := NewStore("")
	ctx := context.Background()
	if err := store.MarkCompleted(ctx); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if _, err := store.AddResults(ctx, []domain.Record{{"x": 1.0}}); err == nil {
		t.Fatalf("expected write to completed run to fail")
	}
	if err := store.MarkStarted(ctx); err == nil {
		t.Fatalf("expected start of completed run to fail")
	}
}

func TestSubscribersHonorMinCountAndMinWait(t *testing.T) {
	store := NewStore("sweep")
	now := time.Unix(0, 0)
	store.SetNowFunc(func() time.Time { return now })
	ctx := context.Background()

	var calls [][]domain.Record
	store.Subscribe(domain.Subscriber{
		MinCount: 2,
		MinWait:  time.Second,
		Callback: func(records []domain.Record, total int, state any) {
			calls = append(calls, records)
		},
	})

	if _, err := store.AddResults(ctx, []domain.Record{{"x": 1.0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("callback fired below MinCount")
	}
	if _, err := store.AddResults(ctx, []domain.Record{{"x": 2.0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one callback, got %d", len(calls))
	}

	// Within MinWait the pending count accumulates without firing.
	if _, err := store.AddResults(ctx, []domain.Record{{"x": 3.0}, {"x": 4.0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("callback fired inside MinWait window")
	}
	now = now.Add(2 * time.Second)
	if _, err := store.AddResults(ctx, []domain.Record{{"x": 5.0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected second callback after MinWait, got %d", len(calls))
	}

	store.UnsubscribeAll()
	if _, err := store.AddResults(ctx, []domain.Record{{"x": 6.0}, {"x": 7.0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("unsubscribed callback still fired")
	}
}

func TestSubscriberState(t *testing.T) {
	store := NewStore("sweep")
	state := map[string]int{}
	store.Subscribe(domain.Subscriber{
		State: state,
		Callback: func(records []domain.Record, total int, st any) {
			st.(map[string]int)["total"] = total
		},
	})
	if _, err := store.AddResults(context.Background(), []domain.Record{{"x": 1.0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if state["total"] != 1 {
		t.Fatalf("expected state updated with total 1, got %d", state["total"])
	}
}
