package domain

import (
	"context"
	"time"
)

// Record is one flattened row of named values ready for persistence. Values
// are scalars (numbers or strings) or fixed-shape arrays.
type Record map[string]any

// Result is a single partial result: a producer identity paired with the
// value payload acquired for it. Payloads may be scalars, nested sequences,
// or *nd.Array values; bundle producers take one payload per component.
type Result struct {
	Name  string
	Value any
}

// Subscriber describes a callback notified about newly flushed records.
// Explicit per-run configuration replaces any ambient default-subscriber
// state.
type Subscriber struct {
	// Callback receives the new records, the total result count after the
	// write, and the subscriber's own state value.
	Callback func(records []Record, total int, state any)
	// MinWait is the minimum interval between invocations.
	MinWait time.Duration
	// MinCount is the minimum number of pending records before invocation.
	MinCount int
	// State is an arbitrary value handed back to every invocation.
	State any
}

// ResultStore is the narrow contract sweepcore requires from a run storage
// backend: an append-only row store with a result counter and run lifecycle
// markers.
type ResultStore interface {
	// RunID identifies the run this store instance belongs to.
	RunID() int64
	// AddResults appends a batch of records and returns the index of the
	// first written record.
	AddResults(ctx context.Context, records []Record) (int, error)
	// NumberOfResults returns the count of persisted records.
	NumberOfResults(ctx context.Context) (int, error)
	// MarkStarted transitions the run to the started state.
	MarkStarted(ctx context.Context) error
	// MarkCompleted transitions the run to the completed state.
	MarkCompleted(ctx context.Context) error
	// Subscribe registers a flush observer and returns its handle.
	Subscribe(sub Subscriber) string
	// UnsubscribeAll removes every registered observer.
	UnsubscribeAll()
}
