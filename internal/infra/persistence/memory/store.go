// Package memory provides an in-memory implementation of the result store
// used for tests and ephemeral acquisition sessions.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sweepcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain
// persistence interface.
var _ domain.ResultStore = (*Store)(nil)

var runSeq int64

type subscription struct {
	id         string
	sub        domain.Subscriber
	lastNotify time.Time
	pending    int
}

// Store keeps all run state in memory: the appended records, lifecycle
// markers, and registered subscribers. A mutex guards the internals so the
// store can be inspected while an acquisition loop writes to it.
type Store struct {
	mu        sync.Mutex
	runID     int64
	name      string
	records   []domain.Record
	started   bool
	completed bool
	subs      []*subscription
	subSeq    int
	now       func() time.Time
}

// NewStore constructs a store for a fresh run with a generated run id.
func NewStore(name string) *Store {
	return NewStoreWithRunID(atomic.AddInt64(&runSeq, 1), name)
}

// NewStoreWithRunID constructs a store bound to an externally assigned run id.
// Durable backends use this to mirror their own run row.
func NewStoreWithRunID(runID int64, name string) *Store {
	if name == "" {
		name = "results"
	}
	return &Store{runID: runID, name: name, now: time.Now}
}

// RunID returns the run identifier.
func (s *Store) RunID() int64 { return s.runID }

// Name returns the run name.
func (s *Store) Name() string { return s.name }

// MarkStarted transitions the run to started. Starting a completed run fails.
func (s *Store) MarkStarted(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return fmt.Errorf("run %d already completed", s.runID)
	}
	s.started = true
	return nil
}

// MarkCompleted transitions the run to completed. Completing twice is a no-op.
func (s *Store) MarkCompleted(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true
	return nil
}

// Started reports whether MarkStarted ran.
func (s *Store) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Completed reports whether MarkCompleted ran.
func (s *Store) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// AddResults appends a batch of records and returns the index of the first
// written record. Writing to a completed run fails.
func (s *Store) AddResults(_ context.Context, records []domain.Record) (int, error) {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return 0, fmt.Errorf("run %d already completed", s.runID)
	}
	writeIndex := len(s.records)
	s.records = append(s.records, records...)
	total := len(s.records)
	due := s.dueSubscribersLocked(len(records))
	s.mu.Unlock()

	// Callbacks run outside the lock so they may inspect the store.
	for _, d := range due {
		d.sub.Callback(records, total, d.sub.State)
	}
	return writeIndex, nil
}

func (s *Store) dueSubscribersLocked(added int) []*subscription {
	var due []*subscription
	now := s.now()
	for _, sub := range s.subs {
		sub.pending += added
		minCount := sub.sub.MinCount
		if minCount < 1 {
			minCount = 1
		}
		if sub.pending < minCount {
			continue
		}
		if !sub.lastNotify.IsZero() && now.Sub(sub.lastNotify) < sub.sub.MinWait {
			continue
		}
		sub.pending = 0
		sub.lastNotify = now
		due = append(due, sub)
	}
	return due
}

// NumberOfResults returns the count of stored records.
func (s *Store) NumberOfResults(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

// Records returns a copy of all stored records in write order.
func (s *Store) Records() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Subscribe registers a flush observer. Observers with a nil callback are
// ignored and receive an empty handle.
func (s *Store) Subscribe(sub domain.Subscriber) string {
	if sub.Callback == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subSeq++
	id := fmt.Sprintf("sub-%d-%d", s.runID, s.subSeq)
	s.subs = append(s.subs, &subscription{id: id, sub: sub})
	return id
}

// UnsubscribeAll removes every registered observer.
func (s *Store) UnsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = nil
}

// SetNowFunc overrides the clock used for subscriber throttling in tests.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
}
