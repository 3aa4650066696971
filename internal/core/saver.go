package core

import (
	"context"
	"fmt"
	"time"

	"sweepcore/pkg/domain"
)

// Saver is the buffered writer for one run: it reconciles submitted partial
// results into records, buffers them and flushes to the result store on a
// time-driven schedule. All calls must come from a single acquisition
// goroutine; the flush check runs synchronously inside AddResult, never on a
// background timer.
type Saver struct {
	graph       domain.Graph
	plans       map[string]producerPlan
	store       ResultStore
	buffer      []Record
	writePeriod time.Duration
	lastFlush   time.Time

	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	archiver *RunArchiver
	afterRun []func(context.Context) error

	closed    bool
	lastIndex int
	now       func() time.Time
}

// RunID identifies the run this saver writes to.
func (s *Saver) RunID() int64 { return s.store.RunID() }

// PointsWritten reports how many records the store has persisted so far.
func (s *Saver) PointsWritten(ctx context.Context) (int, error) {
	return s.store.NumberOfResults(ctx)
}

// Pending returns the number of buffered, not yet flushed records.
func (s *Saver) Pending() int { return len(s.buffer) }

// AddResult reconciles one submission into records and enqueues them. Any
// validation failure aborts the whole call; nothing from a rejected call is
// buffered. When the write period has elapsed the buffer is flushed; a flush
// failure is logged and retried later, it never fails the submission.
func (s *Saver) AddResult(ctx context.Context, results ...Result) (err error) {
	start := s.now()
	_, span := s.tracer.Start(ctx, "add_result")
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, "add_result", err == nil, s.now().Sub(start))
	}()

	if s.closed {
		return domain.AlreadyClosedError{}
	}
	flat, err := s.unpack(results)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	if err = s.graph.ValidateSubset(names); err != nil {
		return fmt.Errorf("missing required parameters: %w", err)
	}
	if err = s.validateShapes(flat); err != nil {
		return err
	}
	if err = s.validateTypes(flat); err != nil {
		return err
	}
	records, err := s.finalize(flat)
	if err != nil {
		return err
	}
	s.buffer = append(s.buffer, records...)

	if s.now().Sub(s.lastFlush) > s.writePeriod {
		if flushErr := s.Flush(ctx); flushErr != nil {
			s.logger.Warnf("periodic flush failed, keeping %d buffered records: %v", len(s.buffer), flushErr)
		}
	}
	return nil
}

// Flush hands the buffered records to the store. On failure the buffer is
// left untouched so the next flush retries the same (possibly grown) batch.
func (s *Saver) Flush(ctx context.Context) (err error) {
	start := s.now()
	_, span := s.tracer.Start(ctx, "flush")
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, "flush", err == nil, s.now().Sub(start))
	}()

	if len(s.buffer) == 0 {
		s.lastFlush = s.now()
		return nil
	}
	index, err := s.store.AddResults(ctx, s.buffer)
	if err != nil {
		return fmt.Errorf("flush %d records: %w", len(s.buffer), err)
	}
	s.logger.Debugf("flushed %d records at write index %d", len(s.buffer), index)
	s.lastIndex = index
	// The flushed batch is handed to the store and on to subscribers, so the
	// backing array must not be reused for later submissions.
	s.buffer = nil
	s.lastFlush = s.now()
	return nil
}

// LastWriteIndex returns the store index of the most recent successful flush.
func (s *Saver) LastWriteIndex() int { return s.lastIndex }

// Close ends the run: a final flush, observer teardown, completion marking,
// after-run hooks and optional archival. Every step runs even when an
// earlier one fails; the first error is returned. A second Close fails with
// AlreadyClosedError.
func (s *Saver) Close(ctx context.Context) error {
	if s.closed {
		return domain.AlreadyClosedError{}
	}
	s.closed = true

	var firstErr error
	if err := s.Flush(ctx); err != nil {
		s.logger.Warnf("final flush failed: %v", err)
		firstErr = err
	}
	s.store.UnsubscribeAll()
	if err := s.store.MarkCompleted(ctx); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("mark completed: %w", err)
		}
	}
	for _, hook := range s.afterRun {
		if err := hook(ctx); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("after-run hook: %w", err)
			}
		}
	}
	if s.archiver != nil && firstErr == nil {
		if _, err := s.archiver.ArchiveRun(ctx, s.store); err != nil {
			s.logger.Warnf("run archival failed: %v", err)
			firstErr = err
		}
	}
	s.metrics.Observe(ctx, "close", firstErr == nil, 0)
	return firstErr
}

// SetNowFunc overrides the wall clock, for tests.
func (s *Saver) SetNowFunc(now func() time.Time) {
	s.now = now
	s.lastFlush = now()
}
