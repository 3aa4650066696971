package core

import (
	"context"
	"time"
)

// MetricsRecorder receives one observation per engine operation (add_result,
// flush, close) with its outcome and duration.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan terminates a single traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer opens spans around engine operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// NoopMetricsRecorder ignores all observations.
type NoopMetricsRecorder struct{}

// Observe implements MetricsRecorder.
func (NoopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// NoopTracer produces spans that do nothing.
type NoopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Start implements Tracer.
func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}
