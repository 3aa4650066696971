// Package core implements the result-reconciliation engine: producer
// registration against a dependency graph, unpacking of partial results,
// record finalization and the buffered run writer.
package core

import (
	"log"
	"os"

	"sweepcore/pkg/domain"
)

// Aliases for the domain contracts so callers of this package rarely need a
// direct domain import.
type (
	ParamSpec   = domain.ParamSpec
	ParamType   = domain.ParamType
	Producer    = domain.Producer
	Axis        = domain.Axis
	Component   = domain.Component
	Record      = domain.Record
	Result      = domain.Result
	ResultStore = domain.ResultStore
	Subscriber  = domain.Subscriber
)

// Logger is the minimal logging surface the engine needs. Flush failures are
// reported through Warnf and retried; Debugf carries per-batch diagnostics.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type stdLogger struct {
	l *log.Logger
}

// NewStdLogger returns a Logger writing to stderr with the given prefix.
func NewStdLogger(prefix string) Logger {
	return stdLogger{l: log.New(os.Stderr, prefix, log.LstdFlags|log.Lmsgprefix)}
}

func (s stdLogger) Debugf(format string, args ...any) { s.l.Printf("DEBUG "+format, args...) }
func (s stdLogger) Warnf(format string, args ...any)  { s.l.Printf("WARN "+format, args...) }

// NopLogger discards everything. Used as the default in tests.
type NopLogger struct{}

// Debugf implements Logger.
func (NopLogger) Debugf(string, ...any) {}

// Warnf implements Logger.
func (NopLogger) Warnf(string, ...any) {}
