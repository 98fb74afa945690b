// Package riftlog provides the three leveled logging streams used across the
// tracking core: Ops (actionable warnings and lifecycle events), Diag
// (day-to-day diagnostics) and Trace (high-frequency per-frame telemetry).
package riftlog

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Level identifies a logging stream.
type Level int

const (
	// Ops routes to the ops stream: actionable warnings/errors and lifecycle events
	// (dropped frames, lost delay slots, bootstrap failures).
	Ops Level = iota
	// Diag routes to the diag stream: day-to-day diagnostics (exposure updates,
	// pose accepted/rejected).
	Diag
	// Trace routes to the trace stream: high-frequency per-frame telemetry
	// (queue pushes, worker wakeups, per-stage timings).
	Trace
)

// Writers holds the io.Writers for each logging stream.
type Writers struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetWriters configures all three logging streams at once. Pass nil for any
// writer to disable that stream.
func SetWriters(w Writers) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[rift] ", w.Ops)
	diagLogger = newLogger("[rift] ", w.Diag)
	traceLogger = newLogger("[rift] ", w.Trace)
}

// SetWriter configures a single logging stream. Pass nil to disable it.
func SetWriter(level Level, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	switch level {
	case Ops:
		opsLogger = newLogger("[rift] ", w)
	case Diag:
		diagLogger = newLogger("[rift] ", w)
	case Trace:
		traceLogger = newLogger("[rift] ", w)
	default:
		panic(fmt.Sprintf("riftlog.SetWriter: unknown Level %d", level))
	}
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
