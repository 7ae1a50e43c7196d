// Package logging provides the structured logging surface used by every
// subsystem of the reporter. It wraps log/slog behind a small subsystem-
// tagged API so that internal/orchestrator, internal/capture, internal/dedup
// and internal/truncate all log the same way without importing slog
// directly.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("orchestrator", "run %s started", runID)
//	logging.Error("capture", err, "failed to attribute console event")
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the severity of a log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy fmt.Stringer.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Entry is a structured log entry, also handed to anything that consumes
// the optional Stream mode channel (e.g. an external metrics collector).
type Entry struct {
	Timestamp time.Time
	Level     LogLevel
	Subsystem string
	Message   string
	Err       error
}

const streamBufferSize = 2048

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
	streamCh      chan Entry
	streaming     bool
)

// Init initializes the package-level logger for direct-writer mode. It is
// safe to call more than once (e.g. from tests); the most recent call wins.
func Init(level LogLevel, output io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	streaming = false
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})
	defaultLogger = slog.New(handler)
}

// InitStream initializes the logger in channel mode: every log call is
// delivered on the returned channel instead of (not in addition to) being
// written through the handler, so a caller embedding the reporter in its
// own UI can render log lines itself. An entry is dropped silently if the
// channel is full.
func InitStream(level LogLevel, bufferSize int) <-chan Entry {
	mu.Lock()
	defer mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = streamBufferSize
	}
	streaming = true
	streamCh = make(chan Entry, bufferSize)
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level.slogLevel()})
	defaultLogger = slog.New(handler)
	return streamCh
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	mu.RLock()
	logger := defaultLogger
	isStreaming := streaming
	ch := streamCh
	mu.RUnlock()

	if logger == nil {
		return
	}
	if !isStreaming && !logger.Enabled(context.Background(), level.slogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	if isStreaming {
		entry := Entry{Timestamp: time.Now(), Level: level, Subsystem: subsystem, Message: msg, Err: err}
		select {
		case ch <- entry:
		default:
			// Channel full: the entry is lost rather than blocking the
			// caller's hot path (console capture must never stall a test).
		}
		return
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.LogAttrs(context.Background(), level.slogLevel(), msg, attrs...)
}

// Debug logs a debug-level message tagged with subsystem.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an info-level message tagged with subsystem.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warn-level message tagged with subsystem.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error-level message tagged with subsystem, carrying err.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// ReportEvent is a structured record of a single Late Truncator invocation,
// logged at INFO with a greppable [REPORT] prefix — the reporter's analogue
// of the teacher's [AUDIT] lines.
type ReportEvent struct {
	Phase           string
	OriginalTokens  int
	TruncatedTokens int
	PhasesApplied   []string
}

// Report logs a structured truncation/budget event.
func Report(event ReportEvent) {
	parts := make([]string, 0, 4)
	parts = append(parts, "phase="+event.Phase)
	parts = append(parts, fmt.Sprintf("originalTokens=%d", event.OriginalTokens))
	parts = append(parts, fmt.Sprintf("truncatedTokens=%d", event.TruncatedTokens))
	if len(event.PhasesApplied) > 0 {
		parts = append(parts, "phasesApplied="+strings.Join(event.PhasesApplied, ","))
	}
	logInternal(LevelInfo, "truncate", nil, "[REPORT] %s", strings.Join(parts, " "))
}
