// Package testmodel holds the data model shared by every reporter
// component: TestRecord, TestError, ConsoleEvent and the small value types
// they're built from. No package in this module owns a mutable collection
// of these types except the one named for it in SPEC_FULL.md's package map
// (internal/console owns ConsoleBuffer, internal/dedup owns
// DeduplicationCache, internal/orchestrator owns OrchestratorState) —
// testmodel itself is pure data, no behavior beyond small accessors.
package testmodel

import "time"

// Status is a TestRecord's terminal or in-flight state.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ConsoleOrigin identifies which stream a ConsoleEvent came from.
type ConsoleOrigin string

const (
	OriginStdout ConsoleOrigin = "stdout"
	OriginStderr ConsoleOrigin = "stderr"
	OriginAPI    ConsoleOrigin = "api"
)

// Level is a console log severity.
type Level string

const (
	LevelLog   Level = "log"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
)

// StackFrame is one frame of a parsed error stack.
type StackFrame struct {
	FileRelative  string `json:"fileRelative"`
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	InProject     bool   `json:"inProject"`
	InNodeModules bool   `json:"inNodeModules"`
	// Unresolved is set when the frame's file could not be classified as
	// either in-project or in a dependency directory (SPEC_FULL §11.5).
	Unresolved bool `json:"-"`
}

// Assertion carries the expected/actual comparison for an assertion failure.
type Assertion struct {
	Expected     Value  `json:"-"`
	Actual       Value  `json:"-"`
	ExpectedType string `json:"expectedType"`
	ActualType   string `json:"actualType"`
	Operator     string `json:"operator"`
}

// CodeContext is a window of source lines around an error's pointer line.
type CodeContext struct {
	CodeLines   []CodeLine `json:"codeLines"`
	PointerLine int        `json:"pointerLine"`
}

// CodeLine is one source line within a CodeContext.
type CodeLine struct {
	LineNumber int    `json:"lineNumber"`
	Text       string `json:"text"`
}

// ChangedPath is one structural difference found while diffing expected vs
// actual.
type ChangedPath struct {
	Path     string `json:"path"`
	Expected Value  `json:"-"`
	Actual   Value  `json:"-"`
}

// Diff holds structured diff insights for an assertion failure.
type Diff struct {
	Summary        string         `json:"summary"`
	ChangedPaths   []ChangedPath  `json:"changedPaths,omitempty"`
	MissingKeys    []string       `json:"missingKeys,omitempty"`
	ExtraKeys      []string       `json:"extraKeys,omitempty"`
	LengthMismatch *LengthMismatch `json:"lengthMismatch,omitempty"`
	Truncated      bool           `json:"-"`
}

// LengthMismatch records an array-length disagreement between expected and
// actual.
type LengthMismatch struct {
	Expected int `json:"expected"`
	Actual   int `json:"actual"`
}

// TestError is a structured failure or unhandled error.
type TestError struct {
	Message     string       `json:"message"`
	Type        string       `json:"type"`
	StackFrames []StackFrame `json:"stackFrames,omitempty"`
	Assertion   *Assertion   `json:"assertion,omitempty"`
	Context     *CodeContext `json:"context,omitempty"`
	Diff        *Diff        `json:"diff,omitempty"`
}

// RetryAttempt is one prior attempt of a retried test.
type RetryAttempt struct {
	AttemptNumber int        `json:"attemptNumber"`
	Status        Status     `json:"status"`
	DurationMs    int64      `json:"durationMs"`
	Error         *TestError `json:"error,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// RetryInfo is the ordered sequence of attempts preceding a test's current
// generation.
type RetryInfo struct {
	Attempts []RetryAttempt `json:"attempts"`
}

// ConsoleEventRef indexes a ConsoleEvent inside the owning test's
// ConsoleBuffer; TestRecord never embeds ConsoleEvent directly, so the
// data model stays a forest (SPEC_FULL Design Notes, "no cyclic
// ownership").
type ConsoleEventRef struct {
	Index int
}

// TestRecord is the central per-test entity.
type TestRecord struct {
	TestID       string
	Name         string
	SuitePath    []string
	FileRelative string
	StartLine    int
	EndLine      int

	Status Status

	StartedAtMs int64
	EndedAtMs   int64
	DurationMs  int64

	Error     *TestError
	RetryInfo *RetryInfo

	ConsoleEvents []ConsoleEventRef

	// Generation increments on every retry; a retry resets Status to
	// StatusPending under a new generation while the previous generation's
	// record is archived into RetryInfo.
	Generation int
}

// IsTerminal reports whether status is one of the run's terminal states.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}
