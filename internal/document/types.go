// Package document implements the Output Builder: assembling the final
// ReporterDocument from orchestrator state and a capture manager's
// per-test console buffers, per spec.md §4.4 and the schema in §6.1.
package document

import "github.com/hansjm10/go-llm-reporter/internal/testmodel"

// Environment is summary.environment. Field names match spec.md §6.1's
// stable JSON schema; see internal/envprobe for how "node" comes to carry
// Go runtime metadata.
type Environment struct {
	OS             OSInfo       `json:"os"`
	Node           RuntimeInfo  `json:"node"`
	Framework      *VersionInfo `json:"vitest,omitempty"`
	PackageManager string       `json:"packageManager,omitempty"`
	CI             bool         `json:"ci,omitempty"`
}

type OSInfo struct {
	Platform string `json:"platform"`
	Release  string `json:"release,omitempty"`
	Arch     string `json:"arch"`
	Version  string `json:"version,omitempty"`
}

type RuntimeInfo struct {
	Version string `json:"version"`
	Runtime string `json:"runtime,omitempty"`
}

type VersionInfo struct {
	Version string `json:"version"`
}

// Summary is the document's always-present, never-truncated floor.
type Summary struct {
	Total       int         `json:"total"`
	Passed      int         `json:"passed"`
	Failed      int         `json:"failed"`
	Skipped     int         `json:"skipped"`
	DurationMs  int64       `json:"durationMs"`
	Timestamp   string      `json:"timestamp"`
	Environment Environment `json:"environment"`
}

// AssertionView is a TestFailure's error.assertion block.
type AssertionView struct {
	Expected     interface{} `json:"expected"`
	Actual       interface{} `json:"actual"`
	ExpectedType string      `json:"expectedType"`
	ActualType   string      `json:"actualType"`
	Operator     string      `json:"operator"`
}

// ContextView is a TestFailure's error.context block.
type ContextView struct {
	Code       []string `json:"code"`
	LineNumber int      `json:"lineNumber"`
}

// ErrorView is a TestFailure's error block, and also the shape used for a
// RetryAttemptView's archived error.
type ErrorView struct {
	Message     string                 `json:"message"`
	Type        string                 `json:"type"`
	StackFrames []testmodel.StackFrame `json:"stackFrames,omitempty"`
	Assertion   *AssertionView         `json:"assertion,omitempty"`
	Context     *ContextView           `json:"context,omitempty"`
	Diff        *testmodel.Diff        `json:"diff,omitempty"`
}

// ConsoleEventView is one entry of a TestFailure's consoleEvents.
type ConsoleEventView struct {
	Level         testmodel.Level        `json:"level"`
	Message       string                 `json:"message"`
	TimestampMs   *int64                 `json:"timestampMs,omitempty"`
	Origin        testmodel.ConsoleOrigin `json:"origin,omitempty"`
	Deduplication *testmodel.Deduplication `json:"deduplication,omitempty"`
}

// RetryAttemptView is one entry of a TestFailure's retryInfo.attempts.
type RetryAttemptView struct {
	AttemptNumber int        `json:"attemptNumber"`
	Status        testmodel.Status `json:"status"`
	DurationMs    int64      `json:"durationMs"`
	Error         *ErrorView `json:"error,omitempty"`
	Timestamp     string     `json:"timestamp"`
}

// RetryInfoView is a TestFailure's retryInfo block.
type RetryInfoView struct {
	Attempts []RetryAttemptView `json:"attempts"`
}

// TestFailure is one entry of the document's top-level failures list.
type TestFailure struct {
	Test          string             `json:"test"`
	FileRelative  string             `json:"fileRelative"`
	StartLine     int                `json:"startLine"`
	EndLine       int                `json:"endLine"`
	Suite         []string           `json:"suite,omitempty"`
	Error         ErrorView          `json:"error"`
	ConsoleEvents []ConsoleEventView `json:"consoleEvents,omitempty"`
	RetryInfo     *RetryInfoView     `json:"retryInfo,omitempty"`

	// endedAtMs orders failures by completion time (spec.md §5); it carries
	// no meaning to a reader of the emitted document.
	endedAtMs int64
}

// TestResult is one entry of the document's top-level passed or skipped
// list.
type TestResult struct {
	Test         string           `json:"test"`
	FileRelative string           `json:"fileRelative"`
	StartLine    int              `json:"startLine"`
	EndLine      int              `json:"endLine"`
	Status       testmodel.Status `json:"status"`
	DurationMs   *int64           `json:"duration,omitempty"`
	Suite        []string         `json:"suite,omitempty"`

	endedAtMs int64
}

// ReporterDocument is the complete, final emitted entity.
type ReporterDocument struct {
	Summary     Summary            `json:"summary"`
	Failures    []TestFailure      `json:"failures,omitempty"`
	Passed      []TestResult       `json:"passed,omitempty"`
	Skipped     []TestResult       `json:"skipped,omitempty"`
	SuccessLogs []ConsoleEventView `json:"successLogs,omitempty"`
}
