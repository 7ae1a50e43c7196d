package document

import (
	"sort"
	"time"

	"github.com/hansjm10/go-llm-reporter/internal/capture"
	"github.com/hansjm10/go-llm-reporter/internal/envprobe"
	"github.com/hansjm10/go-llm-reporter/internal/orchestrator"
	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

// Builder assembles a ReporterDocument from an orchestrator's records and
// a capture manager's per-test console buffers. It performs no I/O and
// holds no lock of its own — all synchronization is the collaborators'.
type Builder struct {
	orchestrator *orchestrator.Orchestrator
	capture      *capture.Manager
	env          envprobe.Snapshot
}

// NewBuilder constructs a Builder. env is typically captured once, at
// reporter construction, by internal/envprobe.
func NewBuilder(o *orchestrator.Orchestrator, cap *capture.Manager, env envprobe.Snapshot) *Builder {
	return &Builder{orchestrator: o, capture: cap, env: env}
}

// Build assembles the document. Call this only after OnRunEnd, when
// OrchestratorState is read-only (spec.md §3).
func (b *Builder) Build() *ReporterDocument {
	records := b.orchestrator.Records()
	summary := b.orchestrator.Summary()

	doc := &ReporterDocument{
		Summary: Summary{
			Total:       summary.Total,
			Passed:      summary.Passed,
			Failed:      summary.Failed,
			Skipped:     summary.Skipped,
			DurationMs:  summary.DurationMs,
			Timestamp:   summary.Timestamp.UTC().Format(time.RFC3339),
			Environment: buildEnvironment(b.env),
		},
	}

	for _, record := range records {
		switch record.Status {
		case testmodel.StatusFailed:
			doc.Failures = append(doc.Failures, b.buildFailure(record))
		case testmodel.StatusPassed:
			doc.Passed = append(doc.Passed, buildResult(record))
		case testmodel.StatusSkipped:
			doc.Skipped = append(doc.Skipped, buildResult(record))
		}
	}

	// spec.md §5: "the output lists failures in the order of test
	// completion" — EndedAtMs is the closest deterministic proxy available
	// once records have been collected out of an unordered map.
	sort.Slice(doc.Failures, func(i, j int) bool { return doc.Failures[i].endedAtMs < doc.Failures[j].endedAtMs })
	sort.Slice(doc.Passed, func(i, j int) bool { return doc.Passed[i].endedAtMs < doc.Passed[j].endedAtMs })
	sort.Slice(doc.Skipped, func(i, j int) bool { return doc.Skipped[i].endedAtMs < doc.Skipped[j].endedAtMs })

	return doc
}

func buildEnvironment(snap envprobe.Snapshot) Environment {
	env := Environment{
		OS: OSInfo{
			Platform: snap.OS.Platform,
			Arch:     snap.OS.Arch,
			Version:  snap.OS.Version,
		},
		Node: RuntimeInfo{
			Version: snap.Runtime.Version,
			Runtime: snap.Runtime.Runtime,
		},
		PackageManager: snap.PackageManager,
		CI:             snap.CI,
	}
	if snap.FrameworkVersion != "" {
		env.Framework = &VersionInfo{Version: snap.FrameworkVersion}
	}
	return env
}

func (b *Builder) buildFailure(record *testmodel.TestRecord) TestFailure {
	tf := TestFailure{
		Test:         record.Name,
		FileRelative: record.FileRelative,
		StartLine:    record.StartLine,
		EndLine:      record.EndLine,
		Suite:        record.SuitePath,
	}
	tf.endedAtMs = record.EndedAtMs

	if record.Error != nil {
		tf.Error = buildErrorView(record.Error)
	}
	if b.capture != nil {
		tf.ConsoleEvents = buildConsoleEvents(b.capture.Events(record.TestID), record.StartedAtMs)
	}
	if record.RetryInfo != nil {
		tf.RetryInfo = buildRetryInfo(record.RetryInfo)
	}
	return tf
}

func buildErrorView(err *testmodel.TestError) ErrorView {
	ev := ErrorView{
		Message:     err.Message,
		Type:        err.Type,
		StackFrames: err.StackFrames,
		Diff:        err.Diff,
	}
	if err.Assertion != nil {
		ev.Assertion = &AssertionView{
			Expected:     testmodel.ToJSONValue(err.Assertion.Expected),
			Actual:       testmodel.ToJSONValue(err.Assertion.Actual),
			ExpectedType: err.Assertion.ExpectedType,
			ActualType:   err.Assertion.ActualType,
			Operator:     err.Assertion.Operator,
		}
	}
	if err.Context != nil {
		lines := make([]string, len(err.Context.CodeLines))
		for i, cl := range err.Context.CodeLines {
			lines[i] = cl.Text
		}
		ev.Context = &ContextView{Code: lines, LineNumber: err.Context.PointerLine}
	}
	return ev
}

func buildConsoleEvents(events []testmodel.ConsoleEvent, testStartedAtMs int64) []ConsoleEventView {
	if len(events) == 0 {
		return nil
	}
	out := make([]ConsoleEventView, 0, len(events))
	for _, e := range events {
		if e.Truncated {
			out = append(out, ConsoleEventView{Message: e.Message})
			continue
		}
		view := ConsoleEventView{
			Level:         e.Level,
			Message:       e.Message,
			Origin:        e.Origin,
			Deduplication: e.Deduplication,
		}
		if testStartedAtMs > 0 && e.ArrivedAtMs > 0 {
			elapsed := e.ArrivedAtMs - testStartedAtMs
			view.TimestampMs = &elapsed
		}
		out = append(out, view)
	}
	return out
}

func buildRetryInfo(ri *testmodel.RetryInfo) *RetryInfoView {
	view := &RetryInfoView{Attempts: make([]RetryAttemptView, len(ri.Attempts))}
	for i, a := range ri.Attempts {
		attempt := RetryAttemptView{
			AttemptNumber: a.AttemptNumber,
			Status:        a.Status,
			DurationMs:    a.DurationMs,
			Timestamp:     a.Timestamp.UTC().Format(time.RFC3339),
		}
		if a.Error != nil {
			ev := buildErrorView(a.Error)
			attempt.Error = &ev
		}
		view.Attempts[i] = attempt
	}
	return view
}

func buildResult(record *testmodel.TestRecord) TestResult {
	tr := TestResult{
		Test:         record.Name,
		FileRelative: record.FileRelative,
		StartLine:    record.StartLine,
		EndLine:      record.EndLine,
		Status:       record.Status,
		Suite:        record.SuitePath,
	}
	tr.endedAtMs = record.EndedAtMs
	if record.DurationMs > 0 {
		d := record.DurationMs
		tr.DurationMs = &d
	}
	return tr
}
