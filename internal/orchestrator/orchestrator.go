// Package orchestrator implements the Event Orchestrator: the state
// machine that turns an unordered stream of framework lifecycle events
// into a consistent per-test record, under concurrent invocation from
// multiple worker callbacks.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hansjm10/go-llm-reporter/internal/capture"
	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
	"github.com/hansjm10/go-llm-reporter/pkg/logging"
)

// DefaultGracePeriod is the spec.md §4.1 default window, after a test's
// terminal transition, during which late onUserConsoleLog calls for it are
// still accepted.
const DefaultGracePeriod = 100 * time.Millisecond

// maxOrphanQueue bounds the short-lived queue of console events that
// arrive with no testId at all (spec.md §4.1).
const maxOrphanQueue = 256

// Config controls an Orchestrator's grace-period and console-routing
// behavior.
type Config struct {
	GracePeriod time.Duration
	// Capture receives every attributed onUserConsoleLog call so it lands
	// in the right test's ConsoleBuffer. May be nil in tests that only
	// exercise the state machine.
	Capture *capture.Manager
}

// Summary mirrors spec.md §3 OrchestratorState.summary.
type Summary struct {
	Total      int
	Passed     int
	Failed     int
	Skipped    int
	DurationMs int64
	Timestamp  time.Time
}

// orphanEvent is one console event that arrived with no testId, retained
// only for diagnostics — the Console Capture layer is the one responsible
// for attributing events via ambient context (spec.md §4.2); by the time
// one reaches here unattributed, it stays unattributed.
type orphanEvent struct {
	level     testmodel.Level
	args      []string
	origin    testmodel.ConsoleOrigin
	arrivedAt time.Time
}

// Orchestrator is the Event Orchestrator component. mu guards records,
// activeTests, moduleErrors and orphans; it is held only for the duration
// of a record mutation, never across a call into the Capture manager or
// any other I/O, per spec.md §4.1.
type Orchestrator struct {
	mu sync.Mutex

	cfg   Config
	runID string

	records      map[string]*testmodel.TestRecord
	activeTests  map[string]struct{}
	moduleErrors []testmodel.TestError
	orphans      []orphanEvent

	startedAt time.Time
	ended     bool
	endReason string
}

// New constructs an Orchestrator, stamping it with a fresh run ID (used to
// correlate this run's document and log lines downstream).
func New(cfg Config) *Orchestrator {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Orchestrator{
		cfg:         cfg,
		runID:       uuid.NewString(),
		records:     make(map[string]*testmodel.TestRecord),
		activeTests: make(map[string]struct{}),
		startedAt:   time.Now(),
	}
}

// RunID returns the run-scoped identifier stamped at construction.
func (o *Orchestrator) RunID() string { return o.runID }

// OnTestReady implements Hooks.
func (o *Orchestrator) OnTestReady(testID string, metadata TestMetadata) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.records[testID]; ok {
		// Idempotent: a duplicate onTestReady for a record already tracked
		// (e.g. a framework that re-announces on rescan) leaves state as is.
		return
	}
	o.records[testID] = &testmodel.TestRecord{
		TestID:       testID,
		Name:         metadata.Name,
		SuitePath:    metadata.SuitePath,
		FileRelative: metadata.FileRelative,
		StartLine:    metadata.StartLine,
		EndLine:      metadata.EndLine,
		Status:       testmodel.StatusPending,
	}
	o.activeTests[testID] = struct{}{}
}

// OnTestStart implements Hooks.
func (o *Orchestrator) OnTestStart(testID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	record := o.recordOrSynthesizeLocked(testID)
	record.Status = testmodel.StatusRunning
	record.StartedAtMs = time.Now().UnixMilli()
	o.activeTests[testID] = struct{}{}
}

// OnTestResult implements Hooks.
func (o *Orchestrator) OnTestResult(testID string, result Result) {
	o.mu.Lock()

	record := o.recordOrSynthesizeLocked(testID)
	if record.Status.IsTerminal() {
		status := record.Status
		o.mu.Unlock()
		logging.Warn("orchestrator", "discarding duplicate onTestResult for %s (already %s)", testID, status)
		return
	}

	if record.StartedAtMs == 0 {
		// onResult without prior onStart: start is synthesized.
		record.StartedAtMs = time.Now().UnixMilli()
	}

	record.Status = result.Status
	record.Error = result.Error
	record.EndedAtMs = time.Now().UnixMilli()
	record.DurationMs = record.EndedAtMs - record.StartedAtMs
	delete(o.activeTests, testID)
	o.mu.Unlock()
}

// OnTestRetry implements Hooks. The current generation's outcome is
// archived into RetryInfo and the record resets to pending under a new
// generation; console events that arrive for testID afterward — even
// during the now-superseded generation's still-open grace period — are
// attributed to this new generation, since RetryInfo.Attempts is the only
// place the old generation's data lives once this call returns (spec.md
// §9 Open Question 1).
func (o *Orchestrator) OnTestRetry(testID string, previousError *testmodel.TestError) {
	o.mu.Lock()
	defer o.mu.Unlock()

	record := o.recordOrSynthesizeLocked(testID)

	attempt := testmodel.RetryAttempt{
		AttemptNumber: record.Generation,
		Status:        record.Status,
		DurationMs:    record.DurationMs,
		Error:         previousError,
		Timestamp:     time.Now(),
	}
	if record.RetryInfo == nil {
		record.RetryInfo = &testmodel.RetryInfo{}
	}
	record.RetryInfo.Attempts = append(record.RetryInfo.Attempts, attempt)

	record.Generation++
	record.Status = testmodel.StatusPending
	record.StartedAtMs = 0
	record.EndedAtMs = 0
	record.DurationMs = 0
	record.Error = nil

	o.activeTests[testID] = struct{}{}
}

// OnUserConsoleLog implements Hooks. A testID-less event is parked in the
// bounded orphan queue — attributing it is Console Capture's job via
// ambient context (spec.md §4.2), not something this hook can retry.
func (o *Orchestrator) OnUserConsoleLog(testID string, level testmodel.Level, args []string, origin testmodel.ConsoleOrigin) {
	o.mu.Lock()
	if testID == "" {
		o.enqueueOrphanLocked(level, args, origin)
		o.mu.Unlock()
		return
	}

	record, ok := o.records[testID]
	if !ok {
		o.enqueueOrphanLocked(level, args, origin)
		o.mu.Unlock()
		return
	}
	if record.Status.IsTerminal() {
		elapsed := time.Since(time.UnixMilli(record.EndedAtMs))
		if elapsed > o.cfg.GracePeriod {
			o.mu.Unlock()
			logging.Warn("orchestrator", "dropping console log for %s: grace period elapsed (%s)", testID, elapsed)
			return
		}
	}
	record.ConsoleEvents = append(record.ConsoleEvents, testmodel.ConsoleEventRef{Index: len(record.ConsoleEvents)})
	o.mu.Unlock()

	if o.cfg.Capture != nil {
		o.cfg.Capture.Ingest(testID, level, args)
	}
}

func (o *Orchestrator) enqueueOrphanLocked(level testmodel.Level, args []string, origin testmodel.ConsoleOrigin) {
	if len(o.orphans) >= maxOrphanQueue {
		o.orphans = o.orphans[1:]
	}
	o.orphans = append(o.orphans, orphanEvent{level: level, args: args, origin: origin, arrivedAt: time.Now()})
}

// OnUnhandledError implements Hooks. An error with no owning test becomes
// both a moduleErrors entry and a synthetic "Unhandled Error" failure
// record, per spec.md §4.1.
func (o *Orchestrator) OnUnhandledError(err testmodel.TestError) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.moduleErrors = append(o.moduleErrors, err)

	syntheticID := fmt.Sprintf("unhandled-%s", uuid.NewString())
	now := time.Now().UnixMilli()
	o.records[syntheticID] = &testmodel.TestRecord{
		TestID:      syntheticID,
		Name:        "Unhandled Error",
		Status:      testmodel.StatusFailed,
		Error:       &err,
		StartedAtMs: now,
		EndedAtMs:   now,
	}
}

// OnRunEnd implements Hooks. Every still-active test is coerced to failed
// with a generated IncompleteTestError.
func (o *Orchestrator) OnRunEnd(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now().UnixMilli()
	for testID := range o.activeTests {
		record, ok := o.records[testID]
		if !ok {
			continue
		}
		record.Status = testmodel.StatusFailed
		record.Error = &testmodel.TestError{
			Message: "run ended before this test completed",
			Type:    "IncompleteTestError",
		}
		record.EndedAtMs = now
		if record.StartedAtMs > 0 {
			record.DurationMs = record.EndedAtMs - record.StartedAtMs
		}
	}
	o.activeTests = make(map[string]struct{})
	o.ended = true
	o.endReason = reason
}

// recordOrSynthesizeLocked returns testID's record, creating a minimal
// pending one if it doesn't exist yet. Callers must hold mu.
func (o *Orchestrator) recordOrSynthesizeLocked(testID string) *testmodel.TestRecord {
	if record, ok := o.records[testID]; ok {
		return record
	}
	record := &testmodel.TestRecord{TestID: testID, Status: testmodel.StatusPending}
	o.records[testID] = record
	return record
}

// Records returns the orchestrator's test records. The map and the
// *TestRecord values it holds are safe to read without further
// synchronization once the run has ended (spec.md §3: "read-only after
// run-end"); callers during an in-flight run should only call this for
// diagnostics, not rely on it reflecting a consistent snapshot across
// concurrent mutation.
func (o *Orchestrator) Records() map[string]*testmodel.TestRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*testmodel.TestRecord, len(o.records))
	for k, v := range o.records {
		out[k] = v
	}
	return out
}

// ModuleErrors returns the unhandled/module-load errors collected this run.
func (o *Orchestrator) ModuleErrors() []testmodel.TestError {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]testmodel.TestError, len(o.moduleErrors))
	copy(out, o.moduleErrors)
	return out
}

// Summary computes the run's aggregate counters from the current record
// set. It is recomputed on demand rather than maintained incrementally, to
// keep every mutation path above a single, simple assignment.
func (o *Orchestrator) Summary() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Summary{Timestamp: time.Now()}
	for _, record := range o.records {
		s.Total++
		switch record.Status {
		case testmodel.StatusPassed:
			s.Passed++
		case testmodel.StatusFailed:
			s.Failed++
		case testmodel.StatusSkipped:
			s.Skipped++
		}
	}
	s.DurationMs = time.Since(o.startedAt).Milliseconds()
	return s
}
