// Package truncate implements the Late Truncator: it shrinks an assembled
// ReporterDocument so that a caller-supplied token counter reports it
// under budget, preserving the most diagnostically valuable information
// first (spec.md §4.5).
package truncate

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hansjm10/go-llm-reporter/internal/document"
	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
	"github.com/hansjm10/go-llm-reporter/pkg/logging"
)

const maxMetrics = 100

// Character budgets named directly after spec.md §4.5's phase numbering.
const (
	phase2InfoWarnBudget  = 150
	phase2ErrorBudget     = 300
	phase2MaxStackFrames  = 10
	phase2MaxContextLines = 5
	phase2AssertionBudget = 250

	phase3ErrorMessageBudget = 512
	phase3ConsoleBudget      = 200
	phase3MaxStackFrames     = 5
)

// TokenCounter estimates the token cost of serialized text. The Late
// Truncator takes this as a capability rather than owning a tokenizer of
// its own — no tokenizer library appears anywhere in the example pack, so
// pretending to own an exact one would be invention; see DESIGN.md.
type TokenCounter func(text string) int

// DefaultTokenCounter is a character-count-based approximation (roughly 4
// characters per token), used when a caller has no tokenizer of its own.
func DefaultTokenCounter(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// Metrics is one ring-buffer entry recorded per Truncate invocation.
type Metrics struct {
	OriginalTokens  int
	TruncatedTokens int
	PhasesApplied   []string
	Timestamp       time.Time
}

// Config controls a Truncator's budget and token-counting strategy.
// InfoWarnBudget/ErrorBudget are spec.md §9's "empirical... may expose as
// tunables" per-category character caps for phase 2; a zero value falls
// back to the documented defaults (150/300).
type Config struct {
	MaxTokens      int
	Counter        TokenCounter
	InfoWarnBudget int
	ErrorBudget    int
}

// Truncator is the Late Truncator component. It holds no document state
// between calls — only the bounded metrics ring buffer accumulated across
// invocations.
type Truncator struct {
	mu      sync.Mutex
	cfg     Config
	metrics []Metrics
}

// New constructs a Truncator. A zero MaxTokens disables truncation
// entirely (Truncate becomes a no-op pass-through).
func New(cfg Config) *Truncator {
	if cfg.Counter == nil {
		cfg.Counter = DefaultTokenCounter
	}
	if cfg.InfoWarnBudget <= 0 {
		cfg.InfoWarnBudget = phase2InfoWarnBudget
	}
	if cfg.ErrorBudget <= 0 {
		cfg.ErrorBudget = phase2ErrorBudget
	}
	return &Truncator{cfg: cfg}
}

// Metrics returns a copy of the recorded invocation history, oldest first.
func (t *Truncator) Metrics() []Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Metrics, len(t.metrics))
	copy(out, t.metrics)
	return out
}

func (t *Truncator) recordMetrics(original, truncated int, phases []string) {
	t.mu.Lock()
	if len(t.metrics) >= maxMetrics {
		t.metrics = t.metrics[1:]
	}
	t.metrics = append(t.metrics, Metrics{
		OriginalTokens:  original,
		TruncatedTokens: truncated,
		PhasesApplied:   phases,
		Timestamp:       time.Now(),
	})
	t.mu.Unlock()

	if len(phases) > 0 {
		logging.Report(logging.ReportEvent{
			Phase:           phases[len(phases)-1],
			OriginalTokens:  original,
			TruncatedTokens: truncated,
			PhasesApplied:   phases,
		})
	}
}

func (t *Truncator) tokens(doc *document.ReporterDocument) int {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0
	}
	return t.cfg.Counter(string(raw))
}

// Truncate shrinks doc in place (it mutates and returns the same pointer)
// until it fits t.cfg.MaxTokens, applying spec.md §4.5's phases in order
// and stopping as soon as the budget is satisfied.
func (t *Truncator) Truncate(doc *document.ReporterDocument) *document.ReporterDocument {
	originalTokens := t.tokens(doc)
	if t.cfg.MaxTokens <= 0 || originalTokens <= t.cfg.MaxTokens {
		t.recordMetrics(originalTokens, originalTokens, nil)
		return doc
	}

	var applied []string
	under := func() bool { return t.tokens(doc) <= t.cfg.MaxTokens }

	// Phase 1: drop low-value sections.
	if len(doc.Passed) > 0 {
		doc.Passed = nil
		applied = append(applied, "phase1:drop-passed")
	}
	if under() {
		t.finish(doc, originalTokens, applied)
		return doc
	}
	if len(doc.Skipped) > 0 {
		doc.Skipped = nil
		applied = append(applied, "phase1:drop-skipped")
	}
	if under() {
		t.finish(doc, originalTokens, applied)
		return doc
	}

	// Phase 2: failure-focused trimming, applied fairly across failures.
	applyPhase2(doc, t.cfg.InfoWarnBudget, t.cfg.ErrorBudget)
	applied = append(applied, "phase2:failure-trim")
	if under() {
		t.finish(doc, originalTokens, applied)
		return doc
	}

	// Phase 3: progressive tightening.
	applyPhase3(doc)
	applied = append(applied, "phase3:tighten")
	if under() {
		t.finish(doc, originalTokens, applied)
		return doc
	}

	// Phase 4: cull lowest-priority failures until budget met or one left.
	cullCount := applyPhase4(doc, under)
	if cullCount > 0 {
		applied = append(applied, fmt.Sprintf("phase4:culled-%d", cullCount))
	}
	if under() {
		t.finish(doc, originalTokens, applied)
		return doc
	}

	// Phase 5: minimum-viable emission.
	applyPhase5(doc)
	applied = append(applied, "phase5:minimum-viable")

	t.finish(doc, originalTokens, applied)
	return doc
}

func (t *Truncator) finish(doc *document.ReporterDocument, originalTokens int, applied []string) {
	t.recordMetrics(originalTokens, t.tokens(doc), applied)
}

func applyPhase2(doc *document.ReporterDocument, infoWarnBudget, errorBudget int) {
	if len(doc.Failures) == 0 {
		return
	}
	for i := range doc.Failures {
		f := &doc.Failures[i]
		trimConsoleEvents(f, infoWarnBudget, errorBudget)
		f.Error.StackFrames = trimStackFrames(f.Error.StackFrames, phase2MaxStackFrames)
		trimContext(f)
		trimAssertion(&f.Error, phase2AssertionBudget)
	}
}

func applyPhase3(doc *document.ReporterDocument) {
	for i := range doc.Failures {
		f := &doc.Failures[i]
		if len(f.Error.Message) > phase3ErrorMessageBudget {
			f.Error.Message = f.Error.Message[:phase3ErrorMessageBudget-len("…")] + "…"
		}
		trimConsoleEvents(f, phase3ConsoleBudget, phase3ConsoleBudget)
		f.Error.StackFrames = trimStackFrames(f.Error.StackFrames, phase3MaxStackFrames)
	}
}

// applyPhase4 sorts failures by priority (in-project frame depth
// descending, stack length descending, assertion-diff presence
// descending) and drops the lowest-priority ones one at a time, checking
// the budget after each drop, until it is met or a single failure
// remains.
func applyPhase4(doc *document.ReporterDocument, under func() bool) int {
	if len(doc.Failures) <= 1 {
		return 0
	}
	sort.SliceStable(doc.Failures, func(i, j int) bool {
		return failurePriority(doc.Failures[i]).greaterThan(failurePriority(doc.Failures[j]))
	})

	dropped := 0
	for len(doc.Failures) > 1 && !under() {
		doc.Failures = doc.Failures[:len(doc.Failures)-1]
		dropped++
	}
	return dropped
}

// priorityScore packs the three-way tiebreak tuple (in-project frame count,
// stack length, diff presence) so it can be compared as a single value.
type priorityScore struct {
	inProjectFrames int
	stackLen        int
	diffPresent     int
}

func (s priorityScore) greaterThan(other priorityScore) bool {
	if s.inProjectFrames != other.inProjectFrames {
		return s.inProjectFrames > other.inProjectFrames
	}
	if s.stackLen != other.stackLen {
		return s.stackLen > other.stackLen
	}
	return s.diffPresent > other.diffPresent
}

func failurePriority(f document.TestFailure) priorityScore {
	inProject := 0
	for _, frame := range f.Error.StackFrames {
		if frame.InProject {
			inProject++
		}
	}
	diffPresent := 0
	if f.Error.Diff != nil {
		diffPresent = 1
	}
	return priorityScore{inProjectFrames: inProject, stackLen: len(f.Error.StackFrames), diffPresent: diffPresent}
}

// applyPhase5 reduces every remaining failure to its test name and a
// truncated error message, the floor above only the summary block itself.
func applyPhase5(doc *document.ReporterDocument) {
	for i := range doc.Failures {
		f := &doc.Failures[i]
		msg := f.Error.Message
		if len(msg) > phase3ErrorMessageBudget {
			msg = msg[:phase3ErrorMessageBudget-len("…")] + "…"
		}
		doc.Failures[i] = document.TestFailure{
			Test:  f.Test,
			Error: document.ErrorView{Message: msg, Type: f.Error.Type},
		}
	}
}

func trimStackFrames(frames []testmodel.StackFrame, max int) []testmodel.StackFrame {
	if len(frames) <= max {
		return frames
	}
	inProject := make([]testmodel.StackFrame, 0, len(frames))
	other := make([]testmodel.StackFrame, 0, len(frames))
	for _, f := range frames {
		if f.InProject {
			inProject = append(inProject, f)
		} else {
			other = append(other, f)
		}
	}
	kept := make([]testmodel.StackFrame, 0, max)
	kept = append(kept, inProject...)
	if len(kept) > max {
		return kept[:max]
	}
	remaining := max - len(kept)
	if remaining > len(other) {
		remaining = len(other)
	}
	kept = append(kept, other[:remaining]...)
	return kept
}

func trimContext(f *document.TestFailure) {
	ctx := f.Error.Context
	if ctx == nil || len(ctx.Code) <= phase2MaxContextLines {
		return
	}
	center := len(ctx.Code) / 2
	start := center - 2
	if start < 0 {
		start = 0
	}
	end := start + phase2MaxContextLines
	if end > len(ctx.Code) {
		end = len(ctx.Code)
		start = end - phase2MaxContextLines
		if start < 0 {
			start = 0
		}
	}
	ctx.Code = ctx.Code[start:end]
}

// trimConsoleEvents applies the fairness rule: drop debug/trace entirely,
// then cap info/warn and error categories to their respective character
// budgets, preserving the earliest entries in each category.
func trimConsoleEvents(f *document.TestFailure, infoWarnBudget, errorBudget int) {
	if len(f.ConsoleEvents) == 0 {
		return
	}
	var kept []document.ConsoleEventView
	infoWarnUsed, errorUsed := 0, 0
	for _, e := range f.ConsoleEvents {
		switch e.Level {
		case testmodel.LevelDebug, testmodel.LevelTrace:
			continue
		case testmodel.LevelError:
			if errorUsed >= errorBudget {
				continue
			}
			e.Message = capString(e.Message, errorBudget-errorUsed)
			errorUsed += len(e.Message)
		default:
			if infoWarnUsed >= infoWarnBudget {
				continue
			}
			e.Message = capString(e.Message, infoWarnBudget-infoWarnUsed)
			infoWarnUsed += len(e.Message)
		}
		kept = append(kept, e)
	}
	f.ConsoleEvents = kept
}

func capString(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// trimAssertion shortens expected/actual when their serialized form exceeds
// max characters: objects/arrays are replaced by a structural summary (e.g.
// "[Object with 3 keys]") so the result never becomes invalid JSON, a
// string is cut to max characters plus an ellipsis, and any other value is
// replaced by its serialized form cut to max characters plus an ellipsis.
func trimAssertion(ev *document.ErrorView, max int) {
	if ev.Assertion == nil {
		return
	}
	ev.Assertion.Expected = trimValue(ev.Assertion.Expected, max)
	ev.Assertion.Actual = trimValue(ev.Assertion.Actual, max)
}

func trimValue(v interface{}, max int) interface{} {
	raw, err := json.Marshal(v)
	if err != nil || len(raw) <= max {
		return v
	}
	switch t := v.(type) {
	case string:
		if len(t) > max {
			return t[:max] + "…"
		}
		return t
	case map[string]interface{}:
		return fmt.Sprintf("[Object with %d keys]", len(t))
	case []interface{}:
		return fmt.Sprintf("[Array with %d items]", len(t))
	default:
		return string(raw[:max]) + "…"
	}
}
