package truncate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansjm10/go-llm-reporter/internal/document"
	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

func bigFailure(test string, frameCount int) document.TestFailure {
	frames := make([]testmodel.StackFrame, frameCount)
	for i := range frames {
		frames[i] = testmodel.StackFrame{FileRelative: "a.go", Line: i + 1, InProject: i%2 == 0}
	}
	return document.TestFailure{
		Test: test,
		Error: document.ErrorView{
			Message:     strings.Repeat("x", 1000),
			Type:        "Error",
			StackFrames: frames,
		},
	}
}

func TestTruncate_NoopWhenUnderBudget(t *testing.T) {
	tr := New(Config{MaxTokens: 1_000_000})
	doc := &document.ReporterDocument{Summary: document.Summary{Total: 1}}
	out := tr.Truncate(doc)
	assert.Same(t, doc, out)
	require.Len(t, tr.Metrics(), 1)
	assert.Empty(t, tr.Metrics()[0].PhasesApplied)
}

func TestTruncate_Phase1DropsPassedAndSkipped(t *testing.T) {
	doc := &document.ReporterDocument{
		Summary: document.Summary{Total: 3},
		Passed:  []document.TestResult{{Test: "p1"}},
		Skipped: []document.TestResult{{Test: "s1"}},
	}
	// A budget that only the summary fits forces both sections out.
	summaryOnly := mustTokens(&document.ReporterDocument{Summary: doc.Summary})
	tr := New(Config{MaxTokens: summaryOnly})
	out := tr.Truncate(doc)
	assert.Nil(t, out.Passed)
	assert.Nil(t, out.Skipped)
}

func TestTruncate_CullsLowestPriorityFailureFirst(t *testing.T) {
	doc := &document.ReporterDocument{
		Summary: document.Summary{Total: 2},
		Failures: []document.TestFailure{
			bigFailure("weak", 1),
			bigFailure("strong", 20),
		},
	}
	tr := New(Config{MaxTokens: 50})
	out := tr.Truncate(doc)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "strong", out.Failures[0].Test)
}

func TestTruncate_Phase5RetainsOnlyTestNameAndMessage(t *testing.T) {
	doc := &document.ReporterDocument{
		Summary: document.Summary{Total: 1},
		Failures: []document.TestFailure{
			bigFailure("only", 20),
		},
	}
	tr := New(Config{MaxTokens: 1})
	out := tr.Truncate(doc)
	require.Len(t, out.Failures, 1)
	f := out.Failures[0]
	assert.Equal(t, "only", f.Test)
	assert.Nil(t, f.Error.StackFrames)
	assert.Nil(t, f.ConsoleEvents)
	assert.LessOrEqual(t, len(f.Error.Message), 513)
}

func TestTruncate_StackFramesPrioritizeInProject(t *testing.T) {
	frames := trimStackFrames([]testmodel.StackFrame{
		{FileRelative: "dep1", InProject: false},
		{FileRelative: "proj1", InProject: true},
		{FileRelative: "dep2", InProject: false},
		{FileRelative: "proj2", InProject: true},
	}, 2)
	require.Len(t, frames, 2)
	assert.True(t, frames[0].InProject)
	assert.True(t, frames[1].InProject)
}

func TestTruncate_AssertionFallsBackToStructuralSummary(t *testing.T) {
	ev := &document.ErrorView{
		Assertion: &document.AssertionView{
			Expected: map[string]interface{}{"a": 1, "b": 2, "c": 3},
		},
	}
	trimAssertion(ev, 5)
	assert.Equal(t, "[Object with 3 keys]", ev.Assertion.Expected)
}

func mustTokens(doc *document.ReporterDocument) int {
	tr := New(Config{})
	return tr.tokens(doc)
}
