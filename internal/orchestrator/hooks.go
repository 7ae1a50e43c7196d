package orchestrator

import "github.com/hansjm10/go-llm-reporter/internal/testmodel"

// TestMetadata is the static identity the host framework supplies with
// OnTestReady, before the test has run.
type TestMetadata struct {
	Name         string
	SuitePath    []string
	FileRelative string
	StartLine    int
	EndLine      int
}

// Result is the outcome the host framework reports via OnTestResult.
type Result struct {
	Status testmodel.Status
	Error  *testmodel.TestError
}

// Hooks is the inbound interface the host test framework drives. It is
// implemented by *Orchestrator and by internal/reporter.Reporter, which
// embeds an *Orchestrator and overrides OnRunEnd to flush the document.
type Hooks interface {
	OnTestReady(testID string, metadata TestMetadata)
	OnTestStart(testID string)
	OnTestResult(testID string, result Result)
	OnTestRetry(testID string, previousError *testmodel.TestError)
	OnUserConsoleLog(testID string, level testmodel.Level, args []string, origin testmodel.ConsoleOrigin)
	OnUnhandledError(err testmodel.TestError)
	OnRunEnd(reason string)
}
