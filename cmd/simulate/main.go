// Command simulate is a demo harness for the test-run reporter: it replays
// a small simulated suite through concurrent "worker" goroutines exercising
// the Event Orchestrator's documented "multiple workers calling in
// simultaneously" contract (spec.md §5), then renders the resulting
// document's summary and the Late Truncator's metrics as tables.
//
// This binary is a demonstration of the core, not the core itself — CLI
// parsing, spinners and table rendering are explicitly out of scope for
// internal/reporter (spec.md §1 Non-goals).
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hansjm10/go-llm-reporter/internal/config"
	"github.com/hansjm10/go-llm-reporter/internal/orchestrator"
	"github.com/hansjm10/go-llm-reporter/internal/reporter"
	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a simulated test run through the reporter core",
	// SilenceUsage keeps a failed simulation's output focused on what went
	// wrong, not a usage dump.
	SilenceUsage: true,
	RunE:         runSimulate,
}

var (
	workerCount int
	testCount   int
	failRate    float64
	maxTokens   int
)

func init() {
	rootCmd.Flags().IntVar(&workerCount, "workers", 4, "number of concurrent simulated workers")
	rootCmd.Flags().IntVar(&testCount, "tests", 20, "total number of simulated tests")
	rootCmd.Flags().Float64Var(&failRate, "fail-rate", 0.2, "fraction of tests that fail")
	rootCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Late Truncator token budget (0 disables truncation)")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, text.FgRed.Sprint(err))
		os.Exit(1)
	}
}

type simulatedTest struct {
	id   string
	name string
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := config.Defaults()
	cfg.Truncation.MaxTokens = maxTokens

	rep, err := reporter.New(&cfg, reporter.Options{ProjectRoot: "."})
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Replaying %d tests across %d workers...", testCount, workerCount)
	s.Start()

	rep.OnRunStart()
	if err := replay(rep); err != nil {
		s.Stop()
		return err
	}
	rep.OnRunEnd("completed")
	s.Stop()

	printSummary(rep)
	printTruncationMetrics(rep)
	return nil
}

// replay fans simulated tests out across workerCount goroutines via
// errgroup, exercising the orchestrator's concurrent-callback contract the
// same way internal/orchestrator/retry_test.go's
// TestOrchestrator_ConcurrentWorkerCallbacks does, just driven from a real
// process instead of a unit test.
func replay(hooks orchestrator.Hooks) error {
	g := new(errgroup.Group)
	tests := make(chan simulatedTest, testCount)
	for i := 0; i < testCount; i++ {
		tests <- simulatedTest{id: fmt.Sprintf("sim-%d", i), name: fmt.Sprintf("simulated test %d", i)}
	}
	close(tests)

	for w := 0; w < workerCount; w++ {
		g.Go(func() error {
			for t := range tests {
				runOne(hooks, t)
			}
			return nil
		})
	}
	return g.Wait()
}

func runOne(hooks orchestrator.Hooks, t simulatedTest) {
	hooks.OnTestReady(t.id, orchestrator.TestMetadata{Name: t.name, FileRelative: "simulate_test.go"})
	hooks.OnTestStart(t.id)
	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)

	if rand.Float64() < failRate {
		// Expected/actual come in as the dynamically typed data a framework
		// adapter would decode from JSON; FromInterface is the boundary that
		// turns that into the reporter's own deterministic Value sum type.
		expected := testmodel.FromInterface(map[string]interface{}{"ok": true, "code": 200})
		actual := testmodel.FromInterface(map[string]interface{}{"ok": false, "code": 500})
		hooks.OnTestResult(t.id, orchestrator.Result{
			Status: testmodel.StatusFailed,
			Error: &testmodel.TestError{
				Message: fmt.Sprintf("%s: expected true to be false", t.name),
				Type:    "AssertionError",
				Assertion: &testmodel.Assertion{
					Expected:     expected,
					Actual:       actual,
					ExpectedType: testmodel.TypeName(expected),
					ActualType:   testmodel.TypeName(actual),
					Operator:     "toEqual",
				},
			},
		})
		return
	}
	hooks.OnTestResult(t.id, orchestrator.Result{Status: testmodel.StatusPassed})
}

func printSummary(rep *reporter.Reporter) {
	doc, err := rep.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, text.FgRed.Sprint(err))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Total", "Passed", "Failed", "Skipped", "Duration (ms)"})
	t.AppendRow(table.Row{
		doc.Summary.Total, doc.Summary.Passed, doc.Summary.Failed, doc.Summary.Skipped, doc.Summary.DurationMs,
	})
	t.Render()
}

func printTruncationMetrics(rep *reporter.Reporter) {
	metrics := rep.TruncationMetrics()
	if len(metrics) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Original Tokens", "Truncated Tokens", "Phases Applied"})
	for _, m := range metrics {
		phases := "-"
		if len(m.PhasesApplied) > 0 {
			phases = fmt.Sprintf("%v", m.PhasesApplied)
		}
		t.AppendRow(table.Row{m.OriginalTokens, m.TruncatedTokens, phases})
	}
	t.Render()
}
