package reporter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansjm10/go-llm-reporter/internal/config"
	"github.com/hansjm10/go-llm-reporter/internal/document"
	"github.com/hansjm10/go-llm-reporter/internal/orchestrator"
	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

type fakeWriter struct {
	docs []*document.ReporterDocument
	err  error
}

func (w *fakeWriter) Write(doc *document.ReporterDocument) error {
	w.docs = append(w.docs, doc)
	return w.err
}

func TestReporter_FullLifecycleProducesDocument(t *testing.T) {
	cfg := config.Defaults()
	writer := &fakeWriter{}
	r, err := New(&cfg, Options{Writer: writer})
	require.NoError(t, err)

	r.OnRunStart()
	r.OnTestReady("t1", orchestrator.TestMetadata{Name: "adds numbers", FileRelative: "math_test.go"})
	r.OnTestStart("t1")
	r.OnTestResult("t1", orchestrator.Result{Status: testmodel.StatusPassed})
	r.OnRunEnd("completed")

	require.Len(t, writer.docs, 1)
	doc := writer.docs[0]
	assert.Equal(t, 1, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.Passed)
}

func TestReporter_WriteErrorSurfacedFromFlush(t *testing.T) {
	cfg := config.Defaults()
	writer := &fakeWriter{err: errors.New("disk full")}
	r, err := New(&cfg, Options{Writer: writer})
	require.NoError(t, err)

	r.OnTestReady("t1", orchestrator.TestMetadata{Name: "x"})
	r.OnTestStart("t1")
	r.OnTestResult("t1", orchestrator.Result{Status: testmodel.StatusPassed})

	_, err = r.Flush()
	require.Error(t, err)
	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
}

func TestReporter_InvalidNoisePatternIsConfigError(t *testing.T) {
	cfg := config.Defaults()
	cfg.Stdio.FilterPattern = []string{"("}

	_, err := New(&cfg, Options{})
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestReporter_TruncationMetricsRecordedAfterFlush(t *testing.T) {
	cfg := config.Defaults()
	cfg.Truncation.MaxTokens = 0 // disabled: no-op pass-through, still records a metrics entry
	r, err := New(&cfg, Options{})
	require.NoError(t, err)

	r.OnTestReady("t1", orchestrator.TestMetadata{Name: "x"})
	r.OnTestStart("t1")
	r.OnTestResult("t1", orchestrator.Result{Status: testmodel.StatusPassed})
	_, err = r.Flush()
	require.NoError(t, err)

	assert.Len(t, r.TruncationMetrics(), 1)
}
