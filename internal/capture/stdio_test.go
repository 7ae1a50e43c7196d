package capture

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

func TestStdioInterceptor_ForwardsOriginalBytesUnchanged(t *testing.T) {
	var out bytes.Buffer
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	si := NewStdioInterceptor(&out, testmodel.OriginStdout, m)

	n, err := si.Write([]byte("hello world\n"))
	require.NoError(t, err)
	assert.Equal(t, len("hello world\n"), n)
	assert.Equal(t, "hello world\n", out.String())
}

func TestStdioInterceptor_BuffersPartialLinesAcrossWrites(t *testing.T) {
	var out bytes.Buffer
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	si := NewStdioInterceptor(&out, testmodel.OriginStdout, m)

	m.StartCapture(context.Background(), "test-1")

	si.Write([]byte("hel"))
	si.Write([]byte("lo\n"))

	events := m.Events("test-1")
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0].Message)
}

func TestStdioInterceptor_FiltersNoiseFromCaptureOnly(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.NoisePatterns = []string{`^Server listening on`}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	si := NewStdioInterceptor(&out, testmodel.OriginStdout, m)

	m.StartCapture(context.Background(), "test-1")
	si.Write([]byte("Server listening on :8080\n"))

	assert.Contains(t, out.String(), "Server listening on", "noise must still reach the real writer")
	assert.Empty(t, m.Events("test-1"), "noise must not be captured into the buffer")
}

func TestStdioInterceptor_DetachFlushesPartialLine(t *testing.T) {
	var out bytes.Buffer
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	si := NewStdioInterceptor(&out, testmodel.OriginStdout, m)

	m.StartCapture(context.Background(), "test-1")
	si.Write([]byte("no trailing newline"))
	si.Detach()

	events := m.Events("test-1")
	require.Len(t, events, 1)
	assert.Equal(t, "no trailing newline", events[0].Message)
}

func TestStdioInterceptor_NoActiveTestDropsLine(t *testing.T) {
	var out bytes.Buffer
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	si := NewStdioInterceptor(&out, testmodel.OriginStdout, m)

	si.Write([]byte("nobody listening\n"))
	assert.Equal(t, "nobody listening\n", out.String(), "line still reaches the terminal even with no active test")
}

type errWriter struct{ err error }

func (w errWriter) Write(p []byte) (int, error) { return 0, w.err }

func TestStdioInterceptor_PropagatesWriterError(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	boom := assert.AnError
	si := NewStdioInterceptor(errWriter{err: boom}, testmodel.OriginStdout, m)

	_, werr := si.Write([]byte("x\n"))
	assert.ErrorIs(t, werr, boom)
}
