package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

func TestRunWithCapture_AttributesViaContext(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)

	m.RunWithCapture(context.Background(), "test-1", func(ctx context.Context) {
		ok := m.Write(ctx, testmodel.LevelInfo, []string{"hello"}, testmodel.OriginStdout)
		assert.True(t, ok)
	})

	events := m.Events("test-1")
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0].Message)
}

func TestWrite_NoContextReturnsFalse(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)

	ok := m.Write(context.Background(), testmodel.LevelInfo, []string{"orphan"}, testmodel.OriginStdout)
	assert.False(t, ok, "a context carrying no testID must not be attributed")
}

func TestIngest_OutOfBandAlwaysAttributes(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)

	ok := m.Ingest("test-2", testmodel.LevelWarn, []string{"late warning"})
	assert.True(t, ok)
	assert.Len(t, m.Events("test-2"), 1)
}

func TestStartCapture_IsIdempotent(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)

	m.RunWithCapture(context.Background(), "test-3", func(ctx context.Context) {
		m.Write(ctx, testmodel.LevelInfo, []string{"first"}, testmodel.OriginStdout)
	})
	m.RunWithCapture(context.Background(), "test-3", func(ctx context.Context) {
		m.Write(ctx, testmodel.LevelInfo, []string{"second"}, testmodel.OriginStdout)
	})

	events := m.Events("test-3")
	require.Len(t, events, 2, "starting capture again for the same testID must reuse, not reset, the buffer")
}

func TestStopCapture_CleansUpAfterGracePeriod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GracePeriod = 10 * time.Millisecond
	m, err := NewManager(cfg)
	require.NoError(t, err)

	m.RunWithCapture(context.Background(), "test-4", func(ctx context.Context) {
		m.Write(ctx, testmodel.LevelInfo, []string{"msg"}, testmodel.OriginStdout)
	})
	m.StopCapture("test-4")

	assert.NotNil(t, m.Events("test-4"), "buffer should still be live within the grace period")

	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, m.Events("test-4"), "buffer should be cleaned up after the grace period elapses")
}

func TestIngest_DuringGracePeriodStillAccepted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GracePeriod = 50 * time.Millisecond
	m, err := NewManager(cfg)
	require.NoError(t, err)

	m.StartCapture(context.Background(), "test-5")
	m.StopCapture("test-5")

	ok := m.Ingest("test-5", testmodel.LevelInfo, []string{"late but in grace"})
	assert.True(t, ok)
}

func TestRecord_DuplicateSuppressedButCountVisible(t *testing.T) {
	cfg := DefaultConfig()
	m, err := NewManager(cfg)
	require.NoError(t, err)

	m.Ingest("test-6", testmodel.LevelInfo, []string{"Connected"})
	m.Ingest("test-6", testmodel.LevelInfo, []string{"Connected"})
	m.Ingest("test-6", testmodel.LevelInfo, []string{"Connected"})

	events := m.Events("test-6")
	require.Len(t, events, 1, "duplicate occurrences must not add new ConsoleEvents")
	require.NotNil(t, events[0].Deduplication)
	assert.Equal(t, 3, events[0].Deduplication.Count)
}

func TestNewManager_InvalidNoisePattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoisePatterns = []string{"("}
	_, err := NewManager(cfg)
	require.Error(t, err)
	var patErr *NoisePatternError
	assert.ErrorAs(t, err, &patErr)
}
