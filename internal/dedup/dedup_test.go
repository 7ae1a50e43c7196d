package dedup

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

func TestIsDuplicate_FirstSeenIsNotDuplicate(t *testing.T) {
	d := New(DefaultConfig())
	isDup, entry := d.IsDuplicate(testmodel.LevelInfo, "Connected", "test-1", 1000)
	assert.False(t, isDup)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Count)
}

func TestIsDuplicate_SecondSeenIsDuplicate(t *testing.T) {
	d := New(DefaultConfig())
	d.IsDuplicate(testmodel.LevelInfo, "Connected", "test-1", 1000)
	isDup, entry := d.IsDuplicate(testmodel.LevelInfo, "Connected", "test-1", 1500)
	assert.True(t, isDup)
	assert.Equal(t, 2, entry.Count)
	assert.Equal(t, int64(1500), entry.LastSeenAtMs)
}

func TestIsDuplicate_DifferentLevelsAreDistinct(t *testing.T) {
	d := New(DefaultConfig())
	d.IsDuplicate(testmodel.LevelInfo, "same text", "t1", 0)
	isDup, _ := d.IsDuplicate(testmodel.LevelWarn, "same text", "t1", 0)
	assert.False(t, isDup, "identical text at a different level must not be treated as a duplicate")

	stats := d.GetStats()
	assert.Equal(t, 2, stats.UniqueLogs)
}

func TestIsDuplicate_NormalizesAnsiAndTimestamps(t *testing.T) {
	cfg := DefaultConfig()
	d := New(cfg)
	d.IsDuplicate(testmodel.LevelInfo, "\x1b[31m[2024-01-01T10:00:00Z] boom\x1b[0m", "t1", 0)
	isDup, _ := d.IsDuplicate(testmodel.LevelInfo, "[2024-06-06T11:22:33Z] boom", "t2", 0)
	assert.True(t, isDup, "ANSI codes and timestamps should normalize away before hashing")
}

func TestIsDuplicate_IncludeSourcesTracksTestIDs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeSources = true
	d := New(cfg)
	d.IsDuplicate(testmodel.LevelInfo, "msg", "t1", 0)
	_, entry := d.IsDuplicate(testmodel.LevelInfo, "msg", "t2", 0)
	assert.Len(t, entry.Sources, 2)
	assert.GreaterOrEqual(t, entry.Count, len(entry.Sources))
}

func TestIsDuplicate_DisabledIsPassThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	d := New(cfg)
	isDup, entry := d.IsDuplicate(testmodel.LevelInfo, "msg", "t1", 0)
	assert.False(t, isDup)
	assert.Nil(t, entry)

	stats := d.GetStats()
	assert.Equal(t, 0, stats.TotalLogs)
}

func TestIsDuplicate_EvictsLeastRecentlyUsed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCacheEntries = 2
	d := New(cfg)

	d.IsDuplicate(testmodel.LevelInfo, "a", "t", 0)
	d.IsDuplicate(testmodel.LevelInfo, "b", "t", 0)
	d.IsDuplicate(testmodel.LevelInfo, "c", "t", 0) // evicts "a"

	stats := d.GetStats()
	assert.LessOrEqual(t, stats.CacheSize, 2)
	assert.Equal(t, 1, stats.Evictions)

	keyA, _ := d.Key(testmodel.LevelInfo, "a")
	_, ok := d.GetMetadata(keyA)
	assert.False(t, ok, "least-recently-used entry should have been evicted")
}

func TestIsDuplicate_TouchKeepsEntryAlive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCacheEntries = 2
	d := New(cfg)

	d.IsDuplicate(testmodel.LevelInfo, "a", "t", 0)
	d.IsDuplicate(testmodel.LevelInfo, "b", "t", 0)
	d.IsDuplicate(testmodel.LevelInfo, "a", "t", 1) // touch "a", now "b" is oldest
	d.IsDuplicate(testmodel.LevelInfo, "c", "t", 2) // should evict "b", not "a"

	keyA, _ := d.Key(testmodel.LevelInfo, "a")
	_, ok := d.GetMetadata(keyA)
	assert.True(t, ok, "recently touched entry should survive eviction")

	keyB, _ := d.Key(testmodel.LevelInfo, "b")
	_, ok = d.GetMetadata(keyB)
	assert.False(t, ok)
}

func TestIsDuplicate_ConcurrentAccess(t *testing.T) {
	d := New(DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.IsDuplicate(testmodel.LevelInfo, "shared message", "t", int64(i))
		}(i)
	}
	wg.Wait()

	stats := d.GetStats()
	assert.Equal(t, 50, stats.TotalLogs)
	assert.Equal(t, 1, stats.UniqueLogs)
	assert.Equal(t, 49, stats.DuplicatesRemoved)
}

func TestClear_ResetsState(t *testing.T) {
	d := New(DefaultConfig())
	d.IsDuplicate(testmodel.LevelInfo, "a", "t", 0)
	d.Clear()
	stats := d.GetStats()
	assert.Equal(t, 0, stats.TotalLogs)
	assert.Equal(t, 0, stats.CacheSize)
}
