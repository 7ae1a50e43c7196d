// Package dedup implements the Log Deduplicator: a bounded, content-hashed
// cache that collapses repeated log lines across a run and annotates
// survivors with occurrence metadata. The cache is backed by
// github.com/wk8/go-ordered-map/v2, whose stable iteration order gives an
// O(1) way to find and evict the least-recently-used entry: a cache hit is
// handled as a delete-then-reinsert, which both updates the entry's
// metadata and moves it to the newest end of the iteration order.
package dedup

import (
	"hash/fnv"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

// DefaultMaxEntries is the spec.md §5 default dedup cache size.
const DefaultMaxEntries = 10000

// Scope selects whether the cache is shared across the whole run or reset
// at each test boundary.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopePerTest Scope = "per-test"
)

// Config controls the deduplicator's normalization pipeline and bounds.
type Config struct {
	Enabled             bool
	MaxCacheEntries     int
	IncludeSources      bool
	NormalizeWhitespace bool
	StripTimestamps     bool
	StripAnsiCodes      bool
	Scope               Scope
}

// DefaultConfig returns the spec.md §6.3 defaults for deduplicateLogs.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		MaxCacheEntries:     DefaultMaxEntries,
		IncludeSources:      false,
		NormalizeWhitespace: true,
		StripTimestamps:     true,
		StripAnsiCodes:      true,
		Scope:               ScopePerTest,
	}
}

// Entry is the metadata retained for one deduplicated log key. Meta is a
// single shared *testmodel.Deduplication instance kept in sync with the
// fields below on every hit, so a ConsoleEvent that captured the pointer at
// first-occurrence time observes later updates (count, lastSeenAtMs,
// sources) without the caller re-fetching the entry — this is how a test's
// single retained ConsoleEvent ends up reporting an accurate count after
// repeat occurrences are suppressed (spec.md §4.3).
type Entry struct {
	Key               string
	OriginalMessage   string
	NormalizedMessage string
	Level             testmodel.Level
	Count             int
	FirstSeenAtMs     int64
	LastSeenAtMs      int64
	Sources           map[string]struct{}
	Meta              *testmodel.Deduplication
}

// syncMeta copies the entry's current occurrence fields into the shared
// Meta pointer so anything holding that pointer observes the update.
func (e *Entry) syncMeta() {
	e.Meta.Count = e.Count
	e.Meta.FirstSeenAtMs = e.FirstSeenAtMs
	e.Meta.LastSeenAtMs = e.LastSeenAtMs
	if e.Sources != nil {
		e.Meta.Sources = e.Meta.Sources[:0]
		for src := range e.Sources {
			e.Meta.Sources = append(e.Meta.Sources, src)
		}
	}
}

// Stats summarizes a deduplicator's activity since construction or the
// last Clear.
type Stats struct {
	TotalLogs         int
	UniqueLogs        int
	DuplicatesRemoved int
	CacheSize         int
	Evictions         int
	ProcessingTimeMs  int64
}

var (
	ansiPattern      = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	iso8601Pattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)
	clockTimePattern = regexp.MustCompile(`\b\d{2}:\d{2}:\d{2}\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Deduplicator is the LogDeduplicator component. It is safe for concurrent
// use; every call takes a single internal lock held only for the map
// mutation, never across I/O (spec.md §5).
type Deduplicator struct {
	mu    sync.Mutex
	cfg   Config
	cache *orderedmap.OrderedMap[string, *Entry]

	totalLogs         int
	uniqueLogs        int
	duplicatesRemoved int
	evictions         int
	processingTime    time.Duration
}

// New constructs a Deduplicator. A disabled config produces a zero-overhead
// pass-through per spec.md §4.3 Failure semantics.
func New(cfg Config) *Deduplicator {
	if cfg.MaxCacheEntries <= 0 {
		cfg.MaxCacheEntries = DefaultMaxEntries
	}
	return &Deduplicator{
		cfg:   cfg,
		cache: orderedmap.New[string, *Entry](),
	}
}

// Key computes the deterministic dedup key for a (level, message) pair
// under the deduplicator's configured normalization pipeline.
func (d *Deduplicator) Key(level testmodel.Level, message string) (key, normalized string) {
	normalized = message
	if d.cfg.StripAnsiCodes {
		normalized = ansiPattern.ReplaceAllString(normalized, "")
	}
	if d.cfg.StripTimestamps {
		normalized = iso8601Pattern.ReplaceAllString(normalized, "")
		normalized = clockTimePattern.ReplaceAllString(normalized, "")
	}
	if d.cfg.NormalizeWhitespace {
		normalized = strings.TrimSpace(whitespacePattern.ReplaceAllString(normalized, " "))
	}
	lowered := strings.ToLower(normalized)

	h := fnv.New64a()
	_, _ = h.Write([]byte(lowered))
	key = fmt.Sprintf("%s:%x", level, h.Sum64())
	return key, normalized
}

// IsDuplicate reports whether (level, message) has already been seen. On a
// miss it inserts a fresh entry and returns false; on a hit it updates the
// existing entry's occurrence metadata and returns true. testID is
// recorded into the entry's Sources set only when IncludeSources is set.
func (d *Deduplicator) IsDuplicate(level testmodel.Level, message, testID string, nowMs int64) (bool, *Entry) {
	if !d.cfg.Enabled {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	defer func() { d.processingTime += time.Since(start) }()

	key, normalized := d.Key(level, message)
	d.totalLogs++

	if existing, ok := d.cache.Get(key); ok {
		// Equality check guards against hash collisions across different
		// normalized strings sharing the same key.
		if existing.NormalizedMessage == normalized {
			existing.Count++
			existing.LastSeenAtMs = nowMs
			if d.cfg.IncludeSources && testID != "" {
				if existing.Sources == nil {
					existing.Sources = make(map[string]struct{})
				}
				existing.Sources[testID] = struct{}{}
			}
			existing.syncMeta()
			// Delete-then-reinsert moves the entry to the newest end of
			// the ordered map's iteration order (LRU touch).
			d.cache.Delete(key)
			d.cache.Set(key, existing)
			d.duplicatesRemoved++
			return true, existing
		}
	}

	entry := &Entry{
		Key:               key,
		OriginalMessage:   message,
		NormalizedMessage: normalized,
		Level:             level,
		Count:             1,
		FirstSeenAtMs:     nowMs,
		LastSeenAtMs:      nowMs,
		Meta:              &testmodel.Deduplication{},
	}
	if d.cfg.IncludeSources && testID != "" {
		entry.Sources = map[string]struct{}{testID: {}}
	}
	entry.syncMeta()
	d.cache.Set(key, entry)
	d.uniqueLogs++

	for d.cache.Len() > d.cfg.MaxCacheEntries {
		oldest := d.cache.Oldest()
		if oldest == nil {
			break
		}
		d.cache.Delete(oldest.Key)
		d.evictions++
	}

	return false, entry
}

// GetMetadata returns the cached entry for key, if present.
func (d *Deduplicator) GetMetadata(key string) (*Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Get(key)
}

// Clear resets all cache state and counters.
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = orderedmap.New[string, *Entry]()
	d.totalLogs = 0
	d.uniqueLogs = 0
	d.duplicatesRemoved = 0
	d.evictions = 0
	d.processingTime = 0
}

// GetStats returns a snapshot of the deduplicator's activity. UniqueLogs
// counts every distinct key ever inserted, including ones since evicted from
// the live cache; CacheSize is the live entry count, which can fall behind
// UniqueLogs once eviction starts.
func (d *Deduplicator) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		TotalLogs:         d.totalLogs,
		UniqueLogs:        d.uniqueLogs,
		DuplicatesRemoved: d.duplicatesRemoved,
		CacheSize:         d.cache.Len(),
		Evictions:         d.evictions,
		ProcessingTimeMs:  d.processingTime.Milliseconds(),
	}
}
