// Package console implements the per-test Console Buffer: an array-backed
// bounded ring queue that captures console events with byte/line caps and
// level filtering. Each test owns exactly one Buffer, created at test-start
// and discarded by internal/capture once the test's grace period elapses.
package console

import (
	"fmt"

	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

const (
	// DefaultMaxBytes is the spec.md §5 default per-test byte cap.
	DefaultMaxBytes = 50000
	// DefaultMaxLines is the spec.md §5 default per-test line cap.
	DefaultMaxLines = 100
)

// Buffer is a bounded, drop-oldest ring queue of ConsoleEvents for a single
// test. It is not safe for concurrent use from multiple goroutines without
// external synchronization — ownership is exclusive to the attribution
// path (internal/capture), per spec.md §5.
type Buffer struct {
	maxBytes     int
	maxLines     int
	includeDebug bool

	slots []testmodel.ConsoleEvent
	sizes []int
	head  int
	count int
	bytes int

	truncatedCount int
}

// NewBuffer constructs a Buffer with the given caps. A non-positive
// maxLines or maxBytes falls back to DefaultMaxLines or DefaultMaxBytes.
func NewBuffer(maxBytes, maxLines int, includeDebugOutput bool) *Buffer {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Buffer{
		maxBytes:     maxBytes,
		maxLines:     maxLines,
		includeDebug: includeDebugOutput,
		slots:        make([]testmodel.ConsoleEvent, maxLines),
		sizes:        make([]int, maxLines),
	}
}

// Append adds evt to the buffer, evicting the oldest entry if the line or
// byte cap would otherwise be exceeded. It returns false if evt was
// discarded outright by the level filter (debug/trace with
// includeDebugOutput unset) — such events never occupy a slot and never
// trigger eviction.
func (b *Buffer) Append(evt testmodel.ConsoleEvent) bool {
	if !b.includeDebug && (evt.Level == testmodel.LevelDebug || evt.Level == testmodel.LevelTrace) {
		return false
	}

	size := len(evt.Message)
	for i := range evt.Args {
		size += len(evt.Args[i])
	}

	for b.count == b.maxLines {
		b.evictOldest()
	}
	for b.count > 0 && b.bytes+size > b.maxBytes {
		b.evictOldest()
	}

	idx := (b.head + b.count) % b.maxLines
	b.slots[idx] = evt
	b.sizes[idx] = size
	b.count++
	b.bytes += size
	return true
}

func (b *Buffer) evictOldest() {
	b.bytes -= b.sizes[b.head]
	b.slots[b.head] = testmodel.ConsoleEvent{}
	b.head = (b.head + 1) % b.maxLines
	b.count--
	b.truncatedCount++
}

// Events returns the buffer's contents in insertion order. If events were
// evicted, a synthetic sentinel event is prepended reporting how many were
// dropped.
func (b *Buffer) Events() []testmodel.ConsoleEvent {
	out := make([]testmodel.ConsoleEvent, 0, b.count+1)
	if b.truncatedCount > 0 {
		out = append(out, testmodel.ConsoleEvent{
			Message:        fmt.Sprintf("[truncated: %d events]", b.truncatedCount),
			Truncated:      true,
			TruncatedCount: b.truncatedCount,
		})
	}
	for i := 0; i < b.count; i++ {
		out = append(out, b.slots[(b.head+i)%b.maxLines])
	}
	return out
}

// Len returns the number of live (non-sentinel) events currently held.
func (b *Buffer) Len() int {
	return b.count
}

// Bytes returns the current total byte size of live events.
func (b *Buffer) Bytes() int {
	return b.bytes
}

// TruncatedCount returns how many events have been dropped due to overflow.
func (b *Buffer) TruncatedCount() int {
	return b.truncatedCount
}

// Clear resets the buffer to empty, discarding all events and truncation
// state.
func (b *Buffer) Clear() {
	for i := range b.slots {
		b.slots[i] = testmodel.ConsoleEvent{}
		b.sizes[i] = 0
	}
	b.head = 0
	b.count = 0
	b.bytes = 0
	b.truncatedCount = 0
}
