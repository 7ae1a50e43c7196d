package console

import (
	"testing"

	"github.com/hansjm10/go-llm-reporter/internal/testmodel"
)

func logEvent(msg string) testmodel.ConsoleEvent {
	return testmodel.ConsoleEvent{Level: testmodel.LevelInfo, Message: msg, Origin: testmodel.OriginStdout}
}

func TestBuffer_FiltersDebugAndTrace(t *testing.T) {
	b := NewBuffer(0, 0, false)
	if b.Append(testmodel.ConsoleEvent{Level: testmodel.LevelDebug, Message: "d"}) {
		t.Error("expected debug event to be filtered")
	}
	if b.Append(testmodel.ConsoleEvent{Level: testmodel.LevelTrace, Message: "t"}) {
		t.Error("expected trace event to be filtered")
	}
	if b.Len() != 0 {
		t.Errorf("expected empty buffer, got len %d", b.Len())
	}
}

func TestBuffer_IncludeDebugOutput(t *testing.T) {
	b := NewBuffer(0, 0, true)
	if !b.Append(testmodel.ConsoleEvent{Level: testmodel.LevelDebug, Message: "d"}) {
		t.Error("expected debug event to be accepted when includeDebugOutput is set")
	}
}

func TestBuffer_MaxLinesEviction(t *testing.T) {
	b := NewBuffer(0, 3, false)
	for i := 0; i < 5; i++ {
		b.Append(logEvent("msg"))
	}
	if b.Len() != 3 {
		t.Fatalf("expected len 3, got %d", b.Len())
	}
	if b.TruncatedCount() != 2 {
		t.Fatalf("expected 2 truncated, got %d", b.TruncatedCount())
	}
	events := b.Events()
	if !events[0].Truncated {
		t.Fatalf("expected sentinel first, got %+v", events[0])
	}
	if events[0].TruncatedCount != 2 {
		t.Fatalf("expected sentinel count 2, got %d", events[0].TruncatedCount)
	}
}

func TestBuffer_MaxBytesEviction(t *testing.T) {
	b := NewBuffer(10, 100, false)
	b.Append(logEvent("12345")) // 5 bytes
	b.Append(logEvent("12345")) // 5 bytes, total 10
	b.Append(logEvent("12345")) // forces eviction of first
	if b.Len() != 2 {
		t.Fatalf("expected len 2 after byte-cap eviction, got %d", b.Len())
	}
	if b.Bytes() > 10 {
		t.Fatalf("expected bytes <= 10, got %d", b.Bytes())
	}
}

func TestBuffer_PreservesOrder(t *testing.T) {
	b := NewBuffer(0, 5, false)
	b.Append(logEvent("a"))
	b.Append(logEvent("b"))
	b.Append(logEvent("c"))
	events := b.Events()
	if events[0].Message != "a" || events[1].Message != "b" || events[2].Message != "c" {
		t.Fatalf("unexpected order: %+v", events)
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := NewBuffer(0, 5, false)
	b.Append(logEvent("a"))
	b.Clear()
	if b.Len() != 0 || b.Bytes() != 0 || b.TruncatedCount() != 0 {
		t.Fatalf("expected cleared buffer, got len=%d bytes=%d truncated=%d", b.Len(), b.Bytes(), b.TruncatedCount())
	}
}
