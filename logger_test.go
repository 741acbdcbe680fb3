package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestEventLoggerTail(t *testing.T) {
	el := NewEventLogger(filepath.Join(t.TempDir(), "events.log"))
	for i := 0; i < 5; i++ {
		el.Log("event %d", i)
	}
	lines, err := el.Tail(3)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.HasSuffix(lines[0], "event 2") || !strings.HasSuffix(lines[2], "event 4") {
		t.Errorf("tail window wrong: %v", lines)
	}
}

func TestEventLoggerTailMissingFile(t *testing.T) {
	el := NewEventLogger(filepath.Join(t.TempDir(), "nope.log"))
	if _, err := el.Tail(10); err == nil {
		t.Error("Tail succeeded on missing file")
	}
}
