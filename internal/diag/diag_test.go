package diag

import (
	"context"
	"log/slog"
	"testing"
)

func TestFatalErrorNaming(t *testing.T) {
	err := FatalSeg(Semantic, "CODE", "duplicate public segment %q", "CODE")
	want := `semantic: duplicate public segment "CODE" (segment "CODE")`
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}

func TestFatalfNoOffender(t *testing.T) {
	err := Fatalf(Capacity, "image exceeds %d bytes", 0xA0000)
	want := "capacity: image exceeds 655360 bytes"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}

func TestMemoryHandlerCapturesRecords(t *testing.T) {
	h := NewMemoryHandler()
	logger := NewLogger(h)
	logger.Warn("built without a stack segment", "tool", "z80exe")

	recs := h.Records()
	if len(recs) != 1 {
		t.Fatalf("want 1 captured record, got %d", len(recs))
	}
	if recs[0].Message != "built without a stack segment" {
		t.Fatalf("unexpected message: %q", recs[0].Message)
	}
	if recs[0].Level != slog.LevelWarn {
		t.Fatalf("want warn level, got %v", recs[0].Level)
	}
}

func TestMemoryHandlerEnabledAlwaysTrue(t *testing.T) {
	h := NewMemoryHandler()
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("MemoryHandler should accept every level")
	}
}
