// Package diag implements the fatal-by-default error taxonomy of spec §7
// and the structured logging it rides on. The toolchain has no recovery
// within a pass: every invariant violation becomes a *Fatal that names the
// offending segment/symbol/record and aborts the tool with a non-zero exit
// status.
package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Category classifies a Fatal into one of spec §7's five error classes.
type Category int

const (
	InputShape Category = iota
	Semantic
	Capacity
	FixupInvariant
	FormatIncompatibility
)

func (c Category) String() string {
	switch c {
	case InputShape:
		return "input-shape"
	case Semantic:
		return "semantic"
	case Capacity:
		return "capacity"
	case FixupInvariant:
		return "fixup-invariant"
	case FormatIncompatibility:
		return "format-incompatibility"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Fatal is the one error type every pass returns on an invariant
// violation. Segment and Symbol, when set, are included in Error() so the
// top-level CLI can print a message naming the offender without each call
// site hand-formatting strings (spec §7: "names the offending
// segment/symbol/record").
type Fatal struct {
	Category Category
	Message  string
	Segment  string
	Symbol   string
}

func (f *Fatal) Error() string {
	switch {
	case f.Segment != "" && f.Symbol != "":
		return fmt.Sprintf("%s: %s (segment %q, symbol %q)", f.Category, f.Message, f.Segment, f.Symbol)
	case f.Segment != "":
		return fmt.Sprintf("%s: %s (segment %q)", f.Category, f.Message, f.Segment)
	case f.Symbol != "":
		return fmt.Sprintf("%s: %s (symbol %q)", f.Category, f.Message, f.Symbol)
	default:
		return fmt.Sprintf("%s: %s", f.Category, f.Message)
	}
}

// Fatalf builds a *Fatal with a formatted message and no named offender.
func Fatalf(cat Category, format string, args ...any) *Fatal {
	return &Fatal{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// FatalSeg builds a *Fatal naming an offending segment.
func FatalSeg(cat Category, segment, format string, args ...any) *Fatal {
	return &Fatal{Category: cat, Message: fmt.Sprintf(format, args...), Segment: segment}
}

// FatalSym builds a *Fatal naming an offending symbol.
func FatalSym(cat Category, symbol, format string, args ...any) *Fatal {
	return &Fatal{Category: cat, Message: fmt.Sprintf(format, args...), Symbol: symbol}
}

// NewLogger returns the toolchain's structured logger: a text handler on
// stderr, fanned out with slog-multi so tests (and, in the CLI, a future
// --json flag) can tap the same stream of records without re-wiring
// call sites (spec's AMBIENT STACK logging section).
func NewLogger(extra ...slog.Handler) *slog.Logger {
	handlers := append([]slog.Handler{slog.NewTextHandler(os.Stderr, nil)}, extra...)
	return slog.New(slogmulti.Fanout(handlers...))
}

// MemoryHandler is an slog.Handler that keeps every record it receives,
// for assertions in tests that exercise a pass's logging behavior rather
// than only its returned error.
type MemoryHandler struct {
	records []slog.Record
}

// NewMemoryHandler returns an empty MemoryHandler.
func NewMemoryHandler() *MemoryHandler { return &MemoryHandler{} }

func (h *MemoryHandler) Enabled(_ context.Context, level slog.Level) bool { return true }

func (h *MemoryHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}

func (h *MemoryHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *MemoryHandler) WithGroup(name string) slog.Handler       { return h }

// Records returns every record captured so far.
func (h *MemoryHandler) Records() []slog.Record { return h.records }

// discardLogger returns a logger that writes nowhere, for callers that
// want no stderr output; nothing in the module calls it yet.
func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
