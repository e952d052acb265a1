// Package klog provides the kernel's structured diagnostic logging,
// grounded on biscuit's pervasive fmt.Printf diagnostics (e.g.
// proc.go's "*** fault *** %v: addr %x, rip %x, err %v" trap_proc
// message) generalized to log/slog: biscuit's ad-hoc Printf calls are
// themselves a stand-in for a text-framebuffer sink this core does not
// own (the diagnostics output device is excluded from this repository),
// so klog emits structured records through a slog.Handler that an
// arch.Platform-backed sink (console, framebuffer, or a test buffer)
// renders however it likes.
//
// log/slog is the standard library; no pack example imports a structured
// logging library (biscuit uses raw fmt.Printf throughout, and nothing
// else in the retrieved corpus touches logging), so there is no
// third-party logger to ground this on instead — see DESIGN.md.
package klog

import (
	"context"
	"log/slog"

	"github.com/shivanshudwivedi/Microkernel/internal/arch"
)

// platformHandler adapts slog's Handler interface onto an arch.Platform's
// single WriteDiagnostic sink, since a freestanding kernel has no stdout
// to hand slog's usual io.Writer-based handlers.
type platformHandler struct {
	platform arch.Platform
	attrs    []slog.Attr
	level    slog.Leveler
}

// NewHandler constructs an slog.Handler that renders records as one line
// per record via platform.WriteDiagnostic, at or above minLevel.
func NewHandler(platform arch.Platform, minLevel slog.Leveler) slog.Handler {
	if minLevel == nil {
		minLevel = slog.LevelInfo
	}
	return &platformHandler{platform: platform, level: minLevel}
}

func (h *platformHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *platformHandler) Handle(_ context.Context, r slog.Record) error {
	line := r.Level.String() + " " + r.Message
	for _, a := range h.attrs {
		line += " " + a.Key + "=" + a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		line += " " + a.Key + "=" + a.Value.String()
		return true
	})
	h.platform.WriteDiagnostic(line)
	return nil
}

func (h *platformHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &platformHandler{platform: h.platform, level: h.level}
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

func (h *platformHandler) WithGroup(name string) slog.Handler {
	// Groups are not meaningful on a single flat diagnostic line; the
	// kernel's log call sites never nest groups, so this is never
	// exercised in practice.
	return h
}

// Logger wraps *slog.Logger with the event vocabulary this kernel's
// subsystems actually emit, so call sites write klog.Event(...) instead
// of re-deriving the same attr keys at every call site.
type Logger struct {
	s *slog.Logger
}

// New constructs a Logger over the given Platform.
func New(platform arch.Platform, minLevel slog.Leveler) *Logger {
	return &Logger{s: slog.New(NewHandler(platform, minLevel))}
}

// Event logs a structured kernel event: a task create/exit, block/unblock,
// page-fault service, eviction, or mailbox-full condition, tagged with
// the owning pid.
func (l *Logger) Event(event string, pid int32, attrs ...any) {
	args := append([]any{"pid", pid}, attrs...)
	l.s.Info(event, args...)
}

// Warn logs a recoverable anomaly (mailbox full, frame exhaustion before
// eviction resolves it) that does not itself panic the kernel.
func (l *Logger) Warn(msg string, attrs ...any) {
	l.s.Warn(msg, attrs...)
}

// Fatal logs the diagnostic line a kernel panic writes before halting:
// a message to the text framebuffer, then interrupts disabled and the
// CPU halted in a spin. It does not itself halt; callers invoke
// arch.HaltSpin immediately after.
func (l *Logger) Fatal(msg string, attrs ...any) {
	l.s.Error(msg, attrs...)
}
