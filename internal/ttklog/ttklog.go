// Package ttklog is a tiny leveled logger gated by a verbosity counter,
// built on github.com/go-logr/logr.
package ttklog

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
)

// Verbosity thresholds: 0 shows only warnings and errors, 1 adds info
// messages, 2 adds debug messages. The CLI layer clamps verbosity to 2.
const (
	levelInfo  = 1
	levelDebug = 2
)

// sink is a logr.LogSink that writes plain lines to an io.Writer,
// filtering by the configured verbosity.
type sink struct {
	verbosity int
	w         io.Writer
	name      string
}

func (s *sink) Init(logr.RuntimeInfo) {}

func (s *sink) Enabled(level int) bool {
	return level <= s.verbosity
}

func (s *sink) Info(level int, msg string, keysAndValues ...any) {
	prefix := "Info"
	if level >= levelDebug {
		prefix = "DEBUG"
	} else if hasWarnKV(keysAndValues) {
		prefix = "Warning"
	}
	fmt.Fprintf(s.w, "%s: %s%s\n", prefix, msg, formatKV(keysAndValues))
}

func (s *sink) Error(err error, msg string, keysAndValues ...any) {
	if err != nil {
		fmt.Fprintf(s.w, "ERROR: %s: %v%s\n", msg, err, formatKV(keysAndValues))
		return
	}
	fmt.Fprintf(s.w, "ERROR: %s%s\n", msg, formatKV(keysAndValues))
}

func (s *sink) WithValues(keysAndValues ...any) logr.LogSink {
	return s
}

func (s *sink) WithName(name string) logr.LogSink {
	cp := *s
	cp.name = name
	return &cp
}

func hasWarnKV(kv []any) bool {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i] == "level" && kv[i+1] == "warn" {
			return true
		}
	}
	return false
}

func formatKV(kv []any) string {
	if len(kv) == 0 {
		return ""
	}
	out := ""
	for i := 0; i+1 < len(kv); i += 2 {
		out += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	return out
}

// Logger wraps a logr.Logger with four severity levels: debug, info,
// warn, and error.
type Logger struct {
	l logr.Logger
}

// New creates a Logger writing to w, gated at the given verbosity
// (0, 1, or 2).
func New(verbosity int, w io.Writer) Logger {
	return Logger{l: logr.New(&sink{verbosity: verbosity, w: w})}
}

// Discard is a Logger that drops everything, used by callers (and
// tests) that don't want emulator diagnostics on stderr.
func Discard() Logger {
	return New(-1, io.Discard)
}

// Debug logs a debug message, shown only at verbosity 2.
func (l Logger) Debug(msg string, keysAndValues ...any) {
	l.l.V(levelDebug).Info(msg, keysAndValues...)
}

// Info logs an informational message, shown at verbosity 1 and above.
func (l Logger) Info(msg string, keysAndValues ...any) {
	l.l.V(levelInfo).Info(msg, keysAndValues...)
}

// Warn logs a warning, always shown.
func (l Logger) Warn(msg string, keysAndValues ...any) {
	l.l.Info(msg, append(append([]any{}, keysAndValues...), "level", "warn")...)
}

// Error logs an error, always shown.
func (l Logger) Error(err error, msg string, keysAndValues ...any) {
	l.l.Error(err, msg, keysAndValues...)
}
