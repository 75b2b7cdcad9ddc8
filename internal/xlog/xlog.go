// Package xlog gives the storage bootstrap and dispose paths structured,
// leveled logging without involving the core engine (spec §7 "no core
// operation logs" — internal/core, view, and query never import this
// package). It is a thin adapter over github.com/cloudresty/go-log
// (imported as emit), pulled in from the retrieval pack's other_examples/
// rather than from the teacher itself, since go-fuse logs through its own
// fuse.Server debug hooks and has no structured logger of its own.
package xlog

import emit "github.com/cloudresty/go-log"

// Logger is the structured logger handed to the storage constructor. A nil *Logger is valid and discards everything, so callers
// that don't care about diagnostics never have to construct one.
type Logger struct {
	l *emit.Logger
}

// New wraps an emit.Logger tagged with component for every line it emits.
func New(component string) *Logger {
	return &Logger{l: emit.New(component, "")}
}

// Discard returns a Logger that drops every call, used as the zero-value
// default when storage.Options carries no logger.
func Discard() *Logger { return nil }

func (lg *Logger) Debug(msg string, fields ...emit.ZField) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Debug(msg, fields...)
}

func (lg *Logger) Info(msg string, fields ...emit.ZField) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Info(msg, fields...)
}

func (lg *Logger) Warn(msg string, fields ...emit.ZField) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Warn(msg, fields...)
}

func (lg *Logger) Error(msg string, fields ...emit.ZField) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Error(msg, fields...)
}

// Str, Int, and Err build structured fields for the calls above, wrapping
// emit's concrete ZField implementations.
func Str(key, value string) emit.ZField { return emit.StringZField{Key: key, Value: value} }
func Int(key string, value int) emit.ZField { return emit.IntZField{Key: key, Value: value} }
func Bool(key string, value bool) emit.ZField { return emit.BoolZField{Key: key, Value: value} }
func Err(err error) emit.ZField {
	if err == nil {
		return emit.StringZField{Key: "error", Value: ""}
	}
	return emit.StringZField{Key: "error", Value: err.Error()}
}
