// Package logx is the structured logger used across devicecore.
//
// Host builds log through zap; MCU builds (tinygo) fall back to a plain line
// writer so the drivers never link a reflection-heavy encoder.
package logx

import "sync/atomic"

// Logger is a leveled, key/value logger. Modules obtain their own scope with
// Named, e.g. logx.L().Named("button").
type Logger interface {
	Debugw(msg string, kv ...any)
	Infow(msg string, kv ...any)
	Warnw(msg string, kv ...any)
	Errorw(msg string, kv ...any)
	Named(module string) Logger
}

// Level orders severities for backends that filter locally.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	}
	return "unknown"
}

// ParseLevel maps "debug","info","warn","error" to a Level; anything else is info.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "dbg":
		return DebugLevel
	case "warn", "warning", "wrn":
		return WarnLevel
	case "error", "err":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

type holder struct{ l Logger }

var def atomic.Pointer[holder]

// L returns the process-wide logger.
func L() Logger {
	if h := def.Load(); h != nil {
		return h.l
	}
	return defaultLogger()
}

// SetDefault replaces the process-wide logger. A nil logger installs Nop.
func SetDefault(l Logger) {
	if l == nil {
		l = Nop()
	}
	def.Store(&holder{l: l})
}

// Nop discards everything.
func Nop() Logger { return nop{} }

type nop struct{}

func (nop) Debugw(string, ...any) {}
func (nop) Infow(string, ...any)  {}
func (nop) Warnw(string, ...any)  {}
func (nop) Errorw(string, ...any) {}
func (n nop) Named(string) Logger { return n }
