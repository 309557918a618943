package logx

import (
	"io"
	"strconv"
	"sync"
)

// NewWriter returns a Logger that prints one line per record to w:
//
//	<err> button: failed to read button state id=0 err=read_failure
//
// It avoids fmt so it stays cheap on microcontrollers.
func NewWriter(w io.Writer, min Level) Logger {
	return &lineLogger{out: &lockedWriter{w: w}, min: min}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) write(p []byte) {
	lw.mu.Lock()
	_, _ = lw.w.Write(p)
	lw.mu.Unlock()
}

type lineLogger struct {
	out    *lockedWriter
	min    Level
	module string
}

func (l *lineLogger) Named(module string) Logger {
	if l.module != "" {
		module = l.module + "." + module
	}
	return &lineLogger{out: l.out, min: l.min, module: module}
}

func (l *lineLogger) Debugw(msg string, kv ...any) { l.log(DebugLevel, msg, kv) }
func (l *lineLogger) Infow(msg string, kv ...any)  { l.log(InfoLevel, msg, kv) }
func (l *lineLogger) Warnw(msg string, kv ...any)  { l.log(WarnLevel, msg, kv) }
func (l *lineLogger) Errorw(msg string, kv ...any) { l.log(ErrorLevel, msg, kv) }

var tags = map[Level]string{
	DebugLevel: "<dbg> ",
	InfoLevel:  "<inf> ",
	WarnLevel:  "<wrn> ",
	ErrorLevel: "<err> ",
}

func (l *lineLogger) log(lvl Level, msg string, kv []any) {
	if lvl < l.min {
		return
	}
	b := make([]byte, 0, 64)
	b = append(b, tags[lvl]...)
	if l.module != "" {
		b = append(b, l.module...)
		b = append(b, ": "...)
	}
	b = append(b, msg...)
	for i := 0; i < len(kv); i += 2 {
		b = append(b, ' ')
		key, _ := kv[i].(string)
		if key == "" {
			key = "?"
		}
		b = append(b, key...)
		b = append(b, '=')
		if i+1 < len(kv) {
			b = appendValue(b, kv[i+1])
		}
	}
	b = append(b, '\n')
	l.out.write(b)
}

func appendValue(b []byte, v any) []byte {
	switch x := v.(type) {
	case string:
		return append(b, x...)
	case error:
		return append(b, x.Error()...)
	case bool:
		return strconv.AppendBool(b, x)
	case int:
		return strconv.AppendInt(b, int64(x), 10)
	case int32:
		return strconv.AppendInt(b, int64(x), 10)
	case int64:
		return strconv.AppendInt(b, x, 10)
	case uint8:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint16:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint32:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint64:
		return strconv.AppendUint(b, x, 10)
	case interface{ String() string }:
		return append(b, x.String()...)
	case nil:
		return append(b, "<nil>"...)
	default:
		return append(b, '?')
	}
}
