//go:build tinygo

package logx

import "io"

// Output receives log lines on MCU builds until SetOutput is called.
var output io.Writer = discard{}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// SetOutput points the default MCU logger at w (typically a UART) with the
// given minimum level.
func SetOutput(w io.Writer, min Level) {
	output = w
	SetDefault(NewWriter(w, min))
}

func defaultLogger() Logger {
	l := NewWriter(output, InfoLevel)
	SetDefault(l)
	return l
}
