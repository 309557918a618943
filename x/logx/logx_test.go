package logx

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriterFiltersAndFormats(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, InfoLevel).Named("button")

	l.Debugw("hidden")
	l.Errorw("failed to read button state", "id", uint32(2), "err", errors.New("read_failure"), "ok", false)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked: %q", out)
	}
	want := "<err> button: failed to read button state id=2 err=read_failure ok=false\n"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestWriterNestedNames(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, DebugLevel).Named("gpio").Named("pcf8574").Infow("probe")
	if got := buf.String(); got != "<inf> gpio.pcf8574: probe\n" {
		t.Fatalf("got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": DebugLevel, "warn": WarnLevel, "error": ErrorLevel, "": InfoLevel, "bogus": InfoLevel}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestZapAdapterScopesModules(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core).Sugar()).Named("device")

	l.Warnw("device init failed", "device", "btn0")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "device" || e.Level != zapcore.WarnLevel {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.ContextMap()["device"] != "btn0" {
		t.Fatalf("missing field: %v", e.ContextMap())
	}
}

func TestSetDefaultNil(t *testing.T) {
	prev := L()
	defer SetDefault(prev)

	SetDefault(nil)
	L().Errorw("dropped") // must not panic
}
