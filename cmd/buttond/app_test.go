package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"devicecore-go/device"
)

const board = `
node "gpio0" {
  compatible = "fake,gpio"
  lines      = 8
}

node "button0" {
  compatible = "custom_button"
  gpio {
    controller = "gpio0"
    pin        = 3
    flags      = ["active_low", "pull_up"]
  }
}

node "button1" {
  compatible = "custom_button"
  gpio {
    controller = "gpio0"
    pin        = 4
    flags      = ["pull_up"]
  }
}

node "stuck" {
  compatible = "custom_button"
  gpio {
    controller = "gpio0"
    pin        = 12
  }
}
`

func writeBoard(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.hcl")
	if err := os.WriteFile(path, []byte(board), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPollPrintsInitialStates(t *testing.T) {
	var out bytes.Buffer
	app := newApp(device.NewRegistry(), &out)
	err := app.Run([]string{"buttond", "--board", writeBoard(t), "--count", "2", "--interval", "1ms", "--log-level", "error"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{"button0 state=0", "button1 state=1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestListShowsFailedDevices(t *testing.T) {
	var out bytes.Buffer
	reg := device.NewRegistry()
	app := newApp(reg, &out)
	if err := app.Run([]string{"buttond", "--board", writeBoard(t), "--log-level", "error", "list"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"gpio0", "button0", "stuck", "configuration_failed"} {
		if !strings.Contains(text, want) {
			t.Fatalf("list output missing %q:\n%s", want, text)
		}
	}
	if len(reg.Devices()) != 4 {
		t.Fatalf("want 4 devices, got %d", len(reg.Devices()))
	}
}

func TestMissingBoardIsFatal(t *testing.T) {
	app := newApp(device.NewRegistry(), &bytes.Buffer{})
	err := app.Run([]string{"buttond", "--board", filepath.Join(t.TempDir(), "none.hcl"), "--log-level", "error", "list"})
	if err == nil {
		t.Fatal("expected an error for a missing board file")
	}
}

func TestBadLogLevel(t *testing.T) {
	app := newApp(device.NewRegistry(), &bytes.Buffer{})
	if err := app.Run([]string{"buttond", "--log-level", "loud", "list"}); err == nil {
		t.Fatal("expected log level error")
	}
}
