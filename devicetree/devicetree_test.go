package devicetree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"devicecore-go/errcode"

	"github.com/google/go-cmp/cmp"
)

const board = `
node "gpio0" {
  compatible = "fake,gpio"
  lines      = 8
}

node "button0" {
  compatible = "custom_button"
  label      = "User"
  gpio {
    controller = "gpio0"
    pin        = 3
    flags      = ["active_low", "pull_up"]
  }
}

node "button1" {
  compatible = "custom_button"
  status     = "disabled"
  gpio {
    controller = "gpio0"
    pin        = 4
  }
}

node "button2" {
  compatible    = "custom_button"
  init_priority = 10
  gpio {
    controller = "gpio0"
    pin        = 5
  }
}

node "exp0" {
  compatible = "nxp,pcf8574"
  bus        = "i2c0"
  reg        = 32
}
`

func TestParseBoard(t *testing.T) {
	tr, err := Parse([]byte(board), "board.hcl")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b0, ok := tr.Node("button0")
	if !ok {
		t.Fatal("button0 missing")
	}
	want := []PinRef{{Controller: "gpio0", Pin: 3, Flags: ActiveLow | PullUp}}
	if diff := cmp.Diff(want, b0.GPIOs); diff != "" {
		t.Fatalf("gpios (-want +got):\n%s", diff)
	}
	if b0.Status != StatusOkay || b0.Label != "User" || b0.InitPriority != nil {
		t.Fatalf("unexpected node: %+v", b0)
	}
	b2, _ := tr.Node("button2")
	if b2.InitPriority == nil || *b2.InitPriority != 10 {
		t.Fatalf("init_priority not decoded: %+v", b2)
	}
	exp, _ := tr.Node("exp0")
	if exp.Bus != "i2c0" || exp.Reg != 0x20 {
		t.Fatalf("bus ref not decoded: %+v", exp)
	}
	g, _ := tr.Node("gpio0")
	if g.Lines != 8 {
		t.Fatalf("lines: %d", g.Lines)
	}
	if diff := cmp.Diff([]string{"fake,gpio", "custom_button", "nxp,pcf8574"}, tr.Compatibles()); diff != "" {
		t.Fatalf("compatibles (-want +got):\n%s", diff)
	}
}

func TestForEachStatusOkaySkipsDisabled(t *testing.T) {
	tr, err := Parse([]byte(board), "board.hcl")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	type seen struct {
		Inst int
		Name string
	}
	var got []seen
	err = tr.ForEachStatusOkay("custom_button", func(inst int, n Node) error {
		got = append(got, seen{inst, n.Name})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []seen{{0, "button0"}, {1, "button2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("instances (-want +got):\n%s", diff)
	}
}

func TestForEachStatusOkayStopsOnError(t *testing.T) {
	tr, _ := Parse([]byte(board), "board.hcl")
	stop := errors.New("stop")
	calls := 0
	err := tr.ForEachStatusOkay("custom_button", func(int, Node) error { calls++; return stop })
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestNewRejectsBadNodes(t *testing.T) {
	cases := map[string][]Node{
		"missing compatible": {{Name: "a"}},
		"duplicate":          {{Name: "a", Compatible: "x"}, {Name: "a", Compatible: "y"}},
		"bad status":         {{Name: "a", Compatible: "x", Status: "maybe"}},
	}
	for name, nodes := range cases {
		if _, err := New(nodes); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	_, err := New([]Node{{Name: "a", Compatible: "x"}, {Name: "a", Compatible: "x"}})
	if errcode.Of(err) != errcode.DuplicateDevice {
		t.Fatalf("want duplicate_device, got %v", err)
	}
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	src := `
node "b" {
  compatible = "custom_button"
  gpio {
    controller = "gpio0"
    pin        = 1
    flags      = ["open_drain"]
  }
}
`
	if _, err := Parse([]byte(src), "bad.hcl"); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.hcl")
	if err := os.WriteFile(path, []byte(board), 0o600); err != nil {
		t.Fatal(err)
	}
	tr, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tr.Nodes()) != 5 {
		t.Fatalf("want 5 nodes, got %d", len(tr.Nodes()))
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.hcl")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
