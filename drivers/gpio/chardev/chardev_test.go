//go:build linux && !tinygo

package chardev

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"devicecore-go/device"
	"devicecore-go/errcode"
	"devicecore-go/x/logx"
)

func TestChipName(t *testing.T) {
	cases := []struct{ path, def, want string }{
		{"/dev/gpiochip0", "x", "gpiochip0"},
		{"gpiochip1", "x", "gpiochip1"},
		{"", "gpiochip2", "gpiochip2"},
	}
	for _, tc := range cases {
		if got := ChipName(tc.path, tc.def); got != tc.want {
			t.Fatalf("ChipName(%q, %q) = %q, want %q", tc.path, tc.def, got, tc.want)
		}
	}
}

// fakeChip creates a throwaway node under /dev. Opening it is all init does.
func fakeChip(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("/dev", "gpiochip-test-")
	if err != nil {
		t.Skipf("cannot create a node under /dev: %v", err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	return filepath.Base(f.Name())
}

func TestInitOpensChipUnderDev(t *testing.T) {
	chip := fakeChip(t)
	r := device.NewRegistry(device.WithLogger(logx.Nop()))
	byPath, err := Define(r, "bypath", "/dev/"+chip, DefaultPriority)
	if err != nil {
		t.Fatal(err)
	}
	byName, err := Define(r, chip, "", DefaultPriority)
	if err != nil {
		t.Fatal(err)
	}
	missing, err := Define(r, "missing", "/dev/gpiochip-does-not-exist", DefaultPriority)
	if err != nil {
		t.Fatal(err)
	}

	_ = r.InitAll(context.Background())
	if !byPath.IsReady() || !byName.IsReady() {
		t.Fatalf("bypath=%v (%v) byname=%v (%v)", byPath.State(), byPath.Err(), byName.State(), byName.Err())
	}
	if errcode.Of(missing.Err()) != errcode.HardwareNotReady {
		t.Fatalf("missing chip: %v", missing.Err())
	}
}

func TestGetBeforeConfigure(t *testing.T) {
	r := device.NewRegistry(device.WithLogger(logx.Nop()))
	d, _ := Define(r, "gpiochip9", "", DefaultPriority)
	if _, err := portAPI.PinGetRaw(context.Background(), d, 3); errcode.Of(err) != errcode.UnknownPin {
		t.Fatalf("want unknown_pin for an unrequested line, got %v", err)
	}
}
