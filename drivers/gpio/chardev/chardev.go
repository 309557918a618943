//go:build linux && !tinygo

// Package chardev is a GPIO controller backed by a Linux GPIO character
// device (/dev/gpiochipN), by way of mkch's gpio package.
package chardev

import (
	"context"
	"strings"
	"sync"

	"devicecore-go/device"
	"devicecore-go/devicetree"
	"devicecore-go/drivers/gpio"
	"devicecore-go/errcode"
	"devicecore-go/x/logx"

	mgpio "github.com/mkch/gpio"
	"go.uber.org/multierr"
)

const (
	Compatible      = "linux,gpiochip"
	DefaultPriority = 40
	consumer        = "devicecore"
)

// lines holds the requested line handles. Lines are opened by PinConfigure
// and kept for the process lifetime.
type lines struct {
	mu    sync.Mutex
	lines map[int]*mgpio.Line
}

// Config is the per-instance configuration. Chip is the character device
// name under /dev, e.g. "gpiochip0".
type Config struct {
	Chip string
}

// Device is the typed handle of a chardev controller.
type Device = device.Instance[Config, gpio.Port]

type api struct{}

var portAPI gpio.Port = api{}

func configOf(op string, dev device.Device) (Config, *lines, error) {
	d, ok := dev.(*Device)
	if !ok {
		return Config{}, nil, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "not a gpiochip controller"}
	}
	return d.Config(), d.Data().(*lines), nil
}

// ChipName reduces a devicetree path ("/dev/gpiochip0") to the name the
// chardev API expects ("gpiochip0"). An empty path falls back to def.
func ChipName(path, def string) string {
	if path == "" {
		return def
	}
	return strings.TrimPrefix(path, "/dev/")
}

func (api) PinConfigure(_ context.Context, dev device.Device, pin int, flags gpio.Flags) error {
	const op = "chardev.configure"
	cfg, ls, err := configOf(op, dev)
	if err != nil {
		return err
	}
	if pin < 0 {
		return gpio.CheckPin(op, pin, 0)
	}
	if flags.Has(gpio.PullUp) || flags.Has(gpio.PullDown) {
		// Bias needs uAPI v2; rely on the board's external resistors.
		logx.L().Named("chardev").Debugw("bias flags ignored", "device", dev.Name(), "pin", pin)
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if old, ok := ls.lines[pin]; ok {
		// Re-requesting a held line fails with EBUSY; release it first.
		if err := old.Close(); err != nil {
			return err
		}
		delete(ls.lines, pin)
	}
	chip, err := mgpio.OpenChip(cfg.Chip)
	if err != nil {
		return err
	}
	var line *mgpio.Line
	if flags.Has(gpio.Output) {
		line, err = chip.OpenLine(uint32(pin), 0, mgpio.Output, consumer)
	} else {
		line, err = chip.OpenLine(uint32(pin), 0, mgpio.Input, consumer)
	}
	if err != nil {
		return multierr.Combine(err, chip.Close())
	}
	if err := chip.Close(); err != nil {
		return multierr.Combine(err, line.Close())
	}
	ls.lines[pin] = line
	return nil
}

func (api) PinGetRaw(_ context.Context, dev device.Device, pin int) (bool, error) {
	const op = "chardev.get"
	_, ls, err := configOf(op, dev)
	if err != nil {
		return false, err
	}
	ls.mu.Lock()
	line, ok := ls.lines[pin]
	ls.mu.Unlock()
	if !ok {
		return false, &errcode.E{C: errcode.UnknownPin, Op: op, Msg: "line not requested"}
	}
	v, err := line.Value()
	if err != nil {
		return false, err
	}
	// Any non-zero value is high.
	return v != 0, nil
}

// initChip verifies the character device can be opened.
func initChip(_ context.Context, dev *Device) error {
	chip, err := mgpio.OpenChip(dev.Config().Chip)
	if err != nil {
		return &errcode.E{C: errcode.HardwareNotReady, Op: "chardev.init", Msg: dev.Config().Chip, Err: err}
	}
	return chip.Close()
}

// Define registers a controller for the character device chip, given either
// as "gpiochip0" or "/dev/gpiochip0". An empty chip uses the device name.
func Define(r *device.Registry, name, chip string, prio int) (*Device, error) {
	return device.Define(r, device.Spec[Config, gpio.Port]{
		Name:       name,
		Compatible: Compatible,
		Config:     Config{Chip: ChipName(chip, name)},
		Data:       &lines{lines: make(map[int]*mgpio.Line)},
		API:        portAPI,
		Init:       initChip,
		Level:      device.PreKernel2,
		Priority:   prio,
	})
}

func init() {
	device.RegisterDriver(device.Driver{
		Compatible: Compatible,
		Level:      device.PreKernel2,
		Priority:   DefaultPriority,
		Bind: func(r *device.Registry, _ int, n devicetree.Node) error {
			_, err := Define(r, n.Name, n.Path, device.PriorityFor(n, DefaultPriority))
			return err
		},
	})
}
