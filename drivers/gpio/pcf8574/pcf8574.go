// Package pcf8574 drives the NXP PCF8574 8-bit I²C GPIO expander as a GPIO
// controller. Its pins are quasi-bidirectional: a pin is an input while its
// output latch is high.
package pcf8574

import (
	"context"
	"sync"

	"devicecore-go/device"
	"devicecore-go/devicetree"
	"devicecore-go/drivers/gpio"
	"devicecore-go/drivers/i2c"
	"devicecore-go/errcode"
	"devicecore-go/x/logx"

	"tinygo.org/x/drivers"
)

const (
	Compatible      = "nxp,pcf8574"
	Lines           = 8
	DefaultAddr     = 0x20
	DefaultPriority = 45 // PostKernel, below button.DefaultPriority
)

// latch shadows the output register; the chip has no readback of it.
type latch struct {
	mu  sync.Mutex
	out uint8
}

// Config is the per-instance configuration.
type Config struct {
	Bus  drivers.I2C
	Addr uint16
}

// Device is the typed handle of an expander.
type Device = device.Instance[Config, gpio.Port]

type api struct{}

var portAPI gpio.Port = api{}

func configOf(op string, dev device.Device) (Config, *latch, error) {
	d, ok := dev.(*Device)
	if !ok {
		return Config{}, nil, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "not a pcf8574"}
	}
	return d.Config(), d.Data().(*latch), nil
}

func (api) PinConfigure(_ context.Context, dev device.Device, pin int, flags gpio.Flags) error {
	const op = "pcf8574.configure"
	cfg, lt, err := configOf(op, dev)
	if err != nil {
		return err
	}
	if err := gpio.CheckPin(op, pin, Lines); err != nil {
		return err
	}
	if flags.Has(gpio.PullDown) {
		// Only weak pull-ups exist on this part.
		return &errcode.E{C: errcode.Unsupported, Op: op, Msg: "pull-down"}
	}
	lt.mu.Lock()
	defer lt.mu.Unlock()
	next := lt.out
	switch {
	case flags.Has(gpio.Input):
		next |= 1 << pin
	case flags.Has(gpio.Output):
		next &^= 1 << pin
	}
	if err := cfg.Bus.Tx(cfg.Addr, []byte{next}, nil); err != nil {
		return err
	}
	lt.out = next
	return nil
}

func (api) PinGetRaw(_ context.Context, dev device.Device, pin int) (bool, error) {
	const op = "pcf8574.get"
	cfg, _, err := configOf(op, dev)
	if err != nil {
		return false, err
	}
	if err := gpio.CheckPin(op, pin, Lines); err != nil {
		return false, err
	}
	var buf [1]byte
	if err := cfg.Bus.Tx(cfg.Addr, nil, buf[:]); err != nil {
		return false, err
	}
	return buf[0]&(1<<pin) != 0, nil
}

// initExpander probes the chip and releases every pin to input.
func initExpander(_ context.Context, dev *Device) error {
	cfg := dev.Config()
	lt := dev.Data().(*latch)
	log := logx.L().Named("pcf8574")
	log.Debugw("probing expander", "device", dev.Name(), "addr", cfg.Addr)

	var buf [1]byte
	if err := cfg.Bus.Tx(cfg.Addr, nil, buf[:]); err != nil {
		log.Errorw("expander not responding", "device", dev.Name(), "addr", cfg.Addr, "err", err)
		return &errcode.E{C: errcode.HardwareNotReady, Op: "pcf8574.init", Msg: dev.Name(), Err: err}
	}
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if err := cfg.Bus.Tx(cfg.Addr, []byte{0xff}, nil); err != nil {
		return &errcode.E{C: errcode.ConfigurationFailed, Op: "pcf8574.init", Msg: dev.Name(), Err: err}
	}
	lt.out = 0xff
	return nil
}

// Define registers an expander at addr on bus.
func Define(r *device.Registry, name string, bus drivers.I2C, addr uint16, prio int) (*Device, error) {
	if bus == nil {
		return nil, &errcode.E{C: errcode.UnknownBus, Op: "pcf8574.define", Msg: name}
	}
	if addr == 0 {
		addr = DefaultAddr
	}
	return device.Define(r, device.Spec[Config, gpio.Port]{
		Name:       name,
		Compatible: Compatible,
		Config:     Config{Bus: bus, Addr: addr},
		Data:       &latch{},
		API:        portAPI,
		Init:       initExpander,
		Level:      device.PostKernel,
		Priority:   prio,
	})
}

func init() {
	device.RegisterDriver(device.Driver{
		Compatible: Compatible,
		Level:      device.PostKernel,
		Priority:   DefaultPriority,
		Bind: func(r *device.Registry, _ int, n devicetree.Node) error {
			bus, err := i2c.Resolve(i2c.Buses, n.Bus)
			if err != nil {
				return err
			}
			_, err = Define(r, n.Name, bus, n.Reg, device.PriorityFor(n, DefaultPriority))
			return err
		},
	})
}
