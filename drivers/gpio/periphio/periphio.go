//go:build !tinygo

// Package periphio is a GPIO controller over periph.io's pin registry. Pins
// are addressed by name as <prefix><number>, e.g. "GPIO17" on a Raspberry Pi.
package periphio

import (
	"context"
	"strconv"

	"devicecore-go/device"
	"devicecore-go/devicetree"
	"devicecore-go/drivers/gpio"
	"devicecore-go/errcode"
	"devicecore-go/x/strx"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const (
	Compatible      = "periph,gpio"
	DefaultPrefix   = "GPIO"
	DefaultPriority = 40
)

// Config is the per-instance configuration.
type Config struct {
	Prefix string
}

// Device is the typed handle of a periph controller.
type Device = device.Instance[Config, gpio.Port]

type api struct{}

var portAPI gpio.Port = api{}

func pinOf(op string, dev device.Device, pin int) (pgpio.PinIO, error) {
	d, ok := dev.(*Device)
	if !ok {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "not a periph controller"}
	}
	name := d.Config().Prefix + strconv.Itoa(pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: op, Msg: name}
	}
	return p, nil
}

func (api) PinConfigure(_ context.Context, dev device.Device, pin int, flags gpio.Flags) error {
	p, err := pinOf("periphio.configure", dev, pin)
	if err != nil {
		return err
	}
	if flags.Has(gpio.Output) {
		return p.Out(pgpio.Low)
	}
	pull := pgpio.Float
	switch {
	case flags.Has(gpio.PullUp):
		pull = pgpio.PullUp
	case flags.Has(gpio.PullDown):
		pull = pgpio.PullDown
	}
	return p.In(pull, pgpio.NoEdge)
}

func (api) PinGetRaw(_ context.Context, dev device.Device, pin int) (bool, error) {
	p, err := pinOf("periphio.get", dev, pin)
	if err != nil {
		return false, err
	}
	return p.Read() == pgpio.High, nil
}

// initHost loads periph's host drivers; it is safe to call more than once.
func initHost(_ context.Context, dev *Device) error {
	if _, err := host.Init(); err != nil {
		return &errcode.E{C: errcode.HardwareNotReady, Op: "periphio.init", Msg: dev.Name(), Err: err}
	}
	return nil
}

// Define registers a periph-backed controller. An empty prefix means "GPIO".
func Define(r *device.Registry, name, prefix string, prio int) (*Device, error) {
	return device.Define(r, device.Spec[Config, gpio.Port]{
		Name:       name,
		Compatible: Compatible,
		Config:     Config{Prefix: strx.Coalesce(prefix, DefaultPrefix)},
		API:        portAPI,
		Init:       initHost,
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
			// The node label doubles as the pin name prefix.
			_, err := Define(r, n.Name, n.Label, device.PriorityFor(n, DefaultPriority))
			return err
		},
	})
}
