//go:build rp2040 || rp2350

// Package rp2 is the on-chip GPIO controller of the RP2040/RP2350.
package rp2

import (
	"context"
	"machine"

	"devicecore-go/device"
	"devicecore-go/devicetree"
	"devicecore-go/drivers/gpio"
	"devicecore-go/errcode"
)

const (
	Compatible      = "rp2,gpio"
	Lines           = 30
	DefaultPriority = 40
)

// Config is empty: there is a single bank.
type Config struct{}

// Device is the typed handle of the controller.
type Device = device.Instance[Config, gpio.Port]

type api struct{}

var portAPI gpio.Port = api{}

func (api) PinConfigure(_ context.Context, _ device.Device, pin int, flags gpio.Flags) error {
	if err := gpio.CheckPin("rp2.configure", pin, Lines); err != nil {
		return err
	}
	var mode machine.PinMode
	switch {
	case flags.Has(gpio.Output):
		mode = machine.PinOutput
	case flags.Has(gpio.PullUp):
		mode = machine.PinInputPullup
	case flags.Has(gpio.PullDown):
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (api) PinGetRaw(_ context.Context, _ device.Device, pin int) (bool, error) {
	if err := gpio.CheckPin("rp2.get", pin, Lines); err != nil {
		return false, err
	}
	return machine.Pin(pin).Get(), nil
}

func initBank(context.Context, *Device) error { return nil }

// Define registers the controller.
func Define(r *device.Registry, name string) (*Device, error) {
	if name == "" {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "rp2.define"}
	}
	return device.Define(r, device.Spec[Config, gpio.Port]{
		Name:       name,
		Compatible: Compatible,
		API:        portAPI,
		Init:       initBank,
		Level:      device.PreKernel1,
		Priority:   DefaultPriority,
	})
}

func init() {
	device.RegisterDriver(device.Driver{
		Compatible: Compatible,
		Level:      device.PreKernel1,
		Priority:   DefaultPriority,
		Bind: func(r *device.Registry, _ int, n devicetree.Node) error {
			_, err := Define(r, n.Name)
			return err
		},
	})
}
