// Package button is a polled digital-input driver: one GPIO line per button,
// configured as input at boot and sampled on demand.
package button

import (
	"context"

	"devicecore-go/device"
	"devicecore-go/devicetree"
	"devicecore-go/drivers/gpio"
	"devicecore-go/errcode"
	"devicecore-go/x/logx"
)

const (
	Compatible = "custom_button"
	// DefaultPriority runs buttons after the GPIO controllers they sit on.
	DefaultPriority = 50
)

// Config is the immutable per-instance configuration.
type Config struct {
	Pin gpio.Spec
	ID  uint32
}

// API is the button capability. Every button kind implements it; every
// instance of a kind shares one value.
type API interface {
	StateGet(ctx context.Context, dev *Device) (uint8, error)
}

// Device is the typed handle of a button.
type Device = device.Instance[Config, API]

type api struct{}

// shared is the API value handed to every custom_button instance.
var shared API = &api{}

func logger() logx.Logger { return logx.L().Named("button") }

func initButton(ctx context.Context, dev *Device) error {
	const op = "button.init"
	cfg := dev.Config()
	log := logger()
	log.Debugw("initializing button", "id", cfg.ID, "gpio", cfg.Pin.String())

	if !cfg.Pin.IsReady() {
		log.Errorw("gpio device is not ready", "id", cfg.ID, "gpio", cfg.Pin.String())
		return &errcode.E{C: errcode.HardwareNotReady, Op: op, Msg: cfg.Pin.String()}
	}
	if err := cfg.Pin.Configure(ctx, gpio.Input); err != nil {
		log.Errorw("failed to configure button", "id", cfg.ID, "gpio", cfg.Pin.String(), "err", err)
		return &errcode.E{C: errcode.ConfigurationFailed, Op: op, Msg: cfg.Pin.String(), Err: err}
	}
	return nil
}

// StateGet samples the button. It refuses devices that are not READY rather
// than touching hardware that was never configured.
func (*api) StateGet(ctx context.Context, dev *Device) (uint8, error) {
	const op = "button.get"
	if dev == nil {
		return 0, &errcode.E{C: errcode.UnknownDevice, Op: op}
	}
	if !dev.IsReady() {
		return 0, &errcode.E{C: errcode.DeviceNotReady, Op: op, Msg: dev.Name(), Err: dev.Err()}
	}
	cfg := dev.Config()
	v, err := cfg.Pin.Get(ctx)
	if err != nil {
		logger().Errorw("failed to read button state", "id", cfg.ID, "err", err)
		return 0, &errcode.E{C: errcode.ReadFailure, Op: op, Msg: dev.Name(), Err: err}
	}
	return v, nil
}

// Get dispatches through dev's API.
func Get(ctx context.Context, dev *Device) (uint8, error) {
	if dev == nil {
		return 0, &errcode.E{C: errcode.UnknownDevice, Op: "button.get"}
	}
	return dev.API().StateGet(ctx, dev)
}

// Define registers a button on pin with instance id.
func Define(r *device.Registry, name string, pin gpio.Spec, id uint32, prio int) (*Device, error) {
	return device.Define(r, device.Spec[Config, API]{
		Name:       name,
		Compatible: Compatible,
		Config:     Config{Pin: pin, ID: id},
		API:        shared,
		Init:       initButton,
		Level:      device.PostKernel,
		Priority:   prio,
	})
}

// Lookup resolves a button by name.
func Lookup(r *device.Registry, name string) (*Device, bool) {
	return device.LookupAs[Config, API](r, name)
}

// All returns every button in r, in the registry's current order.
func All(r *device.Registry) []*Device {
	var out []*Device
	for _, d := range r.Devices() {
		if b, ok := d.(*Device); ok {
			out = append(out, b)
		}
	}
	return out
}

func bind(r *device.Registry, inst int, n devicetree.Node) error {
	if len(n.GPIOs) == 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "button.bind", Msg: n.Name + ": missing gpio"}
	}
	pin, err := gpio.ResolveSpec(r, n.GPIOs[0])
	if err != nil {
		return err
	}
	_, err = Define(r, n.Name, pin, uint32(inst), device.PriorityFor(n, DefaultPriority))
	return err
}

func init() {
	device.RegisterDriver(device.Driver{
		Compatible: Compatible,
		Level:      device.PostKernel,
		Priority:   DefaultPriority,
		Bind:       bind,
	})
}
