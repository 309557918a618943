//go:build !tinygo

// Package periphbus provides host I²C buses through periph.io's bus registry
// and publishes them in i2c.Buses under the node name, so expanders on the
// same board can bind to them.
package periphbus

import (
	"context"
	"sync"

	"devicecore-go/device"
	"devicecore-go/devicetree"
	"devicecore-go/drivers/i2c"
	"devicecore-go/errcode"

	pi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	Compatible      = "periph,i2c"
	DefaultPriority = 30
)

// Config names the bus in periph's registry ("1", "/dev/i2c-1"); empty
// selects the first bus found.
type Config struct {
	Bus string
}

// API is the handle's capability: the bus it controls.
type API interface {
	Bus(dev *Device) *Bus
}

type Device = device.Instance[Config, API]

type api struct{}

var shared API = api{}

func (api) Bus(dev *Device) *Bus { return dev.Data().(*Bus) }

// Bus is a drivers.I2C that forwards to the periph bus once init has opened
// it. Before that, and after a failed init, Tx reports hardware_not_ready.
type Bus struct {
	name string
	mu   sync.RWMutex
	bus  pi2c.BusCloser
}

func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bus == nil {
		return &errcode.E{C: errcode.HardwareNotReady, Op: "periphbus.tx", Msg: b.name}
	}
	return b.bus.Tx(addr, w, r)
}

func initBus(_ context.Context, dev *Device) error {
	const op = "periphbus.init"
	if _, err := host.Init(); err != nil {
		return &errcode.E{C: errcode.HardwareNotReady, Op: op, Msg: dev.Name(), Err: err}
	}
	bc, err := i2creg.Open(dev.Config().Bus)
	if err != nil {
		return &errcode.E{C: errcode.HardwareNotReady, Op: op, Msg: dev.Name(), Err: err}
	}
	b := dev.Data().(*Bus)
	b.mu.Lock()
	b.bus = bc
	b.mu.Unlock()
	return nil
}

// Define registers a host bus and adds it to table under name.
func Define(r *device.Registry, table *i2c.Table, name, bus string, prio int) (*Device, error) {
	b := &Bus{name: name}
	d, err := device.Define(r, device.Spec[Config, API]{
		Name:       name,
		Compatible: Compatible,
		Config:     Config{Bus: bus},
		API:        shared,
		Init:       initBus,
		Level:      device.PreKernel2,
		Priority:   prio,
		Data:       b,
	})
	if err != nil {
		return nil, err
	}
	table.Add(name, b)
	return d, nil
}

func init() {
	device.RegisterDriver(device.Driver{
		Compatible: Compatible,
		Level:      device.PreKernel2,
		Priority:   DefaultPriority,
		Bind: func(r *device.Registry, _ int, n devicetree.Node) error {
			_, err := Define(r, i2c.Buses, n.Name, n.Path, device.PriorityFor(n, DefaultPriority))
			return err
		},
	})
}
