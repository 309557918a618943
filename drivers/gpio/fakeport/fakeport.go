// Package fakeport is a simulated GPIO controller for host builds and tests.
// Levels, readiness and failures are programmed through its Sim.
package fakeport

import (
	"context"
	"sync"

	"devicecore-go/device"
	"devicecore-go/devicetree"
	"devicecore-go/drivers/gpio"
	"devicecore-go/errcode"
)

const (
	Compatible      = "fake,gpio"
	DefaultLines    = 32
	DefaultPriority = 40
)

// Sim is the simulated hardware behind one controller.
type Sim struct {
	mu        sync.RWMutex
	lines     int
	absent    bool
	level     map[int]bool
	mode      map[int]gpio.Flags
	readErr   map[int]error
	configErr map[int]error
	reads     int
}

func NewSim(lines int) *Sim {
	if lines <= 0 {
		lines = DefaultLines
	}
	return &Sim{
		lines:     lines,
		level:     make(map[int]bool),
		mode:      make(map[int]gpio.Flags),
		readErr:   make(map[int]error),
		configErr: make(map[int]error),
	}
}

// SetPresent controls whether the controller reports ready at init.
func (s *Sim) SetPresent(ok bool) { s.mu.Lock(); s.absent = !ok; s.mu.Unlock() }

// SetLevel drives the physical level of pin.
func (s *Sim) SetLevel(pin int, high bool) { s.mu.Lock(); s.level[pin] = high; s.mu.Unlock() }

// FailReads makes reads of pin return err; nil clears it.
func (s *Sim) FailReads(pin int, err error) { s.mu.Lock(); s.readErr[pin] = err; s.mu.Unlock() }

// RejectConfigure makes configuration of pin return err; nil clears it.
func (s *Sim) RejectConfigure(pin int, err error) { s.mu.Lock(); s.configErr[pin] = err; s.mu.Unlock() }

// Mode returns the flags pin was last configured with.
func (s *Sim) Mode(pin int) (gpio.Flags, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mode[pin]
	return m, ok
}

// Reads counts PinGetRaw calls that reached the hardware.
func (s *Sim) Reads() int { s.mu.RLock(); defer s.mu.RUnlock(); return s.reads }

// Config is the per-instance configuration.
type Config struct {
	Sim *Sim
}

// Device is the typed handle of a fake controller.
type Device = device.Instance[Config, gpio.Port]

type api struct{}

var portAPI gpio.Port = api{}

func simOf(op string, dev device.Device) (*Sim, error) {
	d, ok := dev.(*Device)
	if !ok || d.Config().Sim == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "not a fake gpio controller"}
	}
	return d.Config().Sim, nil
}

func (api) PinConfigure(_ context.Context, dev device.Device, pin int, flags gpio.Flags) error {
	s, err := simOf("fakeport.configure", dev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := gpio.CheckPin("fakeport.configure", pin, s.lines); err != nil {
		return err
	}
	if err := s.configErr[pin]; err != nil {
		return err
	}
	s.mode[pin] = flags
	return nil
}

func (api) PinGetRaw(_ context.Context, dev device.Device, pin int) (bool, error) {
	s, err := simOf("fakeport.get", dev)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := gpio.CheckPin("fakeport.get", pin, s.lines); err != nil {
		return false, err
	}
	if err := s.readErr[pin]; err != nil {
		return false, err
	}
	s.reads++
	if lvl, ok := s.level[pin]; ok {
		return lvl, nil
	}
	// Undriven inputs float to their pull.
	return s.mode[pin].Has(gpio.PullUp), nil
}

func initPort(_ context.Context, dev *Device) error {
	s := dev.Config().Sim
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.absent {
		return &errcode.E{C: errcode.HardwareNotReady, Op: "fakeport.init", Msg: dev.Name()}
	}
	return nil
}

// Define registers a fake controller backed by sim.
func Define(r *device.Registry, name string, sim *Sim, prio int) (*Device, error) {
	return device.Define(r, device.Spec[Config, gpio.Port]{
		Name:       name,
		Compatible: Compatible,
		Config:     Config{Sim: sim},
		API:        portAPI,
		Init:       initPort,
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
			_, err := Define(r, n.Name, NewSim(n.Lines), device.PriorityFor(n, DefaultPriority))
			return err
		},
	})
}

// SimOf returns the simulator behind a registered fake controller.
func SimOf(r *device.Registry, name string) (*Sim, bool) {
	d, ok := device.LookupAs[Config, gpio.Port](r, name)
	if !ok {
		return nil, false
	}
	return d.Config().Sim, true
}
