// Package device is the process-wide device registry.
//
// Every hardware instance is an Instance[C, A]: an immutable per-instance
// configuration C, a driver API A shared by all instances of the same driver
// kind, and an init function. Instances are defined before boot, initialized
// exactly once by InitAll in (level, priority, definition) order, and end in
// StateReady or StateFailed. The typed *Instance is the device handle; drivers
// read their configuration through it without any casting.
package device

import (
	"context"
	"sync/atomic"
)

// State is the lifecycle state of one device.
type State uint32

const (
	StateUninit State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Level groups devices into boot phases; all devices of a lower level are
// initialized before any device of a higher one.
type Level uint8

const (
	PreKernel1 Level = iota
	PreKernel2
	PostKernel
	Application
)

func (l Level) String() string {
	switch l {
	case PreKernel1:
		return "pre_kernel_1"
	case PreKernel2:
		return "pre_kernel_2"
	case PostKernel:
		return "post_kernel"
	case Application:
		return "application"
	}
	return "unknown"
}

// Device is the type-erased view the registry keeps of an Instance.
type Device interface {
	Name() string
	Compatible() string
	Level() Level
	Priority() int
	State() State
	// Err is the init failure for a StateFailed device, nil otherwise.
	Err() error
	IsReady() bool
	// Capability returns the driver API as an untyped value so capability
	// packages (gpio, button) can check what a device offers.
	Capability() any

	seq() int
	initialize(ctx context.Context) error
	fail(err error)
}

// InitFunc performs one-time hardware setup for dev.
type InitFunc[C, A any] func(ctx context.Context, dev *Instance[C, A]) error

// Spec describes a device to Define.
type Spec[C, A any] struct {
	Name       string
	Compatible string
	Config     C
	API        A
	Init       InitFunc[C, A]
	Level      Level
	Priority   int
	// Data is the instance's mutable runtime state, owned by the driver.
	// It may be nil.
	Data any
}

// Instance is a device record and its typed handle.
type Instance[C, A any] struct {
	name   string
	compat string
	cfg    C
	api    A
	init   InitFunc[C, A]
	level  Level
	prio   int
	order  int
	data   any

	state atomic.Uint32
	err   error // written once before state leaves StateUninit
}

func (d *Instance[C, A]) Name() string       { return d.name }
func (d *Instance[C, A]) Compatible() string { return d.compat }
func (d *Instance[C, A]) Level() Level       { return d.level }
func (d *Instance[C, A]) Priority() int      { return d.prio }
func (d *Instance[C, A]) State() State       { return State(d.state.Load()) }
func (d *Instance[C, A]) IsReady() bool      { return d.State() == StateReady }
func (d *Instance[C, A]) Capability() any    { return d.api }

// Config returns a copy of the instance configuration.
func (d *Instance[C, A]) Config() C { return d.cfg }

// API returns the driver API shared by every instance of this kind.
func (d *Instance[C, A]) API() A { return d.api }

// Data returns the driver's runtime state slot.
func (d *Instance[C, A]) Data() any { return d.data }

func (d *Instance[C, A]) Err() error {
	if d.State() == StateUninit {
		return nil
	}
	return d.err
}

func (d *Instance[C, A]) seq() int { return d.order }

func (d *Instance[C, A]) initialize(ctx context.Context) error {
	if err := d.init(ctx, d); err != nil {
		d.fail(err)
		return err
	}
	d.state.Store(uint32(StateReady))
	return nil
}

func (d *Instance[C, A]) fail(err error) {
	d.err = err
	d.state.Store(uint32(StateFailed))
}

// IsReady reports whether dev is non-nil and initialized successfully.
func IsReady(dev Device) bool { return dev != nil && dev.IsReady() }
