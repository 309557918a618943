// Package gpio is the GPIO capability: the Port API that controller drivers
// implement and the Spec a consumer driver holds for one pin.
package gpio

import (
	"context"
	"strconv"

	"devicecore-go/device"
	"devicecore-go/devicetree"
	"devicecore-go/errcode"
)

// Flags select pin mode and electrical options.
type Flags uint8

const (
	Input Flags = 1 << iota
	Output
	PullUp
	PullDown
	ActiveLow
)

func (f Flags) Has(x Flags) bool { return f&x != 0 }

// FromDT converts devicetree pin flags.
func FromDT(f devicetree.Flags) Flags {
	var out Flags
	if f.Has(devicetree.ActiveLow) {
		out |= ActiveLow
	}
	if f.Has(devicetree.PullUp) {
		out |= PullUp
	}
	if f.Has(devicetree.PullDown) {
		out |= PullDown
	}
	return out
}

// Port is the API of a GPIO controller driver. dev is the controller's own
// handle; implementations recover their typed instance from it.
//
// PinGetRaw returns the physical level, ignoring ActiveLow.
type Port interface {
	PinConfigure(ctx context.Context, dev device.Device, pin int, flags Flags) error
	PinGetRaw(ctx context.Context, dev device.Device, pin int) (bool, error)
}

// Spec is one pin of one controller plus its devicetree flags.
type Spec struct {
	Port  device.Device
	Pin   int
	Flags Flags
}

func (s Spec) String() string {
	name := "<nil>"
	if s.Port != nil {
		name = s.Port.Name()
	}
	return name + " pin " + strconv.Itoa(s.Pin)
}

func (s Spec) api() (Port, bool) {
	if s.Port == nil {
		return nil, false
	}
	p, ok := s.Port.Capability().(Port)
	return p, ok
}

// IsReady reports whether the controller exists, offers the Port API and
// initialized successfully.
func (s Spec) IsReady() bool {
	_, ok := s.api()
	return ok && device.IsReady(s.Port)
}

// Configure applies extra (e.g. Input) together with the spec's own flags.
func (s Spec) Configure(ctx context.Context, extra Flags) error {
	p, ok := s.api()
	if !ok {
		return &errcode.E{C: errcode.Unsupported, Op: "gpio.configure", Msg: s.String()}
	}
	return p.PinConfigure(ctx, s.Port, s.Pin, s.Flags|extra)
}

// Get returns the logical level, 0 or 1, honouring ActiveLow.
func (s Spec) Get(ctx context.Context) (uint8, error) {
	p, ok := s.api()
	if !ok {
		return 0, &errcode.E{C: errcode.Unsupported, Op: "gpio.get", Msg: s.String()}
	}
	raw, err := p.PinGetRaw(ctx, s.Port, s.Pin)
	if err != nil {
		return 0, err
	}
	if raw != s.Flags.Has(ActiveLow) {
		return 1, nil
	}
	return 0, nil
}

// ResolveSpec binds a devicetree pin reference to a registered controller.
func ResolveSpec(r *device.Registry, ref devicetree.PinRef) (Spec, error) {
	dev, ok := r.Lookup(ref.Controller)
	if !ok {
		return Spec{}, &errcode.E{C: errcode.UnknownDevice, Op: "gpio.resolve", Msg: ref.Controller}
	}
	if _, ok := dev.Capability().(Port); !ok {
		return Spec{}, &errcode.E{C: errcode.Unsupported, Op: "gpio.resolve", Msg: ref.Controller + " is not a gpio controller"}
	}
	if ref.Pin < 0 {
		return Spec{}, &errcode.E{C: errcode.UnknownPin, Op: "gpio.resolve", Msg: strconv.Itoa(ref.Pin)}
	}
	return Spec{Port: dev, Pin: ref.Pin, Flags: FromDT(ref.Flags)}, nil
}

// CheckPin returns errcode.UnknownPin unless 0 <= pin < lines.
func CheckPin(op string, pin, lines int) error {
	if pin < 0 || pin >= lines {
		return &errcode.E{C: errcode.UnknownPin, Op: op, Msg: strconv.Itoa(pin)}
	}
	return nil
}
