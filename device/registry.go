package device

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"devicecore-go/errcode"
	"devicecore-go/x/logx"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Registry holds device records. It is open for Define until InitAll runs,
// then sealed for the rest of the process lifetime.
type Registry struct {
	mu     sync.RWMutex
	devs   []Device // definition order, then boot order once sealed
	byName map[string]Device
	sealed bool
	next   int

	log logx.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for boot diagnostics.
func WithLogger(l logx.Logger) Option { return func(r *Registry) { r.log = l } }

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{byName: make(map[string]Device)}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) logger() logx.Logger {
	if r.log != nil {
		return r.log
	}
	return logx.L().Named("device")
}

// Define registers a device and returns its typed handle. The record is
// complete when Define returns; its init runs later, from InitAll.
func Define[C, A any](r *Registry, s Spec[C, A]) (*Instance[C, A], error) {
	const op = "device.define"
	if s.Name == "" {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "empty name"}
	}
	if isNil(s.API) || s.Init == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: s.Name + ": api and init are required"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return nil, &errcode.E{C: errcode.RegistrySealed, Op: op, Msg: s.Name}
	}
	if _, dup := r.byName[s.Name]; dup {
		return nil, &errcode.E{C: errcode.DuplicateDevice, Op: op, Msg: s.Name}
	}
	d := &Instance[C, A]{
		name:   s.Name,
		compat: s.Compatible,
		cfg:    s.Config,
		api:    s.API,
		init:   s.Init,
		level:  s.Level,
		prio:   s.Priority,
		order:  r.next,
		data:   s.Data,
	}
	r.next++
	r.devs = append(r.devs, d)
	r.byName[s.Name] = d
	return d, nil
}

// isNil reports whether v is nil, including a typed nil pointer, map, func
// or channel held in a non-interface A.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// MustDefine is Define for static device tables; it panics on error.
func MustDefine[C, A any](r *Registry, s Spec[C, A]) *Instance[C, A] {
	d, err := Define(r, s)
	if err != nil {
		panic(err)
	}
	return d
}

// InitAll runs every device's init function exactly once, ordered by level,
// then priority, then definition order. A failing device is marked
// StateFailed and the walk continues. The returned error combines all init
// failures. Calling InitAll again returns errcode.AlreadyInitialized and
// touches nothing.
//
// If ctx is cancelled mid-walk the remaining devices are marked failed with
// ctx.Err() without running their init.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.Lock()
	if r.sealed {
		r.mu.Unlock()
		return &errcode.E{C: errcode.AlreadyInitialized, Op: "device.init_all"}
	}
	r.sealed = true
	order := make([]Device, len(r.devs))
	copy(order, r.devs)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.Level() != b.Level() {
			return a.Level() < b.Level()
		}
		if a.Priority() != b.Priority() {
			return a.Priority() < b.Priority()
		}
		return a.seq() < b.seq()
	})
	r.devs = order
	r.mu.Unlock()

	log := r.logger()
	var errs error
	ready := 0
	for _, d := range order {
		if cerr := ctx.Err(); cerr != nil {
			d.fail(cerr)
			errs = multierr.Append(errs, errors.Wrap(cerr, d.Name()))
			continue
		}
		if err := initOne(ctx, d); err != nil {
			log.Errorw("device init failed", "device", d.Name(), "compatible", d.Compatible(), "err", err)
			errs = multierr.Append(errs, errors.Wrap(err, d.Name()))
			continue
		}
		ready++
		log.Debugw("device ready", "device", d.Name(), "level", d.Level(), "priority", d.Priority())
	}
	log.Infow("devices initialized", "ready", ready, "failed", len(order)-ready)
	return errs
}

func initOne(ctx context.Context, d Device) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &errcode.E{C: errcode.Error, Op: d.Name(), Msg: "init panicked: " + fmt.Sprint(p)}
			d.fail(err)
		}
	}()
	return d.initialize(ctx)
}

// Initialized reports whether InitAll has run.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup resolves a device name. Unknown names return (nil, false).
func (r *Registry) Lookup(name string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// LookupAs resolves a device name to its typed handle. It fails if the name is
// unknown or the device was defined with different config/API types.
func LookupAs[C, A any](r *Registry, name string) (*Instance[C, A], bool) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	inst, ok := d.(*Instance[C, A])
	return inst, ok
}

// Devices returns all records: definition order before InitAll, boot order after.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, len(r.devs))
	copy(out, r.devs)
	return out
}
