package device

import (
	"fmt"
	"sort"
	"sync"

	"devicecore-go/devicetree"
	"devicecore-go/errcode"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// BindFunc defines the device for one enabled devicetree node. inst is the
// node's instance number within its compatible.
type BindFunc func(r *Registry, inst int, n devicetree.Node) error

// Driver ties a compatible string to the code that instantiates it. Level and
// Priority are the defaults given to instances; they also order binding so
// that providers (GPIO controllers) exist before their consumers look them up.
type Driver struct {
	Compatible string
	Level      Level
	Priority   int
	Bind       BindFunc
}

var (
	drvMu   sync.RWMutex
	drivers = map[string]Driver{}
)

// RegisterDriver makes a driver available to Populate. Drivers call it from
// package init; a duplicate compatible panics.
func RegisterDriver(d Driver) {
	if d.Compatible == "" || d.Bind == nil {
		panic("device: driver needs compatible and bind")
	}
	drvMu.Lock()
	defer drvMu.Unlock()
	if _, exists := drivers[d.Compatible]; exists {
		panic(fmt.Sprintf("duplicate device driver: %s", d.Compatible))
	}
	drivers[d.Compatible] = d
}

// LookupDriver returns the driver registered for compat.
func LookupDriver(compat string) (Driver, bool) {
	drvMu.RLock()
	defer drvMu.RUnlock()
	d, ok := drivers[compat]
	return d, ok
}

// Populate defines one device per enabled node of t whose compatible has a
// registered driver. Nodes without a driver are skipped with a warning.
//
// Drivers bind in (level, priority) order. A bind that fails with
// errcode.UnknownDevice or errcode.UnknownBus is deferred and retried once
// other nodes have bound, so a consumer finds its provider whatever the
// driver order.
// A node that fails to bind does not stop the others; all bind errors are
// combined.
func Populate(r *Registry, t *devicetree.Tree) error {
	log := r.logger()

	var drvs []Driver
	for _, compat := range t.Compatibles() {
		d, ok := LookupDriver(compat)
		if !ok {
			log.Warnw("no driver for compatible", "compatible", compat)
			continue
		}
		drvs = append(drvs, d)
	}
	sort.SliceStable(drvs, func(i, j int) bool {
		if drvs[i].Level != drvs[j].Level {
			return drvs[i].Level < drvs[j].Level
		}
		return drvs[i].Priority < drvs[j].Priority
	})

	var queue []binding
	for _, d := range drvs {
		err := t.ForEachStatusOkay(d.Compatible, func(inst int, n devicetree.Node) error {
			queue = append(queue, binding{drv: d, inst: inst, node: n})
			return nil
		})
		if err != nil {
			return err
		}
	}

	var errs error
	fail := func(b binding) {
		log.Errorw("device bind failed", "device", b.node.Name, "compatible", b.drv.Compatible, "err", b.err)
		errs = multierr.Append(errs, errors.Wrapf(b.err, "bind %s", b.node.Name))
	}
	for len(queue) > 0 {
		var deferred []binding
		for _, b := range queue {
			b.err = b.drv.Bind(r, b.inst, b.node)
			switch {
			case b.err == nil:
			case errcode.Of(b.err) == errcode.UnknownDevice, errcode.Of(b.err) == errcode.UnknownBus:
				deferred = append(deferred, b)
			default:
				fail(b)
			}
		}
		if len(deferred) == len(queue) {
			// Nothing resolved this round; the rest never will.
			for _, b := range deferred {
				fail(b)
			}
			break
		}
		queue = deferred
	}
	return errs
}

type binding struct {
	drv  Driver
	inst int
	node devicetree.Node
	err  error
}

// PriorityFor returns the node's init_priority override or def.
func PriorityFor(n devicetree.Node, def int) int {
	if n.InitPriority != nil {
		return *n.InitPriority
	}
	return def
}
