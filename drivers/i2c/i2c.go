// Package i2c is the table of I²C buses available to bus-attached drivers.
// The platform bootstrap registers its buses before devices are populated.
package i2c

import (
	"sync"

	"devicecore-go/errcode"

	"tinygo.org/x/drivers"
)

// Factory resolves a bus id ("i2c0") to a bus.
type Factory interface {
	ByID(id string) (drivers.I2C, bool)
}

// Table is a Factory backed by a map.
type Table struct {
	mu    sync.RWMutex
	buses map[string]drivers.I2C
}

func NewTable() *Table { return &Table{buses: make(map[string]drivers.I2C)} }

// Add registers bus under id, replacing any previous entry.
func (t *Table) Add(id string, bus drivers.I2C) {
	t.mu.Lock()
	t.buses[id] = bus
	t.mu.Unlock()
}

func (t *Table) ByID(id string) (drivers.I2C, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.buses[id]
	return b, ok && b != nil
}

// Buses is the process-wide bus table.
var Buses = NewTable()

// Resolve looks id up in f, returning errcode.UnknownBus when absent.
func Resolve(f Factory, id string) (drivers.I2C, error) {
	b, ok := f.ByID(id)
	if !ok {
		return nil, &errcode.E{C: errcode.UnknownBus, Op: "i2c.resolve", Msg: id}
	}
	return b, nil
}
