// Package devicetree holds the board description: one Node per declared
// hardware instance, with the pin and bus references its driver needs.
//
// A Tree is immutable once loaded. Drivers never parse it themselves; the
// device package walks it with ForEachStatusOkay and hands each node to the
// driver bound to its compatible string.
package devicetree

import (
	"devicecore-go/errcode"
	"devicecore-go/x/strx"
)

const (
	StatusOkay     = "okay"
	StatusDisabled = "disabled"
)

// Flags mirror the devicetree GPIO flag cells.
type Flags uint8

const (
	ActiveLow Flags = 1 << iota
	PullUp
	PullDown
)

func (f Flags) Has(x Flags) bool { return f&x != 0 }

// PinRef points at one line of a GPIO controller node.
type PinRef struct {
	Controller string // node name of the GPIO controller, e.g. "gpio0"
	Pin        int
	Flags      Flags
}

// Node is one declared hardware instance.
type Node struct {
	Name       string
	Compatible string
	Status     string
	Label      string

	GPIOs []PinRef // phandle-array "gpios"

	Bus string // parent bus id for bus devices, e.g. "i2c0"
	Reg uint16 // address on Bus

	Lines int    // line count for GPIO controllers; 0 = driver default
	Path  string // host device node, e.g. "/dev/gpiochip0"

	// InitPriority overrides the driver's default priority when non-nil.
	InitPriority *int
}

// Okay reports whether the node should be instantiated.
func (n Node) Okay() bool { return strx.Coalesce(n.Status, StatusOkay) == StatusOkay }

// Tree is an ordered set of nodes.
type Tree struct {
	nodes []Node
	index map[string]int
}

// New validates nodes and builds a Tree. Names must be unique and every node
// needs a compatible string.
func New(nodes []Node) (*Tree, error) {
	t := &Tree{nodes: make([]Node, 0, len(nodes)), index: make(map[string]int, len(nodes))}
	for _, n := range nodes {
		if n.Name == "" || n.Compatible == "" {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "devicetree", Msg: "node needs name and compatible"}
		}
		switch n.Status {
		case "":
			n.Status = StatusOkay
		case StatusOkay, StatusDisabled:
		default:
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "devicetree", Msg: n.Name + ": bad status " + n.Status}
		}
		if _, dup := t.index[n.Name]; dup {
			return nil, &errcode.E{C: errcode.DuplicateDevice, Op: "devicetree", Msg: n.Name}
		}
		t.index[n.Name] = len(t.nodes)
		n.GPIOs = append([]PinRef(nil), n.GPIOs...)
		t.nodes = append(t.nodes, n)
	}
	return t, nil
}

// Nodes returns a copy of all nodes in declaration order.
func (t *Tree) Nodes() []Node {
	out := make([]Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Node looks a node up by name.
func (t *Tree) Node(name string) (Node, bool) {
	i, ok := t.index[name]
	if !ok {
		return Node{}, false
	}
	return t.nodes[i], true
}

// Compatibles lists distinct compatible strings in first-seen order.
func (t *Tree) Compatibles() []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range t.nodes {
		if !seen[n.Compatible] {
			seen[n.Compatible] = true
			out = append(out, n.Compatible)
		}
	}
	return out
}

// ForEachStatusOkay calls fn for every enabled node with the given compatible.
// Instance numbers count from zero per compatible, in declaration order, and
// skip disabled nodes. The first error stops the walk.
func (t *Tree) ForEachStatusOkay(compat string, fn func(inst int, n Node) error) error {
	inst := 0
	for _, n := range t.nodes {
		if n.Compatible != compat || !n.Okay() {
			continue
		}
		if err := fn(inst, n); err != nil {
			return err
		}
		inst++
	}
	return nil
}
