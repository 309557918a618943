package devicetree

import (
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
)

// Board files look like:
//
//	node "gpio0" {
//	  compatible = "fake,gpio"
//	}
//
//	node "button0" {
//	  compatible = "custom_button"
//	  label      = "User button"
//	  gpio {
//	    controller = "gpio0"
//	    pin        = 3
//	    flags      = ["active_low", "pull_up"]
//	  }
//	}

type hclBoard struct {
	Nodes []*hclNode `hcl:"node,block"`
}

type hclNode struct {
	Name         string     `hcl:"name,label"`
	Compatible   string     `hcl:"compatible"`
	Status       *string    `hcl:"status,optional"`
	Label        *string    `hcl:"label,optional"`
	Bus          *string    `hcl:"bus,optional"`
	Reg          *int       `hcl:"reg,optional"`
	Lines        *int       `hcl:"lines,optional"`
	Path         *string    `hcl:"path,optional"`
	InitPriority *int       `hcl:"init_priority,optional"`
	GPIOs        []*hclGPIO `hcl:"gpio,block"`
}

type hclGPIO struct {
	Controller string   `hcl:"controller"`
	Pin        int      `hcl:"pin"`
	Flags      []string `hcl:"flags,optional"`
}

var flagNames = map[string]Flags{
	"active_low": ActiveLow,
	"pull_up":    PullUp,
	"pull_down":  PullDown,
}

// Load reads and parses an HCL board file.
func Load(path string) (*Tree, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading board file %s", path)
	}
	return Parse(src, path)
}

// Parse decodes HCL board source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*Tree, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "parsing board file %s", filename)
	}
	var board hclBoard
	if diags := gohcl.DecodeBody(f.Body, nil, &board); diags.HasErrors() {
		return nil, errors.Wrapf(diags, "decoding board file %s", filename)
	}

	nodes := make([]Node, 0, len(board.Nodes))
	for _, hn := range board.Nodes {
		n, err := hn.node()
		if err != nil {
			return nil, errors.Wrapf(err, "board file %s", filename)
		}
		nodes = append(nodes, n)
	}
	return New(nodes)
}

func (hn *hclNode) node() (Node, error) {
	n := Node{
		Name:         hn.Name,
		Compatible:   hn.Compatible,
		Status:       deref(hn.Status),
		Label:        deref(hn.Label),
		Bus:          deref(hn.Bus),
		Path:         deref(hn.Path),
		InitPriority: hn.InitPriority,
	}
	if hn.Reg != nil {
		if *hn.Reg < 0 || *hn.Reg > 0x3ff {
			return Node{}, errors.Errorf("node %q: reg %d out of range", hn.Name, *hn.Reg)
		}
		n.Reg = uint16(*hn.Reg)
	}
	if hn.Lines != nil {
		n.Lines = *hn.Lines
	}
	for _, g := range hn.GPIOs {
		ref := PinRef{Controller: g.Controller, Pin: g.Pin}
		for _, name := range g.Flags {
			fl, ok := flagNames[name]
			if !ok {
				return Node{}, errors.Errorf("node %q: unknown gpio flag %q", hn.Name, name)
			}
			ref.Flags |= fl
		}
		n.GPIOs = append(n.GPIOs, ref)
	}
	return n, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
