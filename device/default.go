package device

import "context"

// Default is the process-wide registry used by drivers that register from
// package init and by the boot sequence in cmd/.
var Default = NewRegistry()

// InitAll initializes the Default registry.
func InitAll(ctx context.Context) error { return Default.InitAll(ctx) }

// Lookup resolves a name in the Default registry.
func Lookup(name string) (Device, bool) { return Default.Lookup(name) }
