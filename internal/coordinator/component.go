package coordinator

import (
	"context"
	"slices"

	"github.com/roach88/interlock/internal/ir"
)

// Component is the callback side of a registered component.
type Component interface {
	// Execute fires port, or does nothing when port is ir.NoPort. data
	// carries the incoming data the port's transition reads.
	Execute(ctx context.Context, port string, data ir.Object) error
}

// DataProvider is implemented by components that export data.
type DataProvider interface {
	GetData(ctx context.Context, name string) (ir.Value, error)
}

// GuardChecker is implemented by components that evaluate their own data
// guards. rows holds one object per combination of producers; the result
// says, row by row, whether port may fire with that data.
type GuardChecker interface {
	CheckEnabledness(ctx context.Context, port string, rows []ir.Object) ([]bool, error)
}

// Report is what a component told the coordinator this cycle. Stages may
// narrow Disabled before the report reaches the engine.
type Report struct {
	State    string
	Disabled []string
}

// Disable adds port to the disabled set.
func (r *Report) Disable(port string) {
	if !slices.Contains(r.Disabled, port) {
		r.Disabled = append(r.Disabled, port)
	}
}

// IsDisabled reports whether port is disabled.
func (r *Report) IsDisabled(port string) bool {
	return slices.Contains(r.Disabled, port)
}

// Enabled returns the enforceable ports of b enabled in the reported state
// and not disabled.
func (r *Report) Enabled(b *ir.Behaviour) []string {
	var out []string
	for _, port := range b.StatePorts()[r.State] {
		if !r.IsDisabled(port) {
			out = append(out, port)
		}
	}
	return out
}

func (r Report) clone() Report {
	return Report{State: r.State, Disabled: slices.Clone(r.Disabled)}
}
