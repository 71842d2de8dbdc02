// Package automaton provides a table-driven component: it follows the
// transitions of its behaviour, keeps local variables, exports them as
// data and evaluates the declared guards.
package automaton

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/interlock/internal/coordinator"
	"github.com/roach88/interlock/internal/ir"
)

// Host is the coordinator side an automaton attaches to.
type Host interface {
	Register(ctx context.Context, comp coordinator.Component, b *ir.Behaviour) (ir.ComponentID, error)
	Inform(ctx context.Context, id ir.ComponentID, state string, disabled []string) error
}

// Increment adds Delta to an integer variable when Port fires.
type Increment struct {
	Port     string
	Variable string
	Delta    int64
}

// Automaton is a component driven by its behaviour table.
type Automaton struct {
	b          *ir.Behaviour
	increments []Increment
	logger     *slog.Logger

	mu      sync.Mutex
	host    Host
	id      ir.ComponentID
	state   string
	vars    ir.Object
	history []string
}

// Option configures an Automaton.
type Option func(*Automaton)

// WithVariables sets the initial local variables.
func WithVariables(vars ir.Object) Option {
	return func(a *Automaton) { maps.Copy(a.vars, vars) }
}

// WithIncrements adds variable updates applied when ports fire.
func WithIncrements(incs ...Increment) Option {
	return func(a *Automaton) { a.increments = append(a.increments, incs...) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Automaton) { a.logger = l }
}

// New creates an automaton in the initial state of b.
func New(b *ir.Behaviour, opts ...Option) *Automaton {
	a := &Automaton{
		b:      b,
		logger: slog.Default(),
		state:  b.Initial,
		vars:   make(ir.Object),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Attach registers the automaton with host and sends its first inform.
func (a *Automaton) Attach(ctx context.Context, host Host) (ir.ComponentID, error) {
	id, err := host.Register(ctx, a, a.b)
	if err != nil {
		return "", fmt.Errorf("attach %s: %w", a.b.Type, err)
	}

	a.mu.Lock()
	a.host = host
	a.id = id
	state := a.state
	a.mu.Unlock()

	if err := host.Inform(ctx, id, state, nil); err != nil {
		return id, fmt.Errorf("first inform of %s: %w", id, err)
	}
	return id, nil
}

// Execute implements coordinator.Component. Incoming data is stored into
// the variables of the same name before increments apply.
func (a *Automaton) Execute(ctx context.Context, port string, data ir.Object) error {
	a.mu.Lock()
	if port != ir.NoPort {
		t, ok := a.b.TransitionFor(a.state, port)
		if !ok {
			a.mu.Unlock()
			return fmt.Errorf("%s: port %q is not enabled in state %q", a.id, port, a.state)
		}
		maps.Copy(a.vars, data)
		for _, inc := range a.increments {
			if inc.Port != port {
				continue
			}
			n, _ := ir.AsInt(a.vars[inc.Variable])
			a.vars[inc.Variable] = ir.Int(n + inc.Delta)
		}
		a.logger.Debug("transition",
			"component", a.id,
			"port", port,
			"from", a.state,
			"to", t.To)
		a.state = t.To
	}
	a.history = append(a.history, port)
	host, id, state := a.host, a.id, a.state
	a.mu.Unlock()

	if host == nil {
		return nil
	}
	err := host.Inform(ctx, id, state, nil)
	if coordinator.ProtocolErrorCodeOf(err) == coordinator.ErrCodeStopped {
		return nil
	}
	return err
}

// GetData implements coordinator.DataProvider.
func (a *Automaton) GetData(_ context.Context, name string) (ir.Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.b.DataOutDecl(name); !ok {
		return nil, fmt.Errorf("%s exports no data %q", a.b.Type, name)
	}
	v, ok := a.vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %q is not set", name)
	}
	return v, nil
}

// CheckEnabledness implements coordinator.GuardChecker with the guard
// declared on the transition leaving the current state through port.
func (a *Automaton) CheckEnabledness(_ context.Context, port string, rows []ir.Object) ([]bool, error) {
	a.mu.Lock()
	state := a.state
	a.mu.Unlock()

	out := make([]bool, len(rows))
	t, ok := a.b.TransitionFor(state, port)
	if !ok {
		return out, nil
	}
	guard, ok := a.b.Guards[t.Guard]
	if !ok {
		for i := range out {
			out[i] = true
		}
		return out, nil
	}
	for i, row := range rows {
		holds, err := guard.Holds(row[guard.Data])
		if err != nil {
			return nil, err
		}
		out[i] = holds
	}
	return out, nil
}

// ID returns the handle given at registration.
func (a *Automaton) ID() ir.ComponentID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Type returns the component type.
func (a *Automaton) Type() string {
	return a.b.Type
}

// State returns the current state.
func (a *Automaton) State() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Variable returns a local variable.
func (a *Automaton) Variable(name string) (ir.Value, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.vars[name]
	return v, ok
}

// History returns the port received in every cycle so far, NoPort for idle
// cycles.
func (a *Automaton) History() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.history)
}
