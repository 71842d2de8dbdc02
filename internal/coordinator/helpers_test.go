package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	eng, err := engine.New(engine.WithSeed(3), engine.WithLogger(quietLogger()))
	require.NoError(t, err)
	opts = append([]Option{
		WithEngine(eng),
		WithLogger(quietLogger()),
		WithHandleGenerator(NewSequentialGenerator()),
	}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

// waitStopped returns the result of Wait, failing the test if the run loop
// does not finish within two seconds.
func waitStopped(t *testing.T, c *Coordinator) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop")
		return nil
	}
}

func spec(typ, p string) ir.PortSpec {
	return ir.PortSpec{Type: typ, Port: p}
}

// single returns a one-state type whose only enforceable port loops on it.
func single(typ, port string) *ir.Behaviour {
	return &ir.Behaviour{
		Type:        typ,
		States:      []string{"s"},
		Initial:     "s",
		Ports:       []ir.PortDecl{{ID: port, Kind: ir.PortEnforceable}},
		Transitions: []ir.TransitionDecl{{Port: port, From: "s", To: "s"}},
	}
}

func abcGlue() *ir.Glue {
	return &ir.Glue{
		Requires: []ir.Require{
			{Effect: spec("A", "a"), Causes: [][]ir.PortSpec{{spec("C", "c")}}},
			{Effect: spec("B", "b"), Causes: [][]ir.PortSpec{{spec("C", "c")}}},
		},
		Accepts: []ir.Accept{
			{Effect: spec("A", "a"), Causes: []ir.PortSpec{spec("B", "b"), spec("C", "c")}},
			{Effect: spec("B", "b"), Causes: []ir.PortSpec{spec("A", "a"), spec("C", "c")}},
			{Effect: spec("C", "c"), Causes: []ir.PortSpec{spec("A", "a"), spec("B", "b")}},
		},
	}
}

func producer() *ir.Behaviour {
	b := single("Producer", "put")
	b.DataOut = []ir.DataDecl{{Name: "value", Type: "int"}}
	return b
}

// consumer reads value for its guard (value >= 3) and its transition.
func consumer() *ir.Behaviour {
	b := single("Consumer", "get")
	b.Transitions[0].Guard = "big"
	b.DataIn = []ir.DataDecl{{Name: "value", Type: "int"}}
	b.GuardData = map[string][]string{"get": {"value"}}
	b.TransitionData = map[string][]string{"get": {"value"}}
	b.Guards = map[string]ir.GuardDecl{"big": {Data: "value", Op: "ge", Value: 3}}
	return b
}

func valueWire() *ir.Glue {
	return &ir.Glue{Wires: []ir.Wire{{
		From: ir.DataSpec{Type: "Producer", Data: "value"},
		To:   ir.DataSpec{Type: "Consumer", Data: "value"},
	}}}
}

// fake is a component that follows its behaviour and, when auto is set,
// informs again after every Execute.
type fake struct {
	c    *Coordinator
	b    *ir.Behaviour
	auto bool

	mu       sync.Mutex
	id       ir.ComponentID
	state    string
	fired    []string
	received []ir.Object
	exports  map[string]ir.Value
	block    bool
}

func newFake(c *Coordinator, b *ir.Behaviour, auto bool) *fake {
	return &fake{c: c, b: b, auto: auto, state: b.Initial, exports: make(map[string]ir.Value)}
}

func (f *fake) Execute(ctx context.Context, port string, data ir.Object) error {
	f.mu.Lock()
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	f.fired = append(f.fired, port)
	if port != ir.NoPort {
		t, ok := f.b.TransitionFor(f.state, port)
		if !ok {
			f.mu.Unlock()
			return fmt.Errorf("port %s is not enabled in %s", port, f.state)
		}
		f.state = t.To
		if data != nil {
			f.received = append(f.received, data)
		}
	}
	id, state := f.id, f.state
	f.mu.Unlock()

	if !f.auto {
		return nil
	}
	err := f.c.Inform(ctx, id, state, nil)
	if ProtocolErrorCodeOf(err) == ErrCodeStopped {
		return nil
	}
	return err
}

func (f *fake) GetData(_ context.Context, name string) (ir.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.exports[name]
	if !ok {
		return nil, fmt.Errorf("no data %q", name)
	}
	return v, nil
}

func (f *fake) export(name string, v ir.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports[name] = v
}

func (f *fake) ID() ir.ComponentID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

func (f *fake) Fired() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.fired)
}

func (f *fake) Received() []ir.Object {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.received)
}

// join registers a fake and sends its first inform.
func join(t *testing.T, c *Coordinator, b *ir.Behaviour, auto bool) *fake {
	t.Helper()
	f := newFake(c, b, auto)
	id, err := c.Register(context.Background(), f, b)
	require.NoError(t, err)
	f.mu.Lock()
	f.id = id
	f.mu.Unlock()
	require.NoError(t, c.Inform(context.Background(), id, b.Initial, nil))
	return f
}

// checker evaluates guard rows itself: only rows whose value equals want pass.
type checker struct {
	*fake
	want  int64
	calls int
}

func (c *checker) CheckEnabledness(_ context.Context, _ string, rows []ir.Object) ([]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	out := make([]bool, len(rows))
	for i, row := range rows {
		n, _ := ir.AsInt(row["value"])
		out[i] = n == c.want
	}
	return out, nil
}
