package bdd

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/dalzilio/rudd"
)

// ErrTooManyCubes is returned by Cubes when enumeration exceeds its limit.
var ErrTooManyCubes = errors.New("too many cubes")

// Formula is a boolean function owned by a Manager. The zero Formula is
// invalid.
type Formula struct {
	n rudd.Node
}

// Valid reports whether the formula holds a node.
func (f Formula) Valid() bool {
	return f.n != nil
}

// ops is the subset of rudd's Set used here. Both rudd.Set and *rudd.Set
// satisfy it.
type ops interface {
	Error() string
	SetVarnum(num int) error
	Varnum() int
	True() rudd.Node
	False() rudd.Node
	Ithvar(i int) rudd.Node
	NIthvar(i int) rudd.Node
	Not(n rudd.Node) rudd.Node
	And(n ...rudd.Node) rudd.Node
	Or(n ...rudd.Node) rudd.Node
	Imp(n1, n2 rudd.Node) rudd.Node
	Satcount(n rudd.Node) *big.Int
	Allsat(f func([]int) error, n rudd.Node) error
	Stats() string
}

// Option configures a Manager.
type Option func(*config)

type config struct {
	nodeSize  int
	cacheSize int
}

// WithNodeSize sets the initial size of the node table.
func WithNodeSize(n int) Option {
	return func(c *config) { c.nodeSize = n }
}

// WithCacheSize sets the initial size of the operation caches.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// Manager serialises access to one decision diagram.
type Manager struct {
	mu   sync.Mutex
	set  ops
	vars int
	err  error

	slots   map[Ref]rudd.Node
	nextRef Ref
}

// New creates a manager with room for at least varnum variables.
func New(varnum int, opts ...Option) (*Manager, error) {
	cfg := config{nodeSize: 10000, cacheSize: 5000}
	for _, opt := range opts {
		opt(&cfg)
	}

	// rudd rejects empty variable sets; the extra variable stays unallocated
	// and shows up as a don't-care in every cube.
	initial := max(varnum, 1)
	set, err := rudd.New(initial, rudd.Nodesize(cfg.nodeSize), rudd.Cachesize(cfg.cacheSize))
	if err != nil {
		return nil, fmt.Errorf("create decision diagram: %w", err)
	}

	return &Manager{
		set:   set,
		vars:  initial,
		slots: make(map[Ref]rudd.Node),
	}, nil
}

// Varnum returns the number of variables the manager currently holds.
func (m *Manager) Varnum() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vars
}

// Grow makes room for at least n variables. The variable count never shrinks.
func (m *Manager) Grow(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= m.vars {
		return nil
	}
	if err := m.set.SetVarnum(n); err != nil {
		return fmt.Errorf("grow variable space to %d: %w", n, err)
	}
	m.vars = n
	return nil
}

// Err returns the first error recorded by an operation, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Stats returns the underlying diagram statistics.
func (m *Manager) Stats() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Stats()
}

// wrap records the diagram error when an operation yields no node.
func (m *Manager) wrap(n rudd.Node, op string) Formula {
	if n == nil && m.err == nil {
		msg := m.set.Error()
		if msg == "" {
			msg = "nil node"
		}
		m.err = fmt.Errorf("bdd %s: %s", op, msg)
	}
	return Formula{n: n}
}

// True returns the constant true.
func (m *Manager) True() Formula {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Formula{n: m.set.True()}
}

// False returns the constant false.
func (m *Manager) False() Formula {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Formula{n: m.set.False()}
}

// Var returns the positive literal of variable i.
func (m *Manager) Var(i int) Formula {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.set.Ithvar(i), "ithvar")
}

// NVar returns the negative literal of variable i.
func (m *Manager) NVar(i int) Formula {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.set.NIthvar(i), "nithvar")
}

func nodes(fs []Formula) []rudd.Node {
	out := make([]rudd.Node, len(fs))
	for i, f := range fs {
		out[i] = f.n
	}
	return out
}

// And returns the conjunction of fs. The empty conjunction is true.
func (m *Manager) And(fs ...Formula) Formula {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(fs) == 0 {
		return Formula{n: m.set.True()}
	}
	return m.wrap(m.set.And(nodes(fs)...), "and")
}

// Or returns the disjunction of fs. The empty disjunction is false.
func (m *Manager) Or(fs ...Formula) Formula {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(fs) == 0 {
		return Formula{n: m.set.False()}
	}
	return m.wrap(m.set.Or(nodes(fs)...), "or")
}

// Not returns the negation of f.
func (m *Manager) Not(f Formula) Formula {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.set.Not(f.n), "not")
}

// Imp returns f → g.
func (m *Manager) Imp(f, g Formula) Formula {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.set.Imp(f.n, g.n), "imp")
}

// IsTrue reports whether f is the constant true.
func (m *Manager) IsTrue(f Formula) bool {
	return f.n != nil && *f.n == 1
}

// IsFalse reports whether f is the constant false.
func (m *Manager) IsFalse(f Formula) bool {
	return f.n != nil && *f.n == 0
}

// Same reports whether two formulas are the same function. Nodes are
// hash-consed, so this is a pointer-target comparison.
func (m *Manager) Same(f, g Formula) bool {
	return f.n != nil && g.n != nil && *f.n == *g.n
}

// Satcount returns the number of satisfying assignments over all variables.
func (m *Manager) Satcount(f Formula) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Satcount(f.n)
}

// Cubes enumerates the satisfying ternary assignments of f. A limit of zero
// means no limit; otherwise enumeration stops with ErrTooManyCubes once more
// than limit cubes are found.
func (m *Manager) Cubes(f Formula, limit int) ([]Cube, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("enumerate cubes: invalid formula")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Allsat may not hand the callback's error back, so the overflow is
	// tracked here and enumeration is reported as failed regardless.
	var cubes []Cube
	overflow := false
	err := m.set.Allsat(func(assignment []int) error {
		if overflow {
			return ErrTooManyCubes
		}
		if limit > 0 && len(cubes) >= limit {
			overflow = true
			return ErrTooManyCubes
		}
		c := make(Cube, len(assignment))
		for i, v := range assignment {
			c[i] = Value(v)
		}
		cubes = append(cubes, c)
		return nil
	}, f.n)
	if overflow {
		return nil, fmt.Errorf("enumerate cubes: %w (limit %d)", ErrTooManyCubes, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("enumerate cubes: %w", err)
	}
	return cubes, nil
}
