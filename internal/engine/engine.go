package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/interlock/internal/bdd"
	"github.com/roach88/interlock/internal/encode"
	"github.com/roach88/interlock/internal/ir"
)

// DefaultMaxCubes bounds cube enumeration per cycle.
const DefaultMaxCubes = 100000

// Report is what a component told the engine this cycle.
type Report struct {
	State    string
	Disabled []string
}

// DataSource is one producer able to serve a datum to a consumer port.
type DataSource struct {
	Producer ir.PortRef
	Data     string
}

// PortClaim is one port's demand on a shared quantity.
type PortClaim struct {
	Port   ir.PortRef
	Amount int64
}

// Engine owns the formula slots and solves cycles.
type Engine struct {
	mu sync.Mutex

	mgr      *bdd.Manager
	space    *encode.Space
	data     *encode.DataEncoder
	glue     *ir.Glue
	glueHash string
	compiled bool

	behaviours map[ir.ComponentID]bdd.Ref
	glueRef    bdd.Ref
	dataRef    bdd.Ref
	totalRef   bdd.Ref

	current   map[ir.ComponentID]bdd.Ref
	reports   map[ir.ComponentID]Report
	temporary []bdd.Ref

	clock    *Clock
	rng      *rand.Rand
	maxCubes int
	bddOpts  []bdd.Option
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the source used to choose among maximal interactions.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithSeed makes the choice among maximal interactions reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithMaxCubes bounds cube enumeration per cycle. Zero disables the bound.
func WithMaxCubes(n int) Option {
	return func(e *Engine) { e.maxCubes = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock continues cycle numbering from an existing clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithBDDOptions passes sizing options to the decision-diagram manager.
func WithBDDOptions(opts ...bdd.Option) Option {
	return func(e *Engine) { e.bddOpts = append(e.bddOpts, opts...) }
}

// New creates an engine with an empty variable space.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		behaviours: make(map[ir.ComponentID]bdd.Ref),
		current:    make(map[ir.ComponentID]bdd.Ref),
		reports:    make(map[ir.ComponentID]Report),
		data:       encode.NewDataEncoder(),
		clock:      NewClock(),
		maxCubes:   DefaultMaxCubes,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	mgr, err := bdd.New(0, e.bddOpts...)
	if err != nil {
		return nil, err
	}
	e.mgr = mgr
	e.space = encode.NewSpace(mgr)
	return e, nil
}

// Manager exposes the decision-diagram manager, mostly for tests.
func (e *Engine) Manager() *bdd.Manager {
	return e.mgr
}

// Clock returns the cycle clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// AddComponent allocates variables for a component and retains its
// behaviour formula. Once compiled, glue and data constraints are rebuilt
// for the new membership.
func (e *Engine) AddComponent(id ir.ComponentID, b *ir.Behaviour) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.space.Allocate(id, b); err != nil {
		return fmt.Errorf("register %s: %w", id, err)
	}
	f, err := encode.BehaviourFormula(e.space, id)
	if err != nil {
		return fmt.Errorf("behaviour of %s: %w", id, err)
	}
	e.behaviours[id] = e.mgr.Retain(f)

	e.logger.Debug("component allocated",
		"component", id,
		"type", b.Type,
		"variables", e.space.Len())

	if e.compiled {
		return e.rebuild(false)
	}
	return nil
}

// RemoveComponent retires a component's positions and pairings and drops
// its formulas.
func (e *Engine) RemoveComponent(id ir.ComponentID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.space.Retire(id); err != nil {
		return fmt.Errorf("deregister %s: %w", id, err)
	}
	e.data.Retire(e.space, id)

	e.mgr.Release(e.behaviours[id])
	delete(e.behaviours, id)
	e.mgr.Release(e.current[id])
	delete(e.current, id)
	delete(e.reports, id)

	if e.compiled {
		return e.rebuild(false)
	}
	return nil
}

// SetGlue replaces the glue. Once compiled, the new glue is encoded
// immediately and configuration errors surface here.
func (e *Engine) SetGlue(g *ir.Glue) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := ir.GlueHash(g)
	if err != nil {
		return err
	}
	prevGlue, prevHash := e.glue, e.glueHash
	e.glue, e.glueHash = g, h

	if e.compiled {
		if err := e.rebuild(true); err != nil {
			e.glue, e.glueHash = prevGlue, prevHash
			return err
		}
	}
	return nil
}

// GlueHash returns the content hash of the current glue.
func (e *Engine) GlueHash() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.glueHash
}

// Compile encodes glue and data wires against the registered components
// and forms the total constraint. Later membership and glue changes
// recompute it.
func (e *Engine) Compile() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.rebuild(true); err != nil {
		return err
	}
	e.compiled = true
	return nil
}

// rebuild recomputes the glue and data slots and re-conjoins the total.
// A strict rebuild rejects glue naming types without live instances; after
// membership changes the glue is pruned to the live types instead.
// On failure every slot is left as it was.
func (e *Engine) rebuild(strict bool) error {
	g := e.glue
	if !strict {
		g = encode.PruneGlue(e.space, g, e.logger)
	}
	glueF, err := encode.GlueFormula(e.space, g, e.logger)
	if err != nil {
		return fmt.Errorf("compute glue: %w", err)
	}
	dataF, err := e.data.Build(e.space, e.glue, e.logger)
	if err != nil {
		return fmt.Errorf("compute data wires: %w", err)
	}

	parts := []bdd.Formula{glueF, dataF}
	for _, id := range e.space.Components() {
		f, err := e.mgr.Get(e.behaviours[id])
		if err != nil {
			return fmt.Errorf("behaviour of %s: %w", id, err)
		}
		parts = append(parts, f)
	}
	total := e.mgr.And(parts...)
	if err := e.mgr.Err(); err != nil {
		return err
	}

	e.glueRef = e.mgr.Replace(e.glueRef, glueF)
	e.dataRef = e.mgr.Replace(e.dataRef, dataF)
	e.totalRef = e.mgr.Replace(e.totalRef, total)

	e.logger.Debug("total constraint rebuilt",
		"components", len(e.behaviours),
		"pairings", len(e.data.Pairs()),
		"variables", e.space.Len())
	return nil
}

// Components returns live components in registration order.
func (e *Engine) Components() []ir.ComponentID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.space.Components()
}

// Behaviour returns the behaviour a live component registered with.
func (e *Engine) Behaviour(id ir.ComponentID) (*ir.Behaviour, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slots, ok := e.space.Slots(id)
	if !ok {
		return nil, false
	}
	return slots.Behaviour, true
}

// SetCurrentState replaces a component's current-state formula for this
// cycle. Calling it again in the same cycle overwrites the earlier report.
func (e *Engine) SetCurrentState(id ir.ComponentID, state string, disabled []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := encode.CurrentStateFormula(e.space, id, state, disabled)
	if err != nil {
		return err
	}
	e.current[id] = e.mgr.Replace(e.current[id], f)
	e.reports[id] = Report{State: state, Disabled: append([]string(nil), disabled...)}
	return nil
}

// CurrentReport returns what a component reported this cycle.
func (e *Engine) CurrentReport(id ir.ComponentID) (Report, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.reports[id]
	return r, ok
}

// DataSources lists the producers able to serve datum to a consumer port.
func (e *Engine) DataSources(consumer ir.PortRef, datum string) []DataSource {
	e.mu.Lock()
	defer e.mu.Unlock()

	pairs := e.data.PairsFor(consumer, datum)
	out := make([]DataSource, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, DataSource{Producer: p.Producer, Data: p.Data[datum]})
	}
	return out
}

// DisableCombinations adds a temporary constraint forbidding the deciding
// port from pairing with the listed producer ports this cycle.
func (e *Engine) DisableCombinations(id ir.ComponentID, port string, disabled map[ir.ComponentID][]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.data.EncodeDisabledCombinations(e.space, id, port, disabled)
	if err != nil {
		return err
	}
	e.addTemporary(f)
	return nil
}

// DisableRow adds a temporary constraint forbidding one joint choice of
// producers for a port that reads several data.
func (e *Engine) DisableRow(id ir.ComponentID, port string, producers []ir.PortRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.data.EncodeDisabledRow(e.space, id, port, producers)
	if err != nil {
		return err
	}
	e.addTemporary(f)
	return nil
}

// LimitPorts adds a temporary constraint that the claims of the ports
// firing together sum to at most capacity.
func (e *Engine) LimitPorts(claims []PortClaim, capacity int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	terms := make([]encode.Term, 0, len(claims))
	for _, c := range claims {
		idx, ok := e.space.PortIndex(c.Port.Component, c.Port.Port)
		if !ok {
			return fmt.Errorf("limit ports: %s is not a live enforceable port", c.Port)
		}
		terms = append(terms, encode.Term{Index: idx, Amount: c.Amount})
	}
	e.addTemporary(encode.AtMost(e.mgr, terms, capacity))
	return nil
}

func (e *Engine) addTemporary(f bdd.Formula) {
	if e.mgr.IsTrue(f) {
		return
	}
	e.temporary = append(e.temporary, e.mgr.Retain(f))
}

// Candidates returns the maximal interactions of the current cycle without
// choosing one or clearing any per-cycle state.
func (e *Engine) Candidates() ([][]ir.Firing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept, err := e.solve(e.clock.Current() + 1)
	if err != nil {
		return nil, err
	}
	out := make([][]ir.Firing, 0, len(kept))
	for _, c := range kept {
		firings, err := e.firings(c)
		if err != nil {
			return nil, err
		}
		out = append(out, firings)
	}
	return out, nil
}

// RunOneIteration solves the current cycle and returns the chosen
// interaction. Current-state and temporary slots are cleared whether or not
// solving succeeds.
func (e *Engine) RunOneIteration(ctx context.Context) (*ir.Interaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cycle := e.clock.Next()
	_, span := tracer.Start(ctx, "Engine.RunOneIteration",
		trace.WithAttributes(
			attribute.Int64("interlock.cycle", cycle),
			attribute.Int("interlock.components", len(e.behaviours)),
		),
	)
	defer span.End()

	start := time.Now()
	in, err := e.iterate(cycle)
	solveDuration.Observe(time.Since(start).Seconds())
	e.clearCycle()

	if err != nil {
		result := "error"
		if IsDeadlock(err) {
			result = "deadlock"
		}
		cyclesTotal.WithLabelValues(result).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("cycle failed", "cycle", cycle, "error", err)
		return nil, err
	}

	cyclesTotal.WithLabelValues("ok").Inc()
	maximalInteractions.Observe(float64(in.Candidates))
	span.SetAttributes(
		attribute.String("interlock.interaction", in.ID),
		attribute.Int("interlock.ports", len(in.Firings)),
	)
	e.logger.Info("cycle solved",
		"cycle", cycle,
		"ports", len(in.Firings),
		"pairings", len(in.Pairings),
		"candidates", in.Candidates)
	return in, nil
}

func (e *Engine) iterate(cycle int64) (*ir.Interaction, error) {
	kept, err := e.solve(cycle)
	if err != nil {
		return nil, err
	}

	chosen := kept[e.rng.IntN(len(kept))]
	firings, err := e.firings(chosen)
	if err != nil {
		return nil, err
	}

	id, err := ir.InteractionID(cycle, firings)
	if err != nil {
		return nil, err
	}
	return &ir.Interaction{
		Cycle:      cycle,
		ID:         id,
		Firings:    firings,
		Pairings:   e.data.Pairings(chosen.cube),
		Candidates: len(kept),
	}, nil
}

// solve conjoins the slots, enumerates cubes and applies the deadlock policy.
func (e *Engine) solve(cycle int64) ([]candidate, error) {
	if !e.compiled {
		return nil, &RuntimeError{Code: ErrCodeNotCompiled, Message: "engine has not been compiled", Cycle: cycle}
	}

	total, err := e.mgr.Get(e.totalRef)
	if err != nil {
		return nil, err
	}
	parts := []bdd.Formula{total}
	for _, id := range e.space.Components() {
		ref, ok := e.current[id]
		if !ok {
			return nil, &RuntimeError{
				Code:      ErrCodeMissingCurrentState,
				Message:   "component has not informed this cycle",
				Cycle:     cycle,
				Component: id,
			}
		}
		f, err := e.mgr.Get(ref)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	for _, ref := range e.temporary {
		f, err := e.mgr.Get(ref)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}

	combined := e.mgr.And(parts...)
	if err := e.mgr.Err(); err != nil {
		return nil, err
	}

	cubes, err := e.mgr.Cubes(combined, e.maxCubes)
	if errors.Is(err, bdd.ErrTooManyCubes) {
		return nil, &RuntimeError{
			Code:    ErrCodeTooManyCubes,
			Message: fmt.Sprintf("more than %d satisfying cubes", e.maxCubes),
			Cycle:   cycle,
		}
	}
	if err != nil {
		return nil, err
	}

	kept := maximalCandidates(cubes, e.space.PortPositions())
	e.logger.Debug("cubes enumerated",
		"cycle", cycle,
		"cubes", len(cubes),
		"maximal", len(kept))

	switch {
	case len(kept) == 0:
		return nil, newDeadlock(cycle, ErrCodeNoMaximalInteractions)
	case len(kept) == 1 && kept[0].size == 0:
		return nil, newDeadlock(cycle, ErrCodeNoEnabledPorts)
	}
	return kept, nil
}

// firings lists the live ports active in a candidate, in position order.
func (e *Engine) firings(c candidate) ([]ir.Firing, error) {
	ports := e.space.PortPositions()
	out := make([]ir.Firing, 0, c.size)
	for j, idx := range ports {
		if !c.active.has(j) {
			continue
		}
		f, err := e.space.Owner(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// clearCycle releases the current-state and temporary slots.
func (e *Engine) clearCycle() {
	for id, ref := range e.current {
		e.mgr.Release(ref)
		delete(e.current, id)
	}
	clear(e.reports)
	for _, ref := range e.temporary {
		e.mgr.Release(ref)
	}
	e.temporary = e.temporary[:0]
}

// Retained returns the number of formulas the engine keeps alive.
func (e *Engine) Retained() int {
	return e.mgr.Retained()
}
