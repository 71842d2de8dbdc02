package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/interlock/internal/encode"
	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
)

type phase int

const (
	phaseInitializing phase = iota
	phaseRunning
	phaseStopped
)

func (p phase) String() string {
	switch p {
	case phaseInitializing:
		return "initializing"
	case phaseRunning:
		return "running"
	default:
		return "stopped"
	}
}

var errStopped = errors.New("coordinator stopped")

// member is a live component and its inform state for the current cycle.
type member struct {
	id        ir.ComponentID
	component Component
	behaviour *ir.Behaviour
	informed  bool
	report    Report
}

// Coordinator runs the cycle protocol for a set of components.
type Coordinator struct {
	eng       *engine.Engine
	stages    []Stage
	recorder  Recorder
	handles   HandleGenerator
	maxCycles int64
	logger    *slog.Logger

	// cycleMu is held while a cycle is solved and dispatched and while a
	// membership change is applied.
	cycleMu sync.Mutex

	mu      sync.Mutex
	phase   phase
	members map[ir.ComponentID]*member
	order   []ir.ComponentID
	barrier *barrier
	cancel  context.CancelFunc
	started bool

	gate     *gateQueue
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	runErr   error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithEngine uses an existing engine instead of creating one.
func WithEngine(e *engine.Engine) Option {
	return func(c *Coordinator) { c.eng = e }
}

// WithStages appends stages, run in the order given.
func WithStages(stages ...Stage) Option {
	return func(c *Coordinator) { c.stages = append(c.stages, stages...) }
}

// WithRecorder sets the recorder for registrations and solved cycles.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithHandleGenerator sets how component handles are generated.
// Defaults to UUIDv7Generator.
func WithHandleGenerator(g HandleGenerator) Option {
	return func(c *Coordinator) { c.handles = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMaxCycles stops Execute cleanly after n cycles. Zero means no limit.
func WithMaxCycles(n int64) Option {
	return func(c *Coordinator) { c.maxCycles = n }
}

// New creates a coordinator. Without WithEngine it creates an engine with
// the coordinator's logger.
func New(opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		handles: UUIDv7Generator{},
		logger:  slog.Default(),
		members: make(map[ir.ComponentID]*member),
		barrier: newBarrier(),
		gate:    newGateQueue(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.eng == nil {
		eng, err := engine.New(engine.WithLogger(c.logger))
		if err != nil {
			return nil, fmt.Errorf("create engine: %w", err)
		}
		c.eng = eng
	}
	return c, nil
}

// Register adds a component and returns its handle. Before Execute the
// component is added at once; while running, the request waits on the
// membership gate until the solver applies it between cycles.
//
// If ctx ends while the request is queued, Register returns the handle with
// the context error and the request may still be applied.
func (c *Coordinator) Register(ctx context.Context, comp Component, b *ir.Behaviour) (ir.ComponentID, error) {
	if b == nil {
		return "", &encode.ConfigError{Code: encode.ErrCodeNoBehaviour, Message: "component registered without a behaviour"}
	}
	if err := b.Check(); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	id := c.handles.Generate(b.Type)
	return id, c.submit(ctx, newRequest(requestRegister, id, comp, b))
}

// Deregister removes a component. While running, it takes effect between
// cycles and Deregister blocks until then.
func (c *Coordinator) Deregister(ctx context.Context, id ir.ComponentID) error {
	return c.submit(ctx, newRequest(requestDeregister, id, nil, nil))
}

func (c *Coordinator) submit(ctx context.Context, req *membershipRequest) error {
	c.mu.Lock()
	ph := c.phase
	c.mu.Unlock()

	switch ph {
	case phaseStopped:
		return protocolErr(ErrCodeStopped, req.id, "", "coordinator has stopped")
	case phaseInitializing:
		c.cycleMu.Lock()
		defer c.cycleMu.Unlock()
		return c.apply(ctx, req)
	}

	if !c.gate.Enqueue(req) {
		return protocolErr(ErrCodeStopped, req.id, "", "coordinator has stopped")
	}
	c.logger.Debug("membership request queued", "request", req.kind, "component", req.id)

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// apply performs a membership change. Callers hold cycleMu.
func (c *Coordinator) apply(ctx context.Context, req *membershipRequest) error {
	switch req.kind {
	case requestRegister:
		return c.applyRegister(ctx, req)
	case requestDeregister:
		return c.applyDeregister(ctx, req)
	default:
		return fmt.Errorf("unknown membership request %d", req.kind)
	}
}

func (c *Coordinator) applyRegister(ctx context.Context, req *membershipRequest) error {
	if err := c.eng.AddComponent(req.id, req.behaviour); err != nil {
		return err
	}

	c.mu.Lock()
	c.members[req.id] = &member{id: req.id, component: req.component, behaviour: req.behaviour}
	c.order = append(c.order, req.id)
	c.barrier.join()
	c.mu.Unlock()

	for _, st := range c.stages {
		if err := st.OnRegister(ctx, c, req.id, req.behaviour); err != nil {
			c.drop(req.id)
			if rmErr := c.eng.RemoveComponent(req.id); rmErr != nil {
				c.logger.Error("rollback of failed registration", "component", req.id, "error", rmErr)
			}
			return fmt.Errorf("stage %s: register %s: %w", st.Name(), req.id, err)
		}
	}

	liveComponents.Inc()
	c.record(ctx, req.id, req.behaviour.Type, EventRegistered)
	c.logger.Info("component registered",
		"component", req.id,
		"type", req.behaviour.Type)
	return nil
}

func (c *Coordinator) applyDeregister(ctx context.Context, req *membershipRequest) error {
	c.mu.Lock()
	m, ok := c.members[req.id]
	c.mu.Unlock()
	if !ok {
		return protocolErr(ErrCodeUnregisteredComponent, req.id, "", "deregister of unknown component")
	}

	if err := c.eng.RemoveComponent(req.id); err != nil {
		return err
	}
	c.drop(req.id)

	var errs []error
	for _, st := range c.stages {
		if err := st.OnDeregister(ctx, c, req.id); err != nil {
			errs = append(errs, fmt.Errorf("stage %s: deregister %s: %w", st.Name(), req.id, err))
		}
	}

	liveComponents.Dec()
	c.record(ctx, req.id, m.behaviour.Type, EventDeregistered)
	c.logger.Info("component deregistered",
		"component", req.id,
		"type", m.behaviour.Type)
	return errors.Join(errs...)
}

// drop removes a member and its barrier party.
func (c *Coordinator) drop(id ir.ComponentID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.members[id]
	if !ok {
		return
	}
	delete(c.members, id)
	c.order = slices.DeleteFunc(c.order, func(o ir.ComponentID) bool { return o == id })
	c.barrier.leave(m.informed)
}

func (c *Coordinator) record(ctx context.Context, id ir.ComponentID, typ, event string) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordRegistration(ctx, id, typ, event); err != nil {
		c.logger.Warn("record registration failed", "component", id, "event", event, "error", err)
	}
}

// SpecifyGlue sets the glue. Once running, the glue is encoded at once and
// configuration errors are returned here; before that they surface from
// Execute.
func (c *Coordinator) SpecifyGlue(g *ir.Glue) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	if g == nil {
		return &encode.ConfigError{Code: encode.ErrCodeMissingEffect, Message: "glue is required"}
	}
	if err := c.eng.SetGlue(g); err != nil {
		return fmt.Errorf("specify glue: %w", err)
	}
	c.logger.Info("glue specified",
		"requires", len(g.Requires),
		"accepts", len(g.Accepts),
		"wires", len(g.Wires),
		"hash", c.eng.GlueHash())
	return nil
}

// Inform records a component's state for the current cycle. Each live
// component informs exactly once per cycle.
func (c *Coordinator) Inform(_ context.Context, id ir.ComponentID, state string, disabled []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == phaseStopped || c.stopped() {
		informsTotal.WithLabelValues("rejected").Inc()
		return protocolErr(ErrCodeStopped, id, "", "coordinator has stopped")
	}
	m, ok := c.members[id]
	if !ok {
		informsTotal.WithLabelValues("rejected").Inc()
		return protocolErr(ErrCodeUnregisteredComponent, id, "", "inform from unknown component")
	}
	if m.informed {
		informsTotal.WithLabelValues("duplicate").Inc()
		return protocolErr(ErrCodeDuplicateInform, id, "", "component already informed this cycle")
	}
	if !m.behaviour.HasState(state) {
		informsTotal.WithLabelValues("rejected").Inc()
		return protocolErr(ErrCodeUnknownState, id, "", "state %q is not declared", state)
	}
	for _, port := range disabled {
		if _, ok := m.behaviour.Port(port); !ok {
			informsTotal.WithLabelValues("rejected").Inc()
			return protocolErr(ErrCodeUnknownPort, id, port, "disabled port is not declared")
		}
	}

	m.informed = true
	m.report = Report{State: state, Disabled: slices.Clone(disabled)}
	c.barrier.arrive()
	informsTotal.WithLabelValues("accepted").Inc()

	c.logger.Debug("component informed",
		"component", id,
		"state", state,
		"disabled", len(disabled),
		"arrived", c.barrier.arrived,
		"live", c.barrier.parties)
	return nil
}

// Engine implements Host.
func (c *Coordinator) Engine() *engine.Engine {
	return c.eng
}

// Members implements Host.
func (c *Coordinator) Members() []ir.ComponentID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order)
}

// Component implements Host.
func (c *Coordinator) Component(id ir.ComponentID) (Component, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.members[id]
	if !ok {
		return nil, false
	}
	return m.component, true
}

// Behaviour implements Host.
func (c *Coordinator) Behaviour(id ir.ComponentID) (*ir.Behaviour, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.members[id]
	if !ok {
		return nil, false
	}
	return m.behaviour, true
}

// Report implements Host.
func (c *Coordinator) Report(id ir.ComponentID) (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.members[id]
	if !ok || !m.informed {
		return Report{}, false
	}
	return m.report.clone(), true
}

// Logger implements Host.
func (c *Coordinator) Logger() *slog.Logger {
	return c.logger
}

// Execute compiles the constraints and runs cycles until Stop, ctx ends, a
// fatal error occurs or the cycle limit is reached. Stop and the cycle limit
// end it with a nil error.
func (c *Coordinator) Execute(ctx context.Context) error {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	return c.run(ctx, cancel)
}

// Start moves to the running phase and runs the cycle loop in a goroutine.
// Wait returns its result.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	ctx, cancel, err := c.begin(ctx)
	go func() {
		defer close(c.done)
		if err != nil {
			c.runErr = err
			return
		}
		c.runErr = c.run(ctx, cancel)
	}()
}

// begin moves from initializing to running.
func (c *Coordinator) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case phaseRunning:
		return nil, nil, protocolErr(ErrCodeAlreadyRunning, "", "", "coordinator is already running")
	case phaseStopped:
		return nil, nil, protocolErr(ErrCodeStopped, "", "", "coordinator has stopped")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.phase = phaseRunning
	return ctx, cancel, nil
}

func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc) error {
	defer cancel()
	err := c.loop(ctx)
	c.shutdown()
	if err != nil && c.stopped() {
		return nil
	}
	return err
}

// Wait blocks until a coordinator started with Start has finished.
func (c *Coordinator) Wait() error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return protocolErr(ErrCodeNotRunning, "", "", "coordinator was not started")
	}
	<-c.done
	return c.runErr
}

// Stop interrupts the run loop and cancels pending component callbacks.
// Shutdown is best effort: a cycle being dispatched may be cut short.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Unlock()
		c.logger.Info("coordinator stop requested")
	})
}

// interrupted reports errStopped after Stop and the context error once ctx
// has ended.
func (c *Coordinator) interrupted(ctx context.Context) error {
	if c.stopped() {
		return errStopped
	}
	return ctx.Err()
}

func (c *Coordinator) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// shutdown moves to the stopped phase and fails queued membership requests.
func (c *Coordinator) shutdown() {
	c.mu.Lock()
	c.phase = phaseStopped
	c.mu.Unlock()

	for _, req := range c.gate.Close() {
		req.done <- protocolErr(ErrCodeStopped, req.id, "", "coordinator has stopped")
	}
}

func (c *Coordinator) loop(ctx context.Context) error {
	c.cycleMu.Lock()
	err := c.eng.Compile()
	c.cycleMu.Unlock()
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	c.logger.Info("coordinator running",
		"components", len(c.Members()),
		"stages", len(c.stages),
		"max_cycles", c.maxCycles)

	var cycles int64
	for {
		if err := c.interrupted(ctx); err != nil {
			if errors.Is(err, errStopped) {
				return nil
			}
			return err
		}
		if c.maxCycles > 0 && cycles >= c.maxCycles {
			c.logger.Info("cycle limit reached", "cycles", cycles)
			return nil
		}
		if err := c.await(ctx); err != nil {
			if errors.Is(err, errStopped) {
				return nil
			}
			return err
		}
		if err := c.runCycle(ctx); err != nil {
			return err
		}
		cycles++
	}
}

// await applies queued membership changes until every live component has
// informed. A pending stop wins over a barrier that is already full, since
// components that inform from inside their callbacks keep it full forever.
func (c *Coordinator) await(ctx context.Context) error {
	for {
		if err := c.interrupted(ctx); err != nil {
			return err
		}
		if err := c.drainGate(ctx); err != nil {
			return err
		}

		c.mu.Lock()
		ready := c.barrier.ready()
		c.mu.Unlock()
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return errStopped
		case <-c.gate.Wait():
		case <-c.barrier.release:
		}
	}
}

func (c *Coordinator) drainGate(ctx context.Context) error {
	for {
		req, ok := c.gate.TryDequeue()
		if !ok {
			return nil
		}
		c.cycleMu.Lock()
		err := c.apply(ctx, req)
		c.cycleMu.Unlock()
		if err != nil {
			c.logger.Warn("membership request failed", "request", req.kind, "component", req.id, "error", err)
		}
		req.done <- err
	}
}

// runCycle runs the stages, solves one cycle and dispatches it.
func (c *Coordinator) runCycle(ctx context.Context) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	for _, id := range c.Members() {
		r, ok := c.Report(id)
		if !ok {
			return protocolErr(ErrCodeNotRunning, id, "", "barrier released before the component informed")
		}
		for _, st := range c.stages {
			if err := st.OnInform(ctx, c, id, &r); err != nil {
				return fmt.Errorf("stage %s: inform %s: %w", st.Name(), id, err)
			}
		}
		c.mu.Lock()
		if m, ok := c.members[id]; ok {
			m.report = r
		}
		c.mu.Unlock()

		if err := c.eng.SetCurrentState(id, r.State, r.Disabled); err != nil {
			return fmt.Errorf("current state of %s: %w", id, err)
		}
	}
	for _, st := range c.stages {
		if err := st.BeforeSolve(ctx, c); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name(), err)
		}
	}

	in, err := c.eng.RunOneIteration(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	for _, m := range c.members {
		m.informed = false
		m.report = Report{}
	}
	c.barrier.reset()
	c.mu.Unlock()

	if err := c.dispatch(ctx, in); err != nil {
		return err
	}
	for _, st := range c.stages {
		if err := st.OnDispatch(ctx, c, in); err != nil {
			return fmt.Errorf("stage %s: dispatch: %w", st.Name(), err)
		}
	}
	if c.recorder != nil {
		if err := c.recorder.RecordCycle(ctx, c.eng.GlueHash(), in); err != nil {
			return fmt.Errorf("record cycle %d: %w", in.Cycle, err)
		}
	}
	return nil
}
