package coordinator

import (
	"context"
	"log/slog"

	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
)

// Host is the view of the coordinator a stage works against.
type Host interface {
	// Engine is the symbolic engine. Stages add temporary constraints to it.
	Engine() *engine.Engine

	// Members returns live components in registration order.
	Members() []ir.ComponentID

	// Component returns the callback side of a live component.
	Component(id ir.ComponentID) (Component, bool)

	// Behaviour returns the behaviour a live component registered with.
	Behaviour(id ir.ComponentID) (*ir.Behaviour, bool)

	// Report returns a component's report for the cycle being solved.
	Report(id ir.ComponentID) (Report, bool)

	Logger() *slog.Logger
}

// Stage extends the cycle protocol. Stages run in the order they were
// configured.
//
// OnInform runs on the solver goroutine once every live component has
// informed, in registration order, and may narrow the report. BeforeSolve
// runs after every OnInform and before the engine solves. OnDispatch runs
// after the chosen interaction has been executed.
type Stage interface {
	Name() string
	OnRegister(ctx context.Context, h Host, id ir.ComponentID, b *ir.Behaviour) error
	OnDeregister(ctx context.Context, h Host, id ir.ComponentID) error
	OnInform(ctx context.Context, h Host, id ir.ComponentID, r *Report) error
	BeforeSolve(ctx context.Context, h Host) error
	OnDispatch(ctx context.Context, h Host, in *ir.Interaction) error
}

// BaseStage implements every hook as a no-op. Embed it and override the
// hooks a stage needs.
type BaseStage struct{}

func (BaseStage) OnRegister(context.Context, Host, ir.ComponentID, *ir.Behaviour) error { return nil }
func (BaseStage) OnDeregister(context.Context, Host, ir.ComponentID) error               { return nil }
func (BaseStage) OnInform(context.Context, Host, ir.ComponentID, *Report) error          { return nil }
func (BaseStage) BeforeSolve(context.Context, Host) error                                { return nil }
func (BaseStage) OnDispatch(context.Context, Host, *ir.Interaction) error                { return nil }
