package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
)

// dispatch executes the chosen interaction: every firing component gets its
// port, every other live component gets NoPort. Transition data is fetched
// from the producers before any component executes.
func (c *Coordinator) dispatch(ctx context.Context, in *ir.Interaction) (err error) {
	ctx, span := tracer.Start(ctx, "Coordinator.Dispatch",
		trace.WithAttributes(
			attribute.Int64("interlock.cycle", in.Cycle),
			attribute.String("interlock.interaction", in.ID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	defer func() { dispatchDuration.Observe(time.Since(start).Seconds()) }()

	ports := make(map[ir.ComponentID]string, len(in.Firings))
	for _, f := range in.Firings {
		if f.Port == "" {
			return protocolErr(ErrCodeEmptyPort, f.Component, "", "interaction %s fires an empty port", in.ID)
		}
		if _, ok := c.Component(f.Component); !ok {
			return protocolErr(ErrCodeComponentlessPort, f.Component, f.Port, "interaction %s fires a port without a live component", in.ID)
		}
		ports[f.Component] = f.Port
	}

	data, err := c.transitionData(ctx, in, ports)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range c.Members() {
		comp, ok := c.Component(id)
		if !ok {
			continue
		}
		port := ports[id]
		g.Go(func() error {
			if err := comp.Execute(gctx, port, data[id]); err != nil {
				return fmt.Errorf("execute %q on %s: %w", port, id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.logger.Debug("interaction dispatched",
		"cycle", in.Cycle,
		"firing", len(ports),
		"members", len(c.Members()))
	return nil
}

// transitionData collects, for every firing port that consumes data, the
// values exported by the producers it was paired with.
func (c *Coordinator) transitionData(ctx context.Context, in *ir.Interaction, ports map[ir.ComponentID]string) (map[ir.ComponentID]ir.Object, error) {
	var (
		mu  sync.Mutex
		out = make(map[ir.ComponentID]ir.Object)
	)
	g, gctx := errgroup.WithContext(ctx)
	for id, port := range ports {
		b, _ := c.Behaviour(id)
		needs := b.TransitionData[port]
		if len(needs) == 0 {
			continue
		}
		consumer := ir.PortRef{Component: id, Port: port}
		paired := in.ProducersFor(consumer)

		for _, datum := range needs {
			decl, _ := b.DataInDecl(datum)
			src, ok := c.pairedSource(consumer, datum, paired)
			if !ok {
				return nil, protocolErr(ErrCodeDataUnavailable, id, port, "no producer paired for data %q", datum)
			}
			g.Go(func() error {
				v, err := fetchData(gctx, c, src.Producer.Component, src.Data, decl.Type)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if out[id] == nil {
					out[id] = make(ir.Object)
				}
				out[id][datum] = v
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// pairedSource picks, among the producers that can serve datum, the first one
// the interaction paired with the consumer.
func (c *Coordinator) pairedSource(consumer ir.PortRef, datum string, paired []ir.PortRef) (engine.DataSource, bool) {
	for _, s := range c.eng.DataSources(consumer, datum) {
		for _, p := range paired {
			if s.Producer == p {
				return s, true
			}
		}
	}
	return engine.DataSource{}, false
}
