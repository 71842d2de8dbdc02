package coordinator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
)

// DataStage evaluates data guards. For every enabled port whose guard reads
// data, it fetches the values of every producer the port could pair with,
// asks the component (or the declared guard) which combinations enable the
// port, and turns the refused ones into temporary constraints. A port with
// no acceptable combination is added to the report's disabled set.
type DataStage struct {
	BaseStage
}

// NewDataStage creates the data-guard stage.
func NewDataStage() *DataStage {
	return &DataStage{}
}

func (*DataStage) Name() string { return "data" }

// OnInform implements Stage.
func (s *DataStage) OnInform(ctx context.Context, h Host, id ir.ComponentID, r *Report) error {
	b, ok := h.Behaviour(id)
	if !ok {
		return nil
	}
	for _, port := range r.Enabled(b) {
		needs := b.GuardData[port]
		if len(needs) == 0 {
			continue
		}
		if err := s.evaluate(ctx, h, id, b, port, needs, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *DataStage) evaluate(ctx context.Context, h Host, id ir.ComponentID, b *ir.Behaviour, port string, needs []string, r *Report) error {
	eng := h.Engine()
	consumer := ir.PortRef{Component: id, Port: port}

	sources := make([][]engine.DataSource, len(needs))
	for i, datum := range needs {
		sources[i] = eng.DataSources(consumer, datum)
		if len(sources[i]) == 0 {
			h.Logger().Debug("guard data has no producer", "port", consumer.String(), "data", datum)
			r.Disable(port)
			return nil
		}
	}

	values, err := fetchSources(ctx, h, b, needs, sources)
	if err != nil {
		return err
	}

	rows := crossProduct(sources)
	objs := make([]ir.Object, len(rows))
	for i, row := range rows {
		obj := make(ir.Object, len(needs))
		for j, src := range row {
			obj[needs[j]] = values[fetchKey{producer: src.Producer.Component, data: src.Data}]
		}
		objs[i] = obj
	}

	enabled, err := s.check(ctx, h, id, b, r.State, port, objs)
	if err != nil {
		return err
	}
	if len(enabled) != len(rows) {
		return protocolErr(ErrCodeDataUnavailable, id, port, "enabledness has %d answers for %d data rows", len(enabled), len(rows))
	}

	anyEnabled := false
	for _, ok := range enabled {
		anyEnabled = anyEnabled || ok
	}
	if !anyEnabled {
		h.Logger().Debug("guard refuses every data row", "port", consumer.String(), "rows", len(rows))
		r.Disable(port)
		return nil
	}

	if len(needs) == 1 {
		disabled := make(map[ir.ComponentID][]string)
		for i, row := range rows {
			if !enabled[i] {
				p := row[0].Producer
				disabled[p.Component] = append(disabled[p.Component], p.Port)
			}
		}
		return eng.DisableCombinations(id, port, disabled)
	}

	for i, row := range rows {
		if enabled[i] {
			continue
		}
		producers := make([]ir.PortRef, len(row))
		for j, src := range row {
			producers[j] = src.Producer
		}
		if err := eng.DisableRow(id, port, producers); err != nil {
			return err
		}
	}
	return nil
}

// check asks the component when it evaluates its own guards and falls back
// to the guard declared on the transition.
func (s *DataStage) check(ctx context.Context, h Host, id ir.ComponentID, b *ir.Behaviour, state, port string, rows []ir.Object) ([]bool, error) {
	comp, _ := h.Component(id)
	if gc, ok := comp.(GuardChecker); ok {
		enabled, err := gc.CheckEnabledness(ctx, port, rows)
		if err != nil {
			return nil, protocolErr(ErrCodeDataUnavailable, id, port, "check enabledness: %v", err)
		}
		return enabled, nil
	}

	out := make([]bool, len(rows))
	t, _ := b.TransitionFor(state, port)
	guard, ok := b.Guards[t.Guard]
	if t.Guard == "" || !ok {
		for i := range out {
			out[i] = true
		}
		return out, nil
	}
	for i, row := range rows {
		holds, err := guard.Holds(row[guard.Data])
		if err != nil {
			return nil, protocolErr(ErrCodeDataUnavailable, id, port, "%v", err)
		}
		out[i] = holds
	}
	return out, nil
}

type fetchKey struct {
	producer ir.ComponentID
	data     string
}

// fetchSources fetches every distinct (producer, datum) once, concurrently.
func fetchSources(ctx context.Context, h Host, b *ir.Behaviour, needs []string, sources [][]engine.DataSource) (map[fetchKey]ir.Value, error) {
	var (
		mu  sync.Mutex
		out = make(map[fetchKey]ir.Value)
	)
	seen := make(map[fetchKey]bool)
	g, gctx := errgroup.WithContext(ctx)
	for i, datum := range needs {
		decl, _ := b.DataInDecl(datum)
		for _, src := range sources[i] {
			key := fetchKey{producer: src.Producer.Component, data: src.Data}
			if seen[key] {
				continue
			}
			seen[key] = true
			g.Go(func() error {
				v, err := fetchData(gctx, h, key.producer, key.data, decl.Type)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				out[key] = v
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetchData reads one exported datum and checks it against the declared type.
// A missing or mistyped value is a protocol error.
func fetchData(ctx context.Context, h Host, producer ir.ComponentID, name, wantType string) (ir.Value, error) {
	comp, ok := h.Component(producer)
	if !ok {
		return nil, protocolErr(ErrCodeDataUnavailable, producer, "", "producer of %q is not registered", name)
	}
	dp, ok := comp.(DataProvider)
	if !ok {
		return nil, protocolErr(ErrCodeDataUnavailable, producer, "", "component exports no data")
	}
	v, err := dp.GetData(ctx, name)
	if err != nil {
		return nil, protocolErr(ErrCodeDataUnavailable, producer, "", "get %q: %v", name, err)
	}
	if v == nil {
		return nil, protocolErr(ErrCodeDataUnavailable, producer, "", "no value for %q", name)
	}
	if got := ir.TypeName(v); wantType != "" && got != wantType {
		return nil, protocolErr(ErrCodeDataUnavailable, producer, "", "data %q is %s, want %s", name, got, wantType)
	}
	return v, nil
}

// crossProduct lists every choice of one source per datum.
func crossProduct(sources [][]engine.DataSource) [][]engine.DataSource {
	rows := [][]engine.DataSource{{}}
	for _, choices := range sources {
		var next [][]engine.DataSource
		for _, row := range rows {
			for _, c := range choices {
				r := make([]engine.DataSource, len(row), len(row)+1)
				copy(r, row)
				next = append(next, append(r, c))
			}
		}
		rows = next
	}
	return rows
}
