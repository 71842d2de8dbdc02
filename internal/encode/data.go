package encode

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/interlock/internal/bdd"
	"github.com/roach88/interlock/internal/ir"
)

// Pair is one consumer/producer data pairing and its d-variable.
type Pair struct {
	Index    int
	Consumer ir.PortRef
	Producer ir.PortRef

	// Data maps each incoming datum of the consumer served by this pairing
	// to the outgoing datum of the producer that feeds it.
	Data    map[string]string
	Retired bool
}

type pairKey struct {
	consumer ir.PortRef
	producer ir.PortRef
}

// DataEncoder allocates d-variables for data wires and builds their
// constraints. A pairing keeps its d-variable for as long as both ends are
// registered.
type DataEncoder struct {
	pairs []*Pair
	byKey map[pairKey]*Pair
}

// NewDataEncoder creates an encoder with no pairings.
func NewDataEncoder() *DataEncoder {
	return &DataEncoder{byKey: make(map[pairKey]*Pair)}
}

// Build allocates d-variables for every pairing the wires of g imply among
// live components that do not have one yet, and returns the permanent data
// constraint:
//
//	d → consumer ∧ producer                  for every live pairing
//	consumer → OR(d delivering datum)        for every consumer port and datum it reads
//	¬d                                       for every retired pairing
func (e *DataEncoder) Build(s *Space, g *ir.Glue, logger *slog.Logger) (bdd.Formula, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := s.Manager()

	var wires []ir.Wire
	if g != nil {
		wires = g.Wires
	}
	for _, w := range wires {
		if err := e.wire(s, w); err != nil {
			return bdd.Formula{}, err
		}
	}

	var parts []bdd.Formula
	for _, p := range e.pairs {
		if p.Retired {
			parts = append(parts, m.NVar(p.Index))
			continue
		}
		c, _ := s.PortIndex(p.Consumer.Component, p.Consumer.Port)
		pr, _ := s.PortIndex(p.Producer.Component, p.Producer.Port)
		parts = append(parts, m.Imp(m.Var(p.Index), m.And(m.Var(c), m.Var(pr))))
	}

	for _, id := range s.Components() {
		slots, _ := s.Slots(id)
		b := slots.Behaviour
		for _, port := range slots.PortOrder {
			for _, datum := range b.DataNeeds(port) {
				consumer := ir.PortRef{Component: id, Port: port}
				var ds []bdd.Formula
				for _, p := range e.PairsFor(consumer, datum) {
					ds = append(ds, m.Var(p.Index))
				}
				if len(ds) == 0 && g != nil && len(g.WiresInto(b.Type, datum)) == 0 {
					logger.Warn("port reads unwired data and can never fire",
						"port", consumer.String(),
						"data", datum)
				}
				parts = append(parts, m.Imp(m.Var(slots.Ports[port]), m.Or(ds...)))
			}
		}
	}

	f := m.And(parts...)
	if err := m.Err(); err != nil {
		return bdd.Formula{}, err
	}
	return f, nil
}

func (e *DataEncoder) wire(s *Space, w ir.Wire) error {
	from, ok := s.TypeBehaviour(w.From.Type)
	if !ok {
		return configErr(ErrCodeNoInstances, w.From.String(), "wire source type %s is not registered", w.From.Type)
	}
	if _, ok := from.DataOutDecl(w.From.Data); !ok {
		return configErr(ErrCodeUnknownData, w.From.String(), "type %s exports no data %q", w.From.Type, w.From.Data)
	}
	to, ok := s.TypeBehaviour(w.To.Type)
	if !ok {
		return configErr(ErrCodeNoInstances, w.To.String(), "wire target type %s is not registered", w.To.Type)
	}
	if _, ok := to.DataInDecl(w.To.Data); !ok {
		return configErr(ErrCodeUnknownData, w.To.String(), "type %s reads no data %q", w.To.Type, w.To.Data)
	}

	var producers []ir.PortRef
	for _, id := range s.Instances(w.From.Type) {
		slots, _ := s.Slots(id)
		for _, port := range slots.Behaviour.ExportPorts(w.From.Data) {
			if _, ok := slots.Ports[port]; ok {
				producers = append(producers, ir.PortRef{Component: id, Port: port})
			}
		}
	}

	for _, id := range s.Instances(w.To.Type) {
		slots, _ := s.Slots(id)
		for _, port := range slots.PortOrder {
			if !slices.Contains(slots.Behaviour.DataNeeds(port), w.To.Data) {
				continue
			}
			consumer := ir.PortRef{Component: id, Port: port}
			for _, producer := range producers {
				if producer.Component == consumer.Component {
					continue
				}
				p, err := e.pair(s, consumer, producer)
				if err != nil {
					return err
				}
				p.Data[w.To.Data] = w.From.Data
			}
		}
	}
	return nil
}

func (e *DataEncoder) pair(s *Space, consumer, producer ir.PortRef) (*Pair, error) {
	key := pairKey{consumer: consumer, producer: producer}
	if p, ok := e.byKey[key]; ok {
		return p, nil
	}
	idx, err := s.AllocateData(consumer, producer)
	if err != nil {
		return nil, err
	}
	p := &Pair{Index: idx, Consumer: consumer, Producer: producer, Data: make(map[string]string)}
	e.pairs = append(e.pairs, p)
	e.byKey[key] = p
	return p, nil
}

// Retire marks every pairing touching the component retired.
func (e *DataEncoder) Retire(s *Space, id ir.ComponentID) {
	for _, p := range e.pairs {
		if p.Retired {
			continue
		}
		if p.Consumer.Component == id || p.Producer.Component == id {
			p.Retired = true
			delete(e.byKey, pairKey{consumer: p.Consumer, producer: p.Producer})
			s.RetireVar(p.Index)
		}
	}
}

// Pairs returns the live pairings in allocation order.
func (e *DataEncoder) Pairs() []*Pair {
	var out []*Pair
	for _, p := range e.pairs {
		if !p.Retired {
			out = append(out, p)
		}
	}
	return out
}

// Lookup returns the live pairing between a consumer and a producer port.
func (e *DataEncoder) Lookup(consumer, producer ir.PortRef) (*Pair, bool) {
	p, ok := e.byKey[pairKey{consumer: consumer, producer: producer}]
	return p, ok
}

// PairsFor returns the live pairings delivering datum to a consumer port.
func (e *DataEncoder) PairsFor(consumer ir.PortRef, datum string) []*Pair {
	var out []*Pair
	for _, p := range e.pairs {
		if p.Retired || p.Consumer != consumer {
			continue
		}
		if _, ok := p.Data[datum]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Pairings returns the live pairings whose d-variable is set in the cube.
// Don't-care d-variables are read as false.
func (e *DataEncoder) Pairings(c bdd.Cube) []ir.Pairing {
	var out []ir.Pairing
	for _, p := range e.pairs {
		if !p.Retired && c.At(p.Index) == bdd.One {
			out = append(out, ir.Pairing{Consumer: p.Consumer, Producer: p.Producer})
		}
	}
	return out
}

// EncodeDisabledCombinations forbids the deciding port from pairing with
// each listed (component, port). Pairs without a d-variable are skipped;
// an empty map is the neutral constraint.
func (e *DataEncoder) EncodeDisabledCombinations(s *Space, deciding ir.ComponentID, port string, disabled map[ir.ComponentID][]string) (bdd.Formula, error) {
	m := s.Manager()
	if len(disabled) == 0 {
		return m.True(), nil
	}
	if _, ok := s.PortIndex(deciding, port); !ok {
		return bdd.Formula{}, e.unknown(s, deciding, port)
	}

	consumer := ir.PortRef{Component: deciding, Port: port}
	var lits []bdd.Formula
	for _, id := range slices.Sorted(maps.Keys(disabled)) {
		for _, other := range disabled[id] {
			if _, ok := s.PortIndex(id, other); !ok {
				return bdd.Formula{}, e.unknown(s, id, other)
			}
			if p, ok := e.Lookup(consumer, ir.PortRef{Component: id, Port: other}); ok {
				lits = append(lits, m.NVar(p.Index))
			}
		}
	}
	return m.And(lits...), nil
}

// EncodeDisabledRow forbids one joint choice of producers for a port that
// reads several data: ¬(d1 ∧ … ∧ dn).
func (e *DataEncoder) EncodeDisabledRow(s *Space, deciding ir.ComponentID, port string, producers []ir.PortRef) (bdd.Formula, error) {
	if _, ok := s.PortIndex(deciding, port); !ok {
		return bdd.Formula{}, e.unknown(s, deciding, port)
	}
	if len(producers) == 0 {
		return bdd.Formula{}, configErr(ErrCodeUnknownData, string(deciding)+"."+port, "disabled row names no producers")
	}

	m := s.Manager()
	consumer := ir.PortRef{Component: deciding, Port: port}
	seen := make(map[int]bool, len(producers))
	var ds []bdd.Formula
	for _, producer := range producers {
		p, ok := e.Lookup(consumer, producer)
		if !ok {
			if _, live := s.PortIndex(producer.Component, producer.Port); !live {
				return bdd.Formula{}, e.unknown(s, producer.Component, producer.Port)
			}
			return bdd.Formula{}, configErr(ErrCodeUnknownData, producer.String(), "no data pairing with %s", consumer)
		}
		if !seen[p.Index] {
			seen[p.Index] = true
			ds = append(ds, m.Var(p.Index))
		}
	}
	return m.Not(m.And(ds...)), nil
}

func (e *DataEncoder) unknown(s *Space, id ir.ComponentID, port string) error {
	if _, ok := s.Slots(id); !ok {
		return configErr(ErrCodeUnknownComponent, "", "component %s is not registered", id)
	}
	return configErr(ErrCodeUnknownPort, string(id)+"."+port, "not an enforceable port")
}
