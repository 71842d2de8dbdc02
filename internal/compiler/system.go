package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/interlock/internal/ir"
)

// System is a compiled system description: component types in declaration
// order, how many instances of each to start, the glue over them and the
// capacity of each shared resource.
type System struct {
	Components []*Component
	Instances  map[string]int
	Glue       *ir.Glue
	Capacities map[string]int64
}

// Component returns the compiled component type typ.
func (s *System) Component(typ string) (*Component, bool) {
	for _, c := range s.Components {
		if c.Behaviour.Type == typ {
			return c, true
		}
	}
	return nil, false
}

// InstanceCount returns how many instances of typ to start. Types without
// an `instances` entry start one.
func (s *System) InstanceCount(typ string) int {
	if n, ok := s.Instances[typ]; ok {
		return n
	}
	return 1
}

// CompileSystem compiles the top-level `component`, `instances`, `glue` and
// `capacity` fields of v. A missing glue compiles to an empty one.
func CompileSystem(v cue.Value) (*System, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	sys := &System{
		Instances:  make(map[string]int),
		Glue:       &ir.Glue{},
		Capacities: make(map[string]int64),
	}

	compsVal := v.LookupPath(cue.ParsePath("component"))
	if !compsVal.Exists() {
		return nil, &CompileError{Field: "component", Message: "at least one component is required", Pos: v.Pos()}
	}
	iter, err := compsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		c, err := CompileComponent(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", iter.Label(), err)
		}
		sys.Components = append(sys.Components, c)
	}

	instVal := v.LookupPath(cue.ParsePath("instances"))
	if instVal.Exists() {
		iter, err := instVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			n, err := iter.Value().Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			sys.Instances[iter.Label()] = int(n)
		}
	}

	capVal := v.LookupPath(cue.ParsePath("capacity"))
	if capVal.Exists() {
		iter, err := capVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			n, err := iter.Value().Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			sys.Capacities[iter.Label()] = n
		}
	}

	glueVal := v.LookupPath(cue.ParsePath("glue"))
	if glueVal.Exists() {
		if sys.Glue, err = CompileGlue(glueVal); err != nil {
			return nil, err
		}
	}
	return sys, nil
}
