package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/interlock/internal/ir"
)

// Update adds Delta to a local variable whenever Port fires.
type Update struct {
	Port     string
	Variable string
	Delta    int64
}

// Component is a compiled component type: its behaviour plus the local
// variables and updates an automaton instance of it starts with.
type Component struct {
	Behaviour *ir.Behaviour
	Variables ir.Object
	Updates   []Update
}

// CompileComponent parses a CUE value into a Component.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the component struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`component: Counter: { ... }`)
//	c, err := CompileComponent(v.LookupPath(cue.ParsePath("component.Counter")))
func CompileComponent(v cue.Value) (*Component, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	b := &ir.Behaviour{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		b.Type = labels[len(labels)-1].String()
	}

	var err error
	if b.States, err = stringList(v, "states"); err != nil {
		return nil, err
	}
	if len(b.States) == 0 {
		return nil, &CompileError{Field: "states", Message: "at least one state is required", Pos: v.Pos()}
	}

	initialVal := v.LookupPath(cue.ParsePath("initial"))
	if initialVal.Exists() {
		if b.Initial, err = initialVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	} else {
		b.Initial = b.States[0]
	}

	if b.Ports, err = parsePorts(v); err != nil {
		return nil, err
	}
	if b.Transitions, err = parseTransitions(v); err != nil {
		return nil, err
	}
	if b.DataIn, err = parseData(v, "data_in"); err != nil {
		return nil, err
	}
	if b.DataOut, err = parseData(v, "data_out"); err != nil {
		return nil, err
	}
	if b.GuardData, err = stringListMap(v, "guard_data"); err != nil {
		return nil, err
	}
	if b.TransitionData, err = stringListMap(v, "transition_data"); err != nil {
		return nil, err
	}
	if b.Guards, err = parseGuards(v); err != nil {
		return nil, err
	}
	if b.Resources, err = parseResources(v); err != nil {
		return nil, err
	}

	c := &Component{Behaviour: b}
	if c.Variables, err = parseVariables(v); err != nil {
		return nil, err
	}
	if c.Updates, err = parseUpdates(v); err != nil {
		return nil, err
	}
	return c, nil
}

// parsePorts reads `ports: { name: "enforceable" }` keeping declaration order.
func parsePorts(v cue.Value) ([]ir.PortDecl, error) {
	portsVal := v.LookupPath(cue.ParsePath("ports"))
	if !portsVal.Exists() {
		return nil, nil
	}
	iter, err := portsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var ports []ir.PortDecl
	for iter.Next() {
		kind, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch ir.PortKind(kind) {
		case ir.PortEnforceable, ir.PortSpontaneous, ir.PortInternal:
		default:
			return nil, &CompileError{
				Field:   "ports." + iter.Label(),
				Message: fmt.Sprintf("unknown port kind %q", kind),
				Pos:     iter.Value().Pos(),
			}
		}
		ports = append(ports, ir.PortDecl{ID: iter.Label(), Kind: ir.PortKind(kind)})
	}
	return ports, nil
}

func parseTransitions(v cue.Value) ([]ir.TransitionDecl, error) {
	transVal := v.LookupPath(cue.ParsePath("transitions"))
	if !transVal.Exists() {
		return nil, nil
	}
	iter, err := transVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.TransitionDecl
	for iter.Next() {
		tv := iter.Value()
		var t ir.TransitionDecl
		for _, f := range []struct {
			name     string
			dst      *string
			required bool
		}{
			{"port", &t.Port, true},
			{"from", &t.From, true},
			{"to", &t.To, true},
			{"guard", &t.Guard, false},
		} {
			fv := tv.LookupPath(cue.ParsePath(f.name))
			if !fv.Exists() {
				if f.required {
					return nil, &CompileError{
						Field:   "transitions." + f.name,
						Message: f.name + " is required",
						Pos:     tv.Pos(),
					}
				}
				continue
			}
			if *f.dst, err = fv.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// parseData reads a data block. A datum is either a bare CUE type
// (`count: int`) or a struct naming its type and export ports
// (`count: {type: int, ports: ["tick"]}`).
func parseData(v cue.Value, field string) ([]ir.DataDecl, error) {
	dataVal := v.LookupPath(cue.ParsePath(field))
	if !dataVal.Exists() {
		return nil, nil
	}
	iter, err := dataVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.DataDecl
	for iter.Next() {
		d := ir.DataDecl{Name: iter.Label()}
		dv := iter.Value()
		typeVal := dv.LookupPath(cue.ParsePath("type"))
		if dv.IncompleteKind() == cue.StructKind && typeVal.Exists() {
			if d.Type, err = extractTypeName(typeVal); err != nil {
				return nil, err
			}
			if d.Ports, err = stringList(dv, "ports"); err != nil {
				return nil, err
			}
		} else if d.Type, err = extractTypeName(dv); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func parseGuards(v cue.Value) (map[string]ir.GuardDecl, error) {
	guardsVal := v.LookupPath(cue.ParsePath("guards"))
	if !guardsVal.Exists() {
		return nil, nil
	}
	iter, err := guardsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[string]ir.GuardDecl)
	for iter.Next() {
		gv := iter.Value()
		var g ir.GuardDecl
		if g.Data, err = gv.LookupPath(cue.ParsePath("data")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if g.Op, err = gv.LookupPath(cue.ParsePath("op")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if g.Value, err = gv.LookupPath(cue.ParsePath("value")).Int64(); err != nil {
			return nil, formatCUEError(err)
		}
		out[iter.Label()] = g
	}
	return out, nil
}

func parseResources(v cue.Value) (map[string]ir.ResourceRequest, error) {
	resVal := v.LookupPath(cue.ParsePath("resources"))
	if !resVal.Exists() {
		return nil, nil
	}
	iter, err := resVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[string]ir.ResourceRequest)
	for iter.Next() {
		rv := iter.Value()
		var r ir.ResourceRequest
		if r.Resource, err = rv.LookupPath(cue.ParsePath("resource")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if r.Amount, err = rv.LookupPath(cue.ParsePath("amount")).Int64(); err != nil {
			return nil, formatCUEError(err)
		}
		out[iter.Label()] = r
	}
	return out, nil
}

// parseVariables reads concrete initial values. Floats are rejected.
func parseVariables(v cue.Value) (ir.Object, error) {
	out := make(ir.Object)
	varsVal := v.LookupPath(cue.ParsePath("variables"))
	if !varsVal.Exists() {
		return out, nil
	}
	iter, err := varsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		fv := iter.Value()
		switch fv.Kind() {
		case cue.IntKind:
			n, err := fv.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out[iter.Label()] = ir.Int(n)
		case cue.StringKind:
			s, err := fv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out[iter.Label()] = ir.String(s)
		case cue.BoolKind:
			b, err := fv.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out[iter.Label()] = ir.Bool(b)
		default:
			return nil, &CompileError{
				Field:   "variables." + iter.Label(),
				Message: fmt.Sprintf("variable must be a concrete int, string or bool, got %v", fv.IncompleteKind()),
				Pos:     fv.Pos(),
			}
		}
	}
	return out, nil
}

// parseUpdates reads `updates: { port: { variable: delta } }`.
func parseUpdates(v cue.Value) ([]Update, error) {
	updVal := v.LookupPath(cue.ParsePath("updates"))
	if !updVal.Exists() {
		return nil, nil
	}
	ports, err := updVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []Update
	for ports.Next() {
		vars, err := ports.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for vars.Next() {
			delta, err := vars.Value().Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out = append(out, Update{Port: ports.Label(), Variable: vars.Label(), Delta: delta})
		}
	}
	return out, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func stringListMap(v cue.Value, field string) (map[string][]string, error) {
	mapVal := v.LookupPath(cue.ParsePath(field))
	if !mapVal.Exists() {
		return nil, nil
	}
	iter, err := mapVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string][]string)
	for iter.Next() {
		list, err := stringList(mapVal, iter.Label())
		if err != nil {
			return nil, err
		}
		out[iter.Label()] = list
	}
	return out, nil
}

// extractTypeName converts a CUE type to a data type name.
func extractTypeName(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.BoolKind:
		return "bool", nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError is a compilation failure with the CUE position it stems from.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
