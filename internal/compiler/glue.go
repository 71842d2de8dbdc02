package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/interlock/internal/ir"
)

// CompileGlue parses a `glue:` CUE value into an ir.Glue.
//
//	glue: {
//		require: [{effect: "A.a", causes: [["B.b"], ["C.c", "C.c"]]}]
//		accept:  [{effect: "A.a", causes: ["B.b", "C.c"]}]
//		wires:   [{from: "Counter.count", to: "Sampler.count"}]
//	}
func CompileGlue(v cue.Value) (*ir.Glue, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	g := &ir.Glue{}
	var err error
	if g.Requires, err = parseRequires(v); err != nil {
		return nil, err
	}
	if g.Accepts, err = parseAccepts(v); err != nil {
		return nil, err
	}
	if g.Wires, err = parseWires(v); err != nil {
		return nil, err
	}
	return g, nil
}

func parseRequires(v cue.Value) ([]ir.Require, error) {
	reqVal := v.LookupPath(cue.ParsePath("require"))
	if !reqVal.Exists() {
		return nil, nil
	}
	iter, err := reqVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.Require
	for iter.Next() {
		rv := iter.Value()
		effect, err := portSpecField(rv, "require.effect")
		if err != nil {
			return nil, err
		}
		r := ir.Require{Effect: effect}

		causesVal := rv.LookupPath(cue.ParsePath("causes"))
		if !causesVal.Exists() {
			return nil, &CompileError{Field: "require.causes", Message: "causes are required", Pos: rv.Pos()}
		}
		clauses, err := causesVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for clauses.Next() {
			clause, err := portSpecList(clauses.Value(), "require.causes")
			if err != nil {
				return nil, err
			}
			r.Causes = append(r.Causes, clause)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseAccepts(v cue.Value) ([]ir.Accept, error) {
	accVal := v.LookupPath(cue.ParsePath("accept"))
	if !accVal.Exists() {
		return nil, nil
	}
	iter, err := accVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.Accept
	for iter.Next() {
		av := iter.Value()
		effect, err := portSpecField(av, "accept.effect")
		if err != nil {
			return nil, err
		}
		a := ir.Accept{Effect: effect, Causes: []ir.PortSpec{}}
		causesVal := av.LookupPath(cue.ParsePath("causes"))
		if causesVal.Exists() {
			if a.Causes, err = portSpecList(causesVal, "accept.causes"); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func parseWires(v cue.Value) ([]ir.Wire, error) {
	wiresVal := v.LookupPath(cue.ParsePath("wires"))
	if !wiresVal.Exists() {
		return nil, nil
	}
	iter, err := wiresVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.Wire
	for iter.Next() {
		wv := iter.Value()
		from, err := dataSpecField(wv, "from")
		if err != nil {
			return nil, err
		}
		to, err := dataSpecField(wv, "to")
		if err != nil {
			return nil, err
		}
		out = append(out, ir.Wire{From: from, To: to})
	}
	return out, nil
}

func portSpecField(v cue.Value, field string) (ir.PortSpec, error) {
	fv := v.LookupPath(cue.ParsePath("effect"))
	if !fv.Exists() {
		return ir.PortSpec{}, &CompileError{Field: field, Message: "effect is required", Pos: v.Pos()}
	}
	return portSpec(fv, field)
}

func portSpecList(v cue.Value, field string) ([]ir.PortSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := []ir.PortSpec{}
	for iter.Next() {
		p, err := portSpec(iter.Value(), field)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func portSpec(v cue.Value, field string) (ir.PortSpec, error) {
	s, err := v.String()
	if err != nil {
		return ir.PortSpec{}, formatCUEError(err)
	}
	p, err := ir.ParsePortSpec(s)
	if err != nil {
		return ir.PortSpec{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return p, nil
}

func dataSpecField(v cue.Value, field string) (ir.DataSpec, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return ir.DataSpec{}, &CompileError{Field: "wires." + field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return ir.DataSpec{}, formatCUEError(err)
	}
	d, err := ir.ParseDataSpec(s)
	if err != nil {
		return ir.DataSpec{}, &CompileError{Field: "wires." + field, Message: err.Error(), Pos: fv.Pos()}
	}
	return d, nil
}
