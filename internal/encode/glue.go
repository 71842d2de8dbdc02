package encode

import (
	"log/slog"

	"github.com/roach88/interlock/internal/bdd"
	"github.com/roach88/interlock/internal/ir"
)

// GlueFormula encodes every Require and Accept macro of g against the live
// components of s. A nil glue is the neutral constraint.
func GlueFormula(s *Space, g *ir.Glue, logger *slog.Logger) (bdd.Formula, error) {
	m := s.Manager()
	if g == nil {
		return m.True(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	parts := make([]bdd.Formula, 0, len(g.Requires)+len(g.Accepts))
	for _, r := range g.Requires {
		f, err := requireFormula(s, r, logger)
		if err != nil {
			return bdd.Formula{}, err
		}
		parts = append(parts, f)
	}
	for _, a := range g.Accepts {
		f, err := acceptFormula(s, a)
		if err != nil {
			return bdd.Formula{}, err
		}
		parts = append(parts, f)
	}

	f := m.And(parts...)
	if err := m.Err(); err != nil {
		return bdd.Formula{}, err
	}
	return f, nil
}

// PruneGlue returns a copy of g without the parts that refer to types with no
// live instance. A Require whose effect has no instance, or one of whose
// clauses names a cause type with no instance, is dropped; an Accept whose
// effect has no instance is dropped and absent cause types are removed from
// the rest. Membership changes go through it so that the last instance of a
// type can leave without invalidating the glue.
func PruneGlue(s *Space, g *ir.Glue, logger *slog.Logger) *ir.Glue {
	if g == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	live := func(spec ir.PortSpec) bool {
		return len(s.Instances(spec.Type)) > 0
	}

	out := &ir.Glue{Wires: g.Wires}
	for _, r := range g.Requires {
		if !live(r.Effect) {
			continue
		}
		keep := true
		for _, clause := range r.Causes {
			for _, cause := range clause {
				if !live(cause) {
					keep = false
				}
			}
		}
		if !keep {
			logger.Warn("require dropped, a cause type has no instances",
				"effect", r.Effect.String())
			continue
		}
		out.Requires = append(out.Requires, r)
	}
	for _, a := range g.Accepts {
		if !live(a.Effect) {
			continue
		}
		pruned := ir.Accept{Effect: a.Effect}
		for _, cause := range a.Causes {
			if live(cause) {
				pruned.Causes = append(pruned.Causes, cause)
			}
		}
		out.Accepts = append(out.Accepts, pruned)
	}
	return out
}

// checkSpec verifies that a port spec names an enforceable port of a type
// with at least one live instance.
func checkSpec(s *Space, spec ir.PortSpec, missingCode string) error {
	if spec.Type == "" || spec.Port == "" {
		return configErr(missingCode, spec.String(), "port spec needs both a type and a port")
	}
	b, ok := s.TypeBehaviour(spec.Type)
	if !ok || len(s.Instances(spec.Type)) == 0 {
		return configErr(ErrCodeNoInstances, spec.String(), "type %s has no registered instances", spec.Type)
	}
	if !b.IsEnforceable(spec.Port) {
		return configErr(ErrCodeUnknownPort, spec.String(), "type %s has no enforceable port %q", spec.Type, spec.Port)
	}
	return nil
}

func portIndices(s *Space, spec ir.PortSpec, exclude int) []int {
	var out []int
	for _, ref := range s.PortInstances(spec) {
		idx, _ := s.PortIndex(ref.Component, ref.Port)
		if idx != exclude {
			out = append(out, idx)
		}
	}
	return out
}

// requireFormula builds, per effect instance e,
// ¬e ∨ OR(clause) where a clause is the conjunction over its cause specs of
// "exactly k instances of that spec fire". The effect instance itself never
// counts as its own cause.
func requireFormula(s *Space, r ir.Require, logger *slog.Logger) (bdd.Formula, error) {
	if err := checkSpec(s, r.Effect, ErrCodeMissingEffect); err != nil {
		return bdd.Formula{}, err
	}
	if len(r.Causes) == 0 {
		return bdd.Formula{}, configErr(ErrCodeMissingCauses, r.Effect.String(), "require macro has no cause clauses")
	}
	for _, clause := range r.Causes {
		for _, cause := range clause {
			if err := checkSpec(s, cause, ErrCodeMissingCauses); err != nil {
				return bdd.Formula{}, err
			}
		}
	}

	m := s.Manager()
	var parts []bdd.Formula
	for _, effect := range s.PortInstances(r.Effect) {
		eIdx, _ := s.PortIndex(effect.Component, effect.Port)

		clauses := make([]bdd.Formula, 0, len(r.Causes))
		absorbed := false
		for _, clause := range r.Causes {
			specs, counts := ir.Cardinalities(clause)
			terms := make([]bdd.Formula, 0, len(specs))
			for j, spec := range specs {
				insts := portIndices(s, spec, eIdx)
				if len(insts) < counts[j] {
					logger.Warn("require clause absorbed",
						"effect", effect.String(),
						"cause", spec.String(),
						"needed", counts[j],
						"available", len(insts))
					absorbed = true
					break
				}
				terms = append(terms, exactly(m, insts, counts[j]))
			}
			if absorbed {
				break
			}
			clauses = append(clauses, m.And(terms...))
		}
		if absorbed {
			continue
		}
		parts = append(parts, m.Or(m.NVar(eIdx), m.Or(clauses...)))
	}
	return m.And(parts...), nil
}

// acceptFormula builds, per effect instance e, ¬e ∨ AND(¬q) over every live
// enforceable port q other than e whose spec is not listed as a cause.
func acceptFormula(s *Space, a ir.Accept) (bdd.Formula, error) {
	if err := checkSpec(s, a.Effect, ErrCodeMissingEffect); err != nil {
		return bdd.Formula{}, err
	}
	allowed := make(map[ir.PortSpec]bool, len(a.Causes))
	for _, cause := range a.Causes {
		if err := checkSpec(s, cause, ErrCodeMissingCauses); err != nil {
			return bdd.Formula{}, err
		}
		allowed[cause] = true
	}

	m := s.Manager()
	positions := s.PortPositions()
	var parts []bdd.Formula
	for _, effect := range s.PortInstances(a.Effect) {
		eIdx, _ := s.PortIndex(effect.Component, effect.Port)

		var forbidden []bdd.Formula
		for _, q := range positions {
			if q == eIdx {
				continue
			}
			v, _ := s.Var(q)
			if allowed[ir.PortSpec{Type: v.Type, Port: v.Name}] {
				continue
			}
			forbidden = append(forbidden, m.NVar(q))
		}
		parts = append(parts, m.Or(m.NVar(eIdx), m.And(forbidden...)))
	}
	return m.And(parts...), nil
}

// exactly is the disjunction over every k-subset S of positions of
// AND(S) ∧ AND(¬(positions \ S)).
func exactly(m *bdd.Manager, positions []int, k int) bdd.Formula {
	var subsets []bdd.Formula
	combinations(len(positions), k, func(chosen []bool) {
		lits := make([]bdd.Formula, len(positions))
		for i, idx := range positions {
			if chosen[i] {
				lits[i] = m.Var(idx)
			} else {
				lits[i] = m.NVar(idx)
			}
		}
		subsets = append(subsets, m.And(lits...))
	})
	return m.Or(subsets...)
}

// combinations calls fn with a membership mask for every k-subset of n items,
// in lexicographic order of the chosen indices.
func combinations(n, k int, fn func(chosen []bool)) {
	if k < 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	chosen := make([]bool, n)
	for {
		clear(chosen)
		for _, i := range idx {
			chosen[i] = true
		}
		fn(chosen)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
