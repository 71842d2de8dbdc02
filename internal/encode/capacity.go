package encode

import "github.com/roach88/interlock/internal/bdd"

// Term is one port's claim on a shared quantity.
type Term struct {
	Index  int
	Amount int64
}

// AtMost encodes "the amounts of the active terms sum to at most capacity".
// It is the usual pseudo-boolean construction, memoised on (term, remaining).
func AtMost(m *bdd.Manager, terms []Term, capacity int64) bdd.Formula {
	if capacity < 0 {
		return m.False()
	}

	type key struct {
		i   int
		rem int64
	}
	memo := make(map[key]bdd.Formula)

	var build func(i int, rem int64) bdd.Formula
	build = func(i int, rem int64) bdd.Formula {
		if i == len(terms) {
			return m.True()
		}
		k := key{i: i, rem: rem}
		if f, ok := memo[k]; ok {
			return f
		}

		t := terms[i]
		off := m.And(m.NVar(t.Index), build(i+1, rem))
		f := off
		if t.Amount <= rem {
			on := m.And(m.Var(t.Index), build(i+1, rem-t.Amount))
			f = m.Or(off, on)
		}
		memo[k] = f
		return f
	}
	return build(0, capacity)
}
