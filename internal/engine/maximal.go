package engine

import (
	"math/bits"
	"slices"

	"github.com/roach88/interlock/internal/bdd"
)

// portSet is a bitset over the live port positions of one cycle.
type portSet []uint64

func newPortSet(n int) portSet {
	return make(portSet, (n+63)/64)
}

func (s portSet) add(i int) {
	s[i/64] |= 1 << (uint(i) % 64)
}

func (s portSet) has(i int) bool {
	return s[i/64]&(1<<(uint(i)%64)) != 0
}

func (s portSet) count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

func (s portSet) equal(o portSet) bool {
	return slices.Equal(s, o)
}

// subsetOf reports s ⊆ o.
func (s portSet) subsetOf(o portSet) bool {
	for i, w := range s {
		if w&^o[i] != 0 {
			return false
		}
	}
	return true
}

// candidate is a satisfying cube together with its active port set.
type candidate struct {
	cube   bdd.Cube
	active portSet
	size   int
	order  int
}

// maximalCandidates reduces cubes to the antichain of maximal active port
// sets. Only the given port positions take part in the comparison; state
// and d-variables never do. A port left as don't-care counts as active.
// Cubes with equal port sets are merged, keeping the first one enumerated.
// The result keeps enumeration order.
func maximalCandidates(cubes []bdd.Cube, ports []int) []candidate {
	all := make([]candidate, 0, len(cubes))
	for i, c := range cubes {
		active := newPortSet(len(ports))
		for j, idx := range ports {
			if c.Active(idx) {
				active.add(j)
			}
		}

		dup := false
		for _, seen := range all {
			if seen.active.equal(active) {
				dup = true
				break
			}
		}
		if !dup {
			all = append(all, candidate{cube: c, active: active, size: active.count(), order: i})
		}
	}

	// Larger sets first: a set can only be dominated by a strictly larger one.
	bySize := slices.Clone(all)
	slices.SortStableFunc(bySize, func(a, b candidate) int {
		return b.size - a.size
	})

	var kept []candidate
	for _, c := range bySize {
		dominated := false
		for _, k := range kept {
			if k.size > c.size && c.active.subsetOf(k.active) {
				dominated = true
				break
			}
		}
		if !dominated {
			kept = append(kept, c)
		}
	}

	slices.SortFunc(kept, func(a, b candidate) int {
		return a.order - b.order
	})
	return kept
}
