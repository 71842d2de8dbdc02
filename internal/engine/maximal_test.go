package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/interlock/internal/bdd"
)

func cube(vals ...bdd.Value) bdd.Cube {
	return bdd.Cube(vals)
}

const (
	dc  = bdd.DontCare
	off = bdd.Zero
	on  = bdd.One
)

func TestMaximalCandidatesAntichain(t *testing.T) {
	// positions 0..2 are ports, 3 is a state variable
	cubes := []bdd.Cube{
		cube(on, off, off, on),
		cube(on, on, off, on),
		cube(off, off, on, on),
		cube(off, off, off, on),
	}
	got := maximalCandidates(cubes, []int{0, 1, 2})
	assert.Len(t, got, 2)
	assert.Equal(t, 1, got[0].order)
	assert.Equal(t, 2, got[1].order)
}

func TestMaximalCandidatesDontCareCountsAsActive(t *testing.T) {
	cubes := []bdd.Cube{
		cube(on, off),
		cube(on, dc),
	}
	got := maximalCandidates(cubes, []int{0, 1})
	assert.Len(t, got, 1)
	assert.Equal(t, 2, got[0].size)
}

func TestMaximalCandidatesMergesEqualPortSets(t *testing.T) {
	// equal on ports, different on the state variable at 1
	cubes := []bdd.Cube{
		cube(on, off),
		cube(on, on),
	}
	got := maximalCandidates(cubes, []int{0})
	assert.Len(t, got, 1)
	assert.Equal(t, 0, got[0].order)
}

func TestMaximalCandidatesEmpty(t *testing.T) {
	assert.Empty(t, maximalCandidates(nil, []int{0}))

	got := maximalCandidates([]bdd.Cube{cube(off)}, []int{0})
	assert.Len(t, got, 1)
	assert.Equal(t, 0, got[0].size)
}

func TestPortSet(t *testing.T) {
	a := newPortSet(70)
	b := newPortSet(70)
	a.add(3)
	a.add(68)
	b.add(3)
	assert.True(t, a.has(68))
	assert.False(t, a.has(67))
	assert.Equal(t, 2, a.count())
	assert.True(t, b.subsetOf(a))
	assert.False(t, a.subsetOf(b))
	assert.False(t, a.equal(b))
}
