package bdd

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, varnum int) *Manager {
	t.Helper()
	m, err := New(varnum, WithNodeSize(1000), WithCacheSize(500))
	require.NoError(t, err)
	return m
}

func TestConstants(t *testing.T) {
	m := newManager(t, 2)

	assert.True(t, m.IsTrue(m.True()))
	assert.True(t, m.IsFalse(m.False()))
	assert.False(t, m.IsTrue(m.Var(0)))
	assert.False(t, m.IsFalse(m.Var(0)))

	assert.True(t, m.IsTrue(m.And()), "empty conjunction is true")
	assert.True(t, m.IsFalse(m.Or()), "empty disjunction is false")
}

func TestConnectives(t *testing.T) {
	m := newManager(t, 2)
	a, b := m.Var(0), m.Var(1)

	assert.True(t, m.IsFalse(m.And(a, m.Not(a))))
	assert.True(t, m.IsTrue(m.Or(a, m.NVar(0))))
	assert.True(t, m.Same(m.Imp(a, b), m.Or(m.Not(a), b)))
	assert.True(t, m.Same(m.Not(m.And(a, b)), m.Or(m.Not(a), m.Not(b))))
	assert.Equal(t, big.NewInt(1), m.Satcount(m.And(a, b)))
	assert.Equal(t, big.NewInt(3), m.Satcount(m.Or(a, b)))
	require.NoError(t, m.Err())
}

func TestGrowIsMonotonic(t *testing.T) {
	m := newManager(t, 0)
	assert.Equal(t, 1, m.Varnum())

	require.NoError(t, m.Grow(4))
	assert.Equal(t, 4, m.Varnum())

	require.NoError(t, m.Grow(2))
	assert.Equal(t, 4, m.Varnum(), "variable space never shrinks")

	f := m.And(m.Var(3), m.NVar(0))
	assert.True(t, f.Valid())
	require.NoError(t, m.Err())
}

func TestFormulasSurviveGrowth(t *testing.T) {
	m := newManager(t, 2)
	f := m.And(m.Var(0), m.NVar(1))
	require.NoError(t, m.Grow(5))

	g := m.And(m.Var(0), m.NVar(1))
	assert.True(t, m.Same(f, g))
}

func TestCubes(t *testing.T) {
	m := newManager(t, 3)

	// a ∧ (b ∨ c)
	f := m.And(m.Var(0), m.Or(m.Var(1), m.Var(2)))
	cubes, err := m.Cubes(f, 0)
	require.NoError(t, err)
	require.NotEmpty(t, cubes)

	var total int64
	for _, c := range cubes {
		require.Len(t, c, 3)
		assert.Equal(t, One, c.At(0))
		assert.True(t, c.Active(1) || c.Active(2))

		free := int64(1)
		for _, v := range c {
			if v == DontCare {
				free *= 2
			}
		}
		total += free
	}
	assert.Equal(t, m.Satcount(f).Int64(), total, "cubes cover exactly the models")
}

func TestCubesOfFalse(t *testing.T) {
	m := newManager(t, 2)
	cubes, err := m.Cubes(m.False(), 0)
	require.NoError(t, err)
	assert.Empty(t, cubes)
}

func TestCubesOfTrueIsAllDontCare(t *testing.T) {
	m := newManager(t, 2)
	cubes, err := m.Cubes(m.True(), 0)
	require.NoError(t, err)
	require.Len(t, cubes, 1)
	assert.Equal(t, "--", cubes[0].String())
}

func TestCubesLimit(t *testing.T) {
	m := newManager(t, 4)
	// parity has no don't-cares to merge, so it yields 8 cubes
	f := m.Var(0)
	for i := 1; i < 4; i++ {
		x := m.Var(i)
		f = m.Or(m.And(f, m.Not(x)), m.And(m.Not(f), x))
	}

	cubes, err := m.Cubes(f, 3)
	require.ErrorIs(t, err, ErrTooManyCubes)
	assert.Nil(t, cubes, "a truncated enumeration is never returned")

	_, err = m.Cubes(f, 7)
	require.ErrorIs(t, err, ErrTooManyCubes)

	cubes, err = m.Cubes(f, 8)
	require.NoError(t, err)
	assert.Len(t, cubes, 8)
}

func TestCubesInvalidFormula(t *testing.T) {
	m := newManager(t, 1)
	_, err := m.Cubes(Formula{}, 0)
	require.Error(t, err)
}

func TestCubeAccessors(t *testing.T) {
	c := Cube{One, Zero, DontCare}
	assert.True(t, c.Active(0))
	assert.False(t, c.Active(1))
	assert.True(t, c.Active(2))
	assert.Equal(t, DontCare, c.At(7))
	assert.Equal(t, "10-", c.String())
}

func TestArena(t *testing.T) {
	m := newManager(t, 2)
	assert.Equal(t, 0, m.Retained())

	r1 := m.Retain(m.Var(0))
	r2 := m.Retain(m.Var(1))
	assert.NotEqual(t, r1, r2)
	assert.Equal(t, 2, m.Retained())

	f, err := m.Get(r1)
	require.NoError(t, err)
	assert.True(t, m.Same(f, m.Var(0)))

	r3 := m.Replace(r1, m.True())
	assert.NotEqual(t, r1, r3, "released refs are never reissued")
	assert.Equal(t, 2, m.Retained())

	_, err = m.Get(r1)
	require.Error(t, err)

	m.Release(r2)
	m.Release(r3)
	m.Release(NoRef)
	assert.Equal(t, 0, m.Retained())
}

func TestConcurrentUse(t *testing.T) {
	m := newManager(t, 8)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				f := m.And(m.Var(w), m.NVar((w+1)%8))
				r := m.Retain(f)
				m.Release(r)
			}
		}(w)
	}
	wg.Wait()

	require.NoError(t, m.Err())
	assert.Equal(t, 0, m.Retained())
}
