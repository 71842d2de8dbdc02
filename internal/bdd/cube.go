package bdd

import "strings"

// Value is a ternary variable assignment.
type Value int8

const (
	DontCare Value = -1
	Zero     Value = 0
	One      Value = 1
)

// Cube is a ternary assignment over every variable of the manager.
type Cube []Value

// At returns the assignment of variable i. Variables beyond the cube are
// don't-cares.
func (c Cube) At(i int) Value {
	if i < 0 || i >= len(c) {
		return DontCare
	}
	return c[i]
}

// Active reports whether variable i may be true in this cube: it is either
// fixed to one or left free.
func (c Cube) Active(i int) bool {
	return c.At(i) != Zero
}

// String renders the cube as a string of 0, 1 and -.
func (c Cube) String() string {
	var b strings.Builder
	for _, v := range c {
		switch v {
		case One:
			b.WriteByte('1')
		case Zero:
			b.WriteByte('0')
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
