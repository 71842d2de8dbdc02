package bdd

import "fmt"

// Ref is a stable handle to a retained formula.
type Ref uint64

// NoRef is the zero handle. Releasing it is a no-op.
const NoRef Ref = 0

// Retain keeps f alive in the arena until it is released.
func (m *Manager) Retain(f Formula) Ref {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRef++
	m.slots[m.nextRef] = f.n
	return m.nextRef
}

// Get returns the formula behind a handle.
func (m *Manager) Get(r Ref) (Formula, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.slots[r]
	if !ok {
		return Formula{}, fmt.Errorf("formula ref %d is not retained", r)
	}
	return Formula{n: n}, nil
}

// Release drops a handle. Released handles are never reissued.
func (m *Manager) Release(r Ref) {
	if r == NoRef {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, r)
}

// Replace releases old and retains f, returning the new handle.
func (m *Manager) Replace(old Ref, f Formula) Ref {
	m.Release(old)
	return m.Retain(f)
}

// Retained returns the number of live handles.
func (m *Manager) Retained() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
