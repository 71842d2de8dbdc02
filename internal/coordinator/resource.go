package coordinator

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
)

// Allocator answers whether resource requests can be served and records the
// ones that fired.
type Allocator interface {
	Available(resource string) int64
	Commit(resource string, amount int64) error
}

// Releaser is implemented by allocators that take back what a component
// held once it leaves. Allocators without it keep commits for good.
type Releaser interface {
	Release(resource string, amount int64)
}

// CapacityAllocator serves fixed pools of named resources.
type CapacityAllocator struct {
	mu       sync.Mutex
	capacity map[string]int64
	used     map[string]int64
}

// NewCapacityAllocator creates pools with the given capacities.
func NewCapacityAllocator(capacity map[string]int64) *CapacityAllocator {
	return &CapacityAllocator{capacity: maps.Clone(capacity), used: make(map[string]int64)}
}

// Available returns the unallocated amount. Unknown resources have none.
func (a *CapacityAllocator) Available(resource string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capacity[resource] - a.used[resource]
}

// Commit allocates amount units.
func (a *CapacityAllocator) Commit(resource string, amount int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if free := a.capacity[resource] - a.used[resource]; amount > free {
		return fmt.Errorf("resource %s: %d requested, %d available", resource, amount, free)
	}
	a.used[resource] += amount
	return nil
}

// Release returns amount units to the pool.
func (a *CapacityAllocator) Release(resource string, amount int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used[resource] = max(a.used[resource]-amount, 0)
}

// ResourceStage gates ports that request resources. A port asking for more
// than is available is disabled; ports competing for one resource are
// limited so that the interaction never claims more than is available.
// Fired requests are committed after dispatch and held by the component
// until it deregisters.
type ResourceStage struct {
	BaseStage
	alloc Allocator

	mu   sync.Mutex
	held map[ir.ComponentID]map[string]int64
}

// NewResourceStage creates a resource stage over an allocator.
func NewResourceStage(alloc Allocator) *ResourceStage {
	return &ResourceStage{alloc: alloc, held: make(map[ir.ComponentID]map[string]int64)}
}

// Held returns the amounts a component has committed so far.
func (s *ResourceStage) Held(id ir.ComponentID) map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.held[id])
}

// OnDeregister implements Stage. It hands the component's commits back when
// the allocator can take them.
func (s *ResourceStage) OnDeregister(_ context.Context, h Host, id ir.ComponentID) error {
	s.mu.Lock()
	held := s.held[id]
	delete(s.held, id)
	s.mu.Unlock()

	rel, ok := s.alloc.(Releaser)
	if !ok {
		return nil
	}
	for _, res := range slices.Sorted(maps.Keys(held)) {
		rel.Release(res, held[res])
		h.Logger().Debug("resource released", "component", id, "resource", res, "amount", held[res])
	}
	return nil
}

func (*ResourceStage) Name() string { return "resource" }

// OnInform implements Stage.
func (s *ResourceStage) OnInform(_ context.Context, h Host, id ir.ComponentID, r *Report) error {
	b, ok := h.Behaviour(id)
	if !ok {
		return nil
	}
	for _, port := range r.Enabled(b) {
		req, ok := b.Resources[port]
		if !ok {
			continue
		}
		if avail := s.alloc.Available(req.Resource); req.Amount > avail {
			h.Logger().Debug("resource request refused",
				"component", id,
				"port", port,
				"resource", req.Resource,
				"amount", req.Amount,
				"available", avail)
			r.Disable(port)
		}
	}
	return nil
}

// BeforeSolve implements Stage.
func (s *ResourceStage) BeforeSolve(_ context.Context, h Host) error {
	claims := make(map[string][]engine.PortClaim)
	for _, id := range h.Members() {
		b, ok := h.Behaviour(id)
		if !ok {
			continue
		}
		r, ok := h.Report(id)
		if !ok {
			continue
		}
		for _, port := range r.Enabled(b) {
			if req, ok := b.Resources[port]; ok && req.Amount > 0 {
				claims[req.Resource] = append(claims[req.Resource], engine.PortClaim{
					Port:   ir.PortRef{Component: id, Port: port},
					Amount: req.Amount,
				})
			}
		}
	}

	for _, res := range slices.Sorted(maps.Keys(claims)) {
		cs := claims[res]
		if len(cs) < 2 {
			continue
		}
		if err := h.Engine().LimitPorts(cs, s.alloc.Available(res)); err != nil {
			return fmt.Errorf("limit %s: %w", res, err)
		}
	}
	return nil
}

// OnDispatch implements Stage.
func (s *ResourceStage) OnDispatch(_ context.Context, h Host, in *ir.Interaction) error {
	for _, f := range in.Firings {
		b, ok := h.Behaviour(f.Component)
		if !ok {
			continue
		}
		req, ok := b.Resources[f.Port]
		if !ok {
			continue
		}
		if err := s.alloc.Commit(req.Resource, req.Amount); err != nil {
			return fmt.Errorf("commit %s.%s: %w", f.Component, f.Port, err)
		}
		s.mu.Lock()
		if s.held[f.Component] == nil {
			s.held[f.Component] = make(map[string]int64)
		}
		s.held[f.Component][req.Resource] += req.Amount
		s.mu.Unlock()
	}
	return nil
}
