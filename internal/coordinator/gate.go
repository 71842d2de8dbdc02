package coordinator

import (
	"sync"

	"github.com/roach88/interlock/internal/ir"
)

type requestKind int

const (
	requestRegister requestKind = iota + 1
	requestDeregister
)

func (k requestKind) String() string {
	switch k {
	case requestRegister:
		return "register"
	case requestDeregister:
		return "deregister"
	default:
		return "unknown"
	}
}

// membershipRequest is a registration or deregistration waiting for the
// solver to apply it between cycles. done receives exactly one result.
type membershipRequest struct {
	kind      requestKind
	id        ir.ComponentID
	component Component
	behaviour *ir.Behaviour
	done      chan error
}

func newRequest(kind requestKind, id ir.ComponentID, c Component, b *ir.Behaviour) *membershipRequest {
	return &membershipRequest{kind: kind, id: id, component: c, behaviour: b, done: make(chan error, 1)}
}

// gateQueue is the FIFO of pending membership requests.
//
// Components enqueue from any goroutine; only the solver dequeues. The
// buffered signal channel lets the solver select on it next to the cycle
// barrier and its context.
type gateQueue struct {
	mu       sync.Mutex
	requests []*membershipRequest
	closed   bool
	signal   chan struct{}
}

func newGateQueue() *gateQueue {
	return &gateQueue{
		requests: make([]*membershipRequest, 0, 8),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request. Returns false if the gate is closed.
func (q *gateQueue) Enqueue(r *membershipRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.requests = append(q.requests, r)

	// buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front request without blocking.
func (q *gateQueue) TryDequeue() (*membershipRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return nil, false
	}
	r := q.requests[0]
	q.requests[0] = nil
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

// Wait returns a channel that signals when requests may be available.
func (q *gateQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending requests.
func (q *gateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close rejects further requests and returns the ones still pending.
func (q *gateQueue) Close() []*membershipRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.signal)

	pending := q.requests
	q.requests = nil
	return pending
}
