package coordinator

// barrier counts the live components that have informed this cycle. It is
// guarded by the coordinator mutex; release is the only part touched
// without it, by the solver's select.
type barrier struct {
	parties int
	arrived int
	release chan struct{}
}

func newBarrier() *barrier {
	return &barrier{release: make(chan struct{}, 1)}
}

// join adds a party that has not informed yet.
func (b *barrier) join() {
	b.parties++
}

// leave removes a party, discounting its arrival if it had informed.
func (b *barrier) leave(informed bool) {
	b.parties--
	if informed {
		b.arrived--
	}
	b.signalIfReady()
}

// arrive records one inform.
func (b *barrier) arrive() {
	b.arrived++
	b.signalIfReady()
}

// ready reports whether every party has arrived. A barrier with no parties
// is never ready: there is nothing to solve for.
func (b *barrier) ready() bool {
	return b.parties > 0 && b.arrived >= b.parties
}

// reset starts the next cycle and drains a stale release signal.
func (b *barrier) reset() {
	b.arrived = 0
	select {
	case <-b.release:
	default:
	}
}

func (b *barrier) signalIfReady() {
	if !b.ready() {
		return
	}
	select {
	case b.release <- struct{}{}:
	default:
	}
}
