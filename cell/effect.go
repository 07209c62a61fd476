package cell

import "fmt"

// Effect is a side-effect subscriber. It runs once at registration to
// establish its dependency set, then again after every write that
// changes one of its tracked dependencies. Effects never produce a
// value consumed by other nodes.
//
// Callback errors and panics do not propagate: they are routed to the
// Runtime error hook so a failing effect cannot break the graph.
type Effect struct {
	rt          *Runtime
	fn          func() error
	allowWrites bool
	state       cacheState
	sources     []source
	stopped     bool
}

type EffectOption func(*Effect)

// WithWrites grants the effect permission to write cells. Such effects
// must only write cells outside their own read set; the canonical use
// is mirroring one store's data into another.
func WithWrites() EffectOption {
	return func(e *Effect) { e.allowWrites = true }
}

// NewEffect registers fn and runs it immediately. The returned stop
// function unsubscribes the effect; the stores never call it, their
// lifetime is the process lifetime.
func NewEffect(rt *Runtime, fn func() error, opts ...EffectOption) (stop func()) {
	e := &Effect{rt: rt, fn: fn}
	for _, opt := range opts {
		opt(e)
	}
	e.run()
	return e.stop
}

func (e *Effect) markStale(st cacheState) {
	if e.stopped || e.state >= st {
		return
	}
	if e.state == cacheClean {
		e.rt.enqueue(e)
	}
	e.state = st
}

func (e *Effect) updateIfNecessary() {
	if e.stopped {
		e.state = cacheClean
		return
	}
	if e.state == cacheCheck {
		for _, s := range e.sources {
			s.updateIfNecessary()
			if e.state == cacheDirty {
				break
			}
		}
	}
	if e.state == cacheDirty {
		e.run()
	}
	e.state = cacheClean
}

func (e *Effect) run() {
	prevFrame := e.rt.active
	prevEffect := e.rt.activeEffect
	captured := newFrame()
	e.rt.active = captured
	e.rt.activeEffect = e
	defer func() {
		e.rt.active = prevFrame
		e.rt.activeEffect = prevEffect
		e.sources = rewire(e, e.sources, captured)
		e.state = cacheClean
		if r := recover(); r != nil {
			e.rt.reportError(fmt.Errorf("effect panic: %v", r))
		}
	}()

	if err := e.fn(); err != nil {
		e.rt.reportError(fmt.Errorf("effect: %w", err))
	}
}

func (e *Effect) stop() {
	if e.stopped {
		return
	}
	e.stopped = true
	for _, s := range e.sources {
		s.detach(e)
	}
	e.sources = nil
}
