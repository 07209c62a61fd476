// Package cell is a small reactive graph: writable cells, memoized
// derivations and side-effect subscribers, with dependencies discovered
// dynamically while a computation runs.
//
// The graph is pull-with-push-invalidation: a write marks everything
// downstream stale, reads recompute lazily and re-memoize. Effects run
// synchronously after the write that invalidated them completes.
//
// A Runtime and every node attached to it belong to a single goroutine.
// Writes from timers or other goroutines must be funneled through the
// owning goroutine by the caller.
package cell

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
)

// ErrIllegalWrite is reported when an effect without write permission
// attempts to write a cell.
var ErrIllegalWrite = errors.New("cell: write from read-only effect")

type cacheState uint8

const (
	cacheClean cacheState = iota // value is valid
	cacheCheck                   // an upstream node may have changed, ask before recomputing
	cacheDirty                   // an upstream value did change, recompute on next read
)

// source is the dependency side of a graph node: anything a computation
// can read and subscribe to.
type source interface {
	updateIfNecessary()
	attach(observer)
	detach(observer)
}

// observer is the subscriber side: anything re-evaluated when a source
// it last read from changes.
type observer interface {
	markStale(cacheState)
}

// frame records the sources read during one evaluation. The seen set
// deduplicates repeated reads of the same source; order preserves the
// read order for the cheap stale check afterwards.
type frame struct {
	seen  mapset.Set[source]
	order []source
}

func newFrame() *frame {
	return &frame{seen: mapset.NewSet[source]()}
}

// Runtime owns one reactive graph. It carries the ambient "current
// evaluation" frame that cells consult on read to register dependents,
// the batch depth, and the queue of effects awaiting a flush.
type Runtime struct {
	active       *frame
	activeEffect *Effect
	paused       int
	batchDepth   int
	flushing     bool
	pending      []*Effect

	log     zerolog.Logger
	onError func(error)
}

type RuntimeOption func(*Runtime)

func WithLogger(log zerolog.Logger) RuntimeOption {
	return func(rt *Runtime) { rt.log = log }
}

// WithOnError installs a hook called with every error swallowed by the
// graph: effect callback errors and illegal writes. Errors are logged
// either way.
func WithOnError(fn func(error)) RuntimeOption {
	return func(rt *Runtime) { rt.onError = fn }
}

func New(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Batch defers effect execution until fn returns, so a burst of writes
// triggers each affected effect at most once.
func (rt *Runtime) Batch(fn func()) {
	rt.batchDepth++
	defer func() {
		rt.batchDepth--
		rt.flush()
	}()
	fn()
}

// Untrack runs fn with dependency registration paused: reads inside fn
// do not subscribe the current computation to the cells it touches.
func (rt *Runtime) Untrack(fn func()) {
	rt.paused++
	defer func() { rt.paused-- }()
	fn()
}

// track registers s on the current evaluation frame, if any.
func (rt *Runtime) track(s source) {
	if rt.active == nil || rt.paused > 0 {
		return
	}
	if rt.active.seen.Add(s) {
		rt.active.order = append(rt.active.order, s)
	}
}

// writeAllowed reports whether a cell write is legal right now. Only an
// effect registered without write permission is denied.
func (rt *Runtime) writeAllowed() bool {
	return rt.activeEffect == nil || rt.activeEffect.allowWrites
}

func (rt *Runtime) reportError(err error) {
	rt.log.Error().Err(err).Msg("reactive graph error")
	if rt.onError != nil {
		rt.onError(err)
	}
}

func (rt *Runtime) enqueue(e *Effect) {
	rt.pending = append(rt.pending, e)
}

// flush runs queued effects until the queue drains. Writes performed by
// a write-permitted effect re-enter here and are picked up by the outer
// loop, so effects always run after the triggering write completes.
func (rt *Runtime) flush() {
	if rt.batchDepth > 0 || rt.flushing {
		return
	}
	rt.flushing = true
	defer func() { rt.flushing = false }()
	for len(rt.pending) > 0 {
		e := rt.pending[0]
		rt.pending = rt.pending[1:]
		e.updateIfNecessary()
	}
}

// rewire swaps an observer's source subscriptions after an evaluation:
// sources no longer read are detached, newly read ones attached.
// Dependencies may differ between runs of the same computation.
func rewire(ob observer, old []source, captured *frame) []source {
	for _, s := range old {
		if !captured.seen.Contains(s) {
			s.detach(ob)
		}
	}
	for _, s := range captured.order {
		s.attach(ob)
	}
	return captured.order
}

func illegalWrite(rt *Runtime) {
	rt.reportError(fmt.Errorf("%w: grant WithWrites to effects that must write", ErrIllegalWrite))
}
