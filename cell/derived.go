package cell

import (
	"reflect"

	mapset "github.com/deckarep/golang-set/v2"
)

// Derived is a memoized pure computation over cells and other
// derivations. It recomputes lazily on read, and only when an upstream
// value actually changed since the memoized result was produced.
type Derived[T any] struct {
	rt      *Runtime
	compute func() T
	value   T
	equals  func(a, b T) bool
	state   cacheState
	sources []source
	obs     mapset.Set[observer]
}

type DerivedOption[T any] func(*Derived[T])

func WithDerivedEquals[T any](eq func(a, b T) bool) DerivedOption[T] {
	return func(d *Derived[T]) { d.equals = eq }
}

// NewDerived creates a derivation. compute must be deterministic and
// side-effect free; it runs on first Read, not at construction.
func NewDerived[T any](rt *Runtime, compute func() T, opts ...DerivedOption[T]) *Derived[T] {
	d := &Derived[T]{
		rt:      rt,
		compute: compute,
		equals:  func(a, b T) bool { return reflect.DeepEqual(a, b) },
		state:   cacheDirty,
		obs:     mapset.NewSet[observer](),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Read returns the memoized value, recomputing first if an upstream
// change invalidated it. Two consecutive reads with no intervening
// dependency change never invoke compute twice.
//
// If compute panics the derivation stays dirty, no value is memoized,
// and the panic propagates to the caller.
func (d *Derived[T]) Read() T {
	d.rt.track(d)
	d.updateIfNecessary()
	return d.value
}

func (d *Derived[T]) Peek() T {
	d.updateIfNecessary()
	return d.value
}

func (d *Derived[T]) markStale(st cacheState) {
	if d.state >= st {
		return
	}
	d.state = st
	for ob := range d.obs.Iter() {
		ob.markStale(cacheCheck)
	}
}

func (d *Derived[T]) updateIfNecessary() {
	if d.state == cacheCheck {
		// Possibly stale: settle sources in read order. A source whose
		// value really changed marks us dirty through markStale. Stop at
		// the first hit so sources the computation may no longer use are
		// not refreshed needlessly.
		for _, s := range d.sources {
			s.updateIfNecessary()
			if d.state == cacheDirty {
				break
			}
		}
	}
	if d.state == cacheDirty {
		d.update()
	}
	d.state = cacheClean
}

func (d *Derived[T]) update() {
	prevFrame := d.rt.active
	captured := newFrame()
	d.rt.active = captured
	ok := false
	defer func() {
		d.rt.active = prevFrame
		if ok {
			d.sources = rewire(d, d.sources, captured)
		} else {
			// compute panicked: keep the old memo, stay dirty so the
			// next read retries, and let the panic unwind.
			d.state = cacheDirty
		}
	}()

	next := d.compute()
	ok = true
	if !d.equals(d.value, next) {
		d.value = next
		// Diamond shapes: downstream nodes were only marked "check" and
		// must now know a value really changed.
		for ob := range d.obs.Iter() {
			ob.markStale(cacheDirty)
		}
	}
}

func (d *Derived[T]) attach(ob observer) { d.obs.Add(ob) }

func (d *Derived[T]) detach(ob observer) { d.obs.Remove(ob) }
