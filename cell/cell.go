package cell

import (
	"reflect"

	mapset "github.com/deckarep/golang-set/v2"
)

// Cell is a writable reactive container. Reads register the current
// computation as a dependent; writes that change the value mark all
// transitive dependents stale and run affected effects before returning.
type Cell[T any] struct {
	rt     *Runtime
	value  T
	equals func(a, b T) bool
	obs    mapset.Set[observer]
}

type CellOption[T any] func(*Cell[T])

// WithEquals overrides the change check used by Write. The default is
// reflect.DeepEqual, which is right for the collection-valued cells the
// stores keep; hot scalar cells can pass == for speed.
func WithEquals[T any](eq func(a, b T) bool) CellOption[T] {
	return func(c *Cell[T]) { c.equals = eq }
}

func NewCell[T any](rt *Runtime, initial T, opts ...CellOption[T]) *Cell[T] {
	c := &Cell[T]{
		rt:     rt,
		value:  initial,
		equals: func(a, b T) bool { return reflect.DeepEqual(a, b) },
		obs:    mapset.NewSet[observer](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns the current value and never mutates.
func (c *Cell[T]) Read() T {
	c.rt.track(c)
	return c.value
}

// Peek reads without registering a dependency.
func (c *Cell[T]) Peek() T {
	return c.value
}

// Write replaces the value. Equal values are a no-op. A write from an
// effect without write permission is rejected and reported, not applied.
func (c *Cell[T]) Write(v T) {
	if !c.rt.writeAllowed() {
		illegalWrite(c.rt)
		return
	}
	if c.equals(c.value, v) {
		return
	}
	c.value = v
	for ob := range c.obs.Iter() {
		ob.markStale(cacheDirty)
	}
	c.rt.flush()
}

// Update applies fn to the current value and writes the result as a
// single step; no other reader observes a half-applied value.
func (c *Cell[T]) Update(fn func(T) T) {
	c.Write(fn(c.value))
}

func (c *Cell[T]) updateIfNecessary() {}

func (c *Cell[T]) attach(ob observer) { c.obs.Add(ob) }

func (c *Cell[T]) detach(ob observer) { c.obs.Remove(ob) }
