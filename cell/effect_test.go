package cell_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/taskmill/cell"
)

func TestEffectRunsOnceAtRegistration(t *testing.T) {
	rt := cell.New()
	a := cell.NewCell(rt, 1)

	runs := 0
	cell.NewEffect(rt, func() error {
		a.Read()
		runs++
		return nil
	})
	assert.Equal(t, 1, runs)
}

func TestEffectRerunsAfterDependencyChange(t *testing.T) {
	rt := cell.New()
	a := cell.NewCell(rt, 1)
	double := cell.NewDerived(rt, func() int { return a.Read() * 2 })

	var seen []int
	cell.NewEffect(rt, func() error {
		seen = append(seen, double.Read())
		return nil
	})
	require.Equal(t, []int{2}, seen)

	a.Write(2)
	assert.Equal(t, []int{2, 4}, seen)

	// Unchanged derived value: no rerun.
	a.Write(2)
	assert.Equal(t, []int{2, 4}, seen)
}

func TestEffectStops(t *testing.T) {
	rt := cell.New()
	a := cell.NewCell(rt, 1)

	runs := 0
	stop := cell.NewEffect(rt, func() error {
		a.Read()
		runs++
		return nil
	})
	require.Equal(t, 1, runs)

	a.Write(2)
	require.Equal(t, 2, runs)

	stop()
	a.Write(3)
	assert.Equal(t, 2, runs)
}

func TestBatchCoalescesEffectRuns(t *testing.T) {
	rt := cell.New()
	a := cell.NewCell(rt, 1)
	b := cell.NewCell(rt, 10)

	runs := 0
	var last int
	cell.NewEffect(rt, func() error {
		last = a.Read() + b.Read()
		runs++
		return nil
	})
	require.Equal(t, 1, runs)

	rt.Batch(func() {
		a.Write(2)
		b.Write(20)
	})
	assert.Equal(t, 2, runs)
	assert.Equal(t, 22, last)
}

func TestReadOnlyEffectCannotWrite(t *testing.T) {
	var errs []error
	rt := cell.New(cell.WithOnError(func(err error) { errs = append(errs, err) }))
	a := cell.NewCell(rt, 1)
	b := cell.NewCell(rt, 0)

	cell.NewEffect(rt, func() error {
		b.Write(a.Read()) // contract violation: no write permission
		return nil
	})

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], cell.ErrIllegalWrite)
	assert.Equal(t, 0, b.Read(), "rejected write must not apply")
}

func TestWritePermittedEffectMirrors(t *testing.T) {
	rt := cell.New()
	upstream := cell.NewCell(rt, []int{1})
	mirror := cell.NewCell(rt, []int(nil))

	cell.NewEffect(rt, func() error {
		mirror.Write(upstream.Read())
		return nil
	}, cell.WithWrites())
	require.Equal(t, []int{1}, mirror.Read())

	upstream.Write([]int{1, 2})
	assert.Equal(t, []int{1, 2}, mirror.Read())
}

func TestEffectErrorIsReportedNotThrown(t *testing.T) {
	boom := errors.New("boom")
	var errs []error
	rt := cell.New(cell.WithOnError(func(err error) { errs = append(errs, err) }))
	a := cell.NewCell(rt, 1)

	cell.NewEffect(rt, func() error {
		a.Read()
		return boom
	})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)

	// The graph keeps working after a failing effect.
	a.Write(2)
	assert.Len(t, errs, 2)
	assert.Equal(t, 2, a.Read())
}

func TestEffectRunsAfterWriteCompletes(t *testing.T) {
	rt := cell.New()
	a := cell.NewCell(rt, 1)

	var observed int
	cell.NewEffect(rt, func() error {
		observed = a.Read()
		return nil
	})

	a.Write(5)
	// Synchronous: by the time Write returns the effect has observed
	// the new value.
	assert.Equal(t, 5, observed)
}

func TestChainedWriteEffects(t *testing.T) {
	rt := cell.New()
	source := cell.NewCell(rt, 1)
	stage := cell.NewCell(rt, 0)

	cell.NewEffect(rt, func() error {
		stage.Write(source.Read() * 10)
		return nil
	}, cell.WithWrites())

	var final int
	cell.NewEffect(rt, func() error {
		final = stage.Read()
		return nil
	})
	require.Equal(t, 10, final)

	source.Write(3)
	assert.Equal(t, 30, final)
}
