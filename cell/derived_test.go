package cell_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/taskmill/cell"
)

func TestMemoizationHolds(t *testing.T) {
	rt := cell.New()
	count := cell.NewCell(rt, 1)

	computeCalls := 0
	double := cell.NewDerived(rt, func() int {
		computeCalls++
		return count.Read() * 2
	})

	assert.Equal(t, 2, double.Read())
	assert.Equal(t, 2, double.Read())
	assert.Equal(t, 1, computeCalls)

	count.Write(2)
	assert.Equal(t, 4, double.Read())
	assert.Equal(t, 4, double.Read())
	assert.Equal(t, 2, computeCalls)
}

func TestDerivedOfDerived(t *testing.T) {
	rt := cell.New()
	a := cell.NewCell(rt, 2)
	b := cell.NewDerived(rt, func() int { return a.Read() - 1 })
	c := cell.NewDerived(rt, func() int { return a.Read() + b.Read() })

	callCount := 0
	d := cell.NewDerived(rt, func() string {
		callCount++
		return fmt.Sprintf("d: %d", c.Read())
	})

	assert.Equal(t, "d: 3", d.Read())
	assert.Equal(t, 1, callCount)

	a.Write(4)
	assert.Equal(t, "d: 7", d.Read())
	assert.Equal(t, 2, callCount)
}

func TestDiamondUpdatesOnce(t *testing.T) {
	//     A
	//   /   \
	//  B     C
	//   \   /
	//     D
	rt := cell.New()
	a := cell.NewCell(rt, 1)
	b := cell.NewDerived(rt, func() int { return a.Read() * 2 })
	c := cell.NewDerived(rt, func() int { return a.Read() + 1 })

	dCalls := 0
	d := cell.NewDerived(rt, func() int {
		dCalls++
		return b.Read() + c.Read()
	})

	assert.Equal(t, 4, d.Read())
	assert.Equal(t, 1, dCalls)

	a.Write(2)
	assert.Equal(t, 7, d.Read())
	assert.Equal(t, 2, dCalls)
}

func TestUnchangedIntermediateCutsPropagation(t *testing.T) {
	rt := cell.New()
	a := cell.NewCell(rt, 1)
	parity := cell.NewDerived(rt, func() int { return a.Read() % 2 })

	downstreamCalls := 0
	label := cell.NewDerived(rt, func() string {
		downstreamCalls++
		if parity.Read() == 0 {
			return "even"
		}
		return "odd"
	})

	assert.Equal(t, "odd", label.Read())
	require.Equal(t, 1, downstreamCalls)

	// 1 -> 3: parity recomputes but its value is unchanged, so the
	// downstream derivation must not run again.
	a.Write(3)
	assert.Equal(t, "odd", label.Read())
	assert.Equal(t, 1, downstreamCalls)

	a.Write(4)
	assert.Equal(t, "even", label.Read())
	assert.Equal(t, 2, downstreamCalls)
}

func TestDynamicDependencies(t *testing.T) {
	rt := cell.New()
	useFirst := cell.NewCell(rt, true)
	first := cell.NewCell(rt, "first")
	second := cell.NewCell(rt, "second")

	calls := 0
	pick := cell.NewDerived(rt, func() string {
		calls++
		if useFirst.Read() {
			return first.Read()
		}
		return second.Read()
	})

	assert.Equal(t, "first", pick.Read())
	require.Equal(t, 1, calls)

	// second is not a dependency yet
	second.Write("SECOND")
	assert.Equal(t, "first", pick.Read())
	assert.Equal(t, 1, calls)

	useFirst.Write(false)
	assert.Equal(t, "SECOND", pick.Read())
	assert.Equal(t, 2, calls)

	// first dropped out of the dependency set on the last run
	first.Write("FIRST")
	assert.Equal(t, "SECOND", pick.Read())
	assert.Equal(t, 2, calls)
}

func TestComputePanicKeepsDerivationDirty(t *testing.T) {
	rt := cell.New()
	n := cell.NewCell(rt, 1)

	calls := 0
	risky := cell.NewDerived(rt, func() int {
		calls++
		v := n.Read()
		if v < 0 {
			panic("negative input")
		}
		return v * 10
	})

	assert.Equal(t, 10, risky.Read())

	n.Write(-1)
	assert.Panics(t, func() { risky.Read() })

	// No bad value was memoized; the next read retries the compute.
	assert.Panics(t, func() { risky.Read() })
	n.Write(5)
	assert.Equal(t, 50, risky.Read())
	assert.Equal(t, 4, calls)
}
