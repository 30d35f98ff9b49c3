package pagetable

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPageCounterInc(t *testing.T) {
	var c pageCounter
	for i := 0; i < 100; i++ {
		if v := c.value(); v != int64(i) {
			t.Errorf("got %v, want %d", v, i)
		}
		c.inc()
	}
}

func TestPageCounterAdd(t *testing.T) {
	var c pageCounter
	for i := 0; i < 100; i++ {
		if v := c.value(); v != int64(i*42) {
			t.Errorf("got %v, want %d", v, i*42)
		}
		c.add(42)
	}
}

func TestPageCountersAreIndependent(t *testing.T) {
	var a, b pageCounter
	a.inc()
	a.inc()
	b.add(5)
	require.EqualValues(t, 2, a.value())
	require.EqualValues(t, 5, b.value())
}

func doTestParallelIncrements(t *testing.T, numModifiers, gomaxprocs int) {
	runtime.GOMAXPROCS(gomaxprocs)
	var c pageCounter
	var g errgroup.Group
	for i := 0; i < numModifiers; i++ {
		g.Go(func() error {
			for j := 0; j < 10000; j++ {
				c.inc()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, numModifiers*10000, c.value())
}

func TestPageCounterParallelIncrements(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(-1))
	doTestParallelIncrements(t, 4, 2)
	doTestParallelIncrements(t, 16, 4)
	doTestParallelIncrements(t, 64, 8)
}
