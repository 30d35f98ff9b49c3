package pagetable_test

import (
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/pagetable"
)

func ExamplePageTable() {
	pt := pagetable.NewPageTable()

	for i := uint64(0); i < 100_000; i++ {
		pt.Get(i).Add(1)
	}

	ones := 0
	for i := uint64(0); i < 100_000; i++ {
		if pt.Get(i).Load() == 1 {
			ones++
		}
	}
	fmt.Println(ones)

	// Cells of keys that were never written read as zero.
	fmt.Println(pt.Get(1 << 63).Load())
	// Output:
	// 100000
	// 0
}

func ExamplePageTableOf() {
	type location struct {
		segment uint32
		row     uint32
	}
	locations := pagetable.NewPageTableOf[atomic.Pointer[location]]()

	// Publish the first location of object 42, then move it.
	locations.Get(42).CompareAndSwap(nil, &location{segment: 1, row: 7})
	old := locations.Get(42).Swap(&location{segment: 3, row: 0})

	fmt.Printf("moved from %d/%d to %d/%d\n",
		old.segment, old.row,
		locations.Get(42).Load().segment, locations.Get(42).Load().row)
	// Output:
	// moved from 1/7 to 3/0
}
