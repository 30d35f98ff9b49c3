// Package pagetable provides a wait-free table of zero-initialized
// cells addressed by 64-bit keys. It is meant for hot, dense metadata
// such as the current location or state of page, tuple or object IDs.
package pagetable

import (
	"sync/atomic"
	"unsafe"
)

// PageTable is a PageTableOf with atomic 64-bit cells.
type PageTable = PageTableOf[atomic.Uint64]

// PageTableOf maps uint64 keys to cells of type T. Every key owns
// exactly one cell for the lifetime of the table; the cell starts as
// T's zero value and is only ever written by callers. The type is
// meant to be used with sync/atomic types (atomic.Uint64,
// atomic.Int64, atomic.Pointer[X], ...) since cells are shared by
// all goroutines that Get the same key.
//
// A PageTableOf is a 4-level trie with 2^16-way fanout, one level
// per 16-bit group of the key. Missing levels are allocated on the
// way down and published with a single CAS per slot, so Get never
// blocks and completes in a bounded number of steps. Published pages
// are never freed or replaced while the table is in use.
//
// Memory is allocated in pages of 2^16 slots, i.e. 512KB for 8-byte
// cells, on the first touch of every 2^16 key range. Sparse key
// spaces are therefore a poor fit. Keys below 2^16, 2^32 and 2^48
// start from dedicated roots that skip the unused upper levels.
//
// The zero value is ready to use. A PageTableOf must not be copied
// after first use.
type PageTableOf[T any] struct {
	// any key
	root atomic.Pointer[node[node[node[leaf[T]]]]]
	// keys below 2^48
	root48 atomic.Pointer[node[node[leaf[T]]]]
	// keys below 2^32
	root32 atomic.Pointer[node[leaf[T]]]
	// keys below 2^16, no pointer chasing
	root16 atomic.Pointer[leaf[T]]

	pages pageAccounts
}

type pageAccounts struct {
	allocated pageCounter
	discarded pageCounter
	released  pageCounter
}

// node is an inner level of the trie. Each slot goes from nil to a
// child exactly once.
type node[C any] struct {
	children [fanout]atomic.Pointer[C]
}

// leaf holds the cells handed out to callers.
type leaf[T any] struct {
	cells [fanout]T
}

// PageTableStats is a snapshot of a table's memory usage.
type PageTableStats struct {
	// Inner nodes reachable from the roots.
	Nodes int
	// Leaf pages reachable from the roots.
	Leaves int
	// Pages allocated by Get, including those that lost
	// a publication race.
	Allocated int64
	// Pages that lost a publication race and were dropped.
	Discarded int64
	// Pages dropped by Release.
	Released int64
	// Bytes held by the reachable pages.
	ResidentBytes int64
}

// NewPageTable creates a new PageTable instance.
func NewPageTable() *PageTable {
	return &PageTable{}
}

// NewPageTableOf creates a new PageTableOf instance.
func NewPageTableOf[T any]() *PageTableOf[T] {
	return &PageTableOf[T]{}
}

// Get returns the cell for the given key, allocating the pages on its
// path if they do not exist yet. All calls with the same key return
// the same cell. The returned pointer stays valid until Release.
func (t *PageTableOf[T]) Get(key uint64) *T {
	i0, i1, i2, i3 := splitKey(key)
	var l *leaf[T]
	switch {
	case i0|i1|i2 == 0:
		l = install(&t.root16, &t.pages)
	case i0|i1 == 0:
		n3 := install(&t.root32, &t.pages)
		l = install(&n3.children[i2], &t.pages)
	case i0 == 0:
		n2 := install(&t.root48, &t.pages)
		n3 := install(&n2.children[i1], &t.pages)
		l = install(&n3.children[i2], &t.pages)
	default:
		n1 := install(&t.root, &t.pages)
		n2 := install(&n1.children[i0], &t.pages)
		n3 := install(&n2.children[i1], &t.pages)
		l = install(&n3.children[i2], &t.pages)
	}
	return &l.cells[i3]
}

// install returns the page published in slot, publishing a new
// zeroed page first if the slot is empty. A failed CAS can only mean
// that another goroutine published the page, so there is no retry.
func install[P any](slot *atomic.Pointer[P], pages *pageAccounts) *P {
	if p := slot.Load(); p != nil {
		return p
	}
	p := new(P)
	pages.allocated.inc()
	if slot.CompareAndSwap(nil, p) {
		return p
	}
	// p was never visible to other goroutines.
	pages.discarded.inc()
	return slot.Load()
}

// Release drops every page of the table, leaving it empty. Cells
// returned by earlier Get calls are detached from the table and must
// not be used afterwards. The table may be reused.
//
// This method must only be called when it is known that there are
// no concurrent calls to Get.
func (t *PageTableOf[T]) Release() {
	nodes, leaves := t.walk(true)
	t.pages.released.add(int64(nodes + leaves))
}

// Stats returns a snapshot of the table's memory usage. It may run
// concurrently with Get, in which case pages published during the
// call may or may not be counted.
func (t *PageTableOf[T]) Stats() PageTableStats {
	nodes, leaves := t.walk(false)
	var (
		n *node[leaf[T]]
		l *leaf[T]
	)
	resident := int64(nodes)*int64(unsafe.Sizeof(*n)) + int64(leaves)*int64(unsafe.Sizeof(*l))
	return PageTableStats{
		Nodes:         nodes,
		Leaves:        leaves,
		Allocated:     t.pages.allocated.value(),
		Discarded:     t.pages.discarded.value(),
		Released:      t.pages.released.value(),
		ResidentBytes: resident,
	}
}

// walk counts the pages reachable from the roots. With detach set,
// every slot and root is cleared on the way down.
func (t *PageTableOf[T]) walk(detach bool) (nodes, leaves int) {
	onLeaf := func(*leaf[T]) {
		leaves++
	}
	onNode3 := func(n *node[leaf[T]]) {
		nodes++
		visit(n, detach, onLeaf)
	}
	onNode2 := func(n *node[node[leaf[T]]]) {
		nodes++
		visit(n, detach, onNode3)
	}
	onNode1 := func(n *node[node[node[leaf[T]]]]) {
		nodes++
		visit(n, detach, onNode2)
	}
	if n := load(&t.root, detach); n != nil {
		onNode1(n)
	}
	if n := load(&t.root48, detach); n != nil {
		onNode2(n)
	}
	if n := load(&t.root32, detach); n != nil {
		onNode3(n)
	}
	if l := load(&t.root16, detach); l != nil {
		onLeaf(l)
	}
	return nodes, leaves
}

func visit[C any](n *node[C], detach bool, fn func(*C)) {
	for i := range n.children {
		if c := load(&n.children[i], detach); c != nil {
			fn(c)
		}
	}
}

func load[P any](slot *atomic.Pointer[P], detach bool) *P {
	if detach {
		return slot.Swap(nil)
	}
	return slot.Load()
}
