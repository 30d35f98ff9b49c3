package pagetable

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

const (
	// number of counter stripes
	cstripes = 32
	// stripes are padded to a full cache line to prevent false sharing
	cacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
)

// pool for P tokens
var ptokenPool sync.Pool

// a P token is used to point at the current OS thread (P)
// on which the goroutine is run; exact identity of the thread,
// as well as P migration tolerance, is not important since
// it's used as a best effort mechanism for assigning
// concurrent operations (goroutines) to different stripes of
// the counter
type ptoken struct {
	idx int
}

// pageCounter is a striped int64 counter used for page accounting.
// Concurrent first touches of neighbouring key ranges allocate at
// the same time, so a single shared word would bounce between cores.
//
// The zero value is ready to use. A pageCounter must not be copied
// after first use.
type pageCounter struct {
	stripes [cstripes]counterStripe
}

type counterStripe struct {
	c   atomic.Int64
	pad [cacheLineSize - 8]byte
}

func (c *pageCounter) inc() {
	c.add(1)
}

func (c *pageCounter) add(delta int64) {
	t, ok := ptokenPool.Get().(*ptoken)
	if !ok {
		t = &ptoken{}
		t.idx = int(hash64(uint64(uintptr(unsafe.Pointer(t)))) % cstripes)
	}
	c.stripes[t.idx].c.Add(delta)
	ptokenPool.Put(t)
}

// value returns the current counter value.
// The returned value may not include all of the latest operations in
// presence of concurrent modifications of the counter.
func (c *pageCounter) value() int64 {
	v := int64(0)
	for i := range c.stripes {
		v += c.stripes[i].c.Load()
	}
	return v
}
