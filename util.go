package pagetable

const (
	// bits of the key consumed by each level
	levelBits = 16
	// number of slots in every node and cells in every leaf
	fanout = 1 << levelBits
)

// splitKey breaks the key into per-level indexes, most significant
// group first.
func splitKey(key uint64) (i0, i1, i2, i3 uint16) {
	return uint16(key >> (3 * levelBits)),
		uint16(key >> (2 * levelBits)),
		uint16(key >> levelBits),
		uint16(key)
}

// murmurhash3 64-bit finalizer
func hash64(x uint64) uint32 {
	x = ((x >> 33) ^ x) * 0xff51afd7ed558ccd
	x = ((x >> 33) ^ x) * 0xc4ceb9fe1a85ec53
	x = (x >> 33) ^ x
	return uint32(x)
}
