package mcheap

import (
	"math/bits"
	"testing"
	"unsafe"
)

// newAlignedRegion returns a size-byte slice whose base address satisfies
// Create's alignment requirement (aligned to the largest main size <=
// size), by over-allocating and trimming to the next aligned offset -
// mirrors the technique pkg/region uses against a real mmap'd region.
func newAlignedRegion(t *testing.T, size uint32) []byte {
	t.Helper()

	cs := uint(bits.LeadingZeros32(size)) & 0x1C
	align := uintptr(0x10000000) >> cs

	buf := make([]byte, uintptr(size)+align)
	base := uintptr(unsafe.Pointer(&buf[0]))
	pad := (align - base%align) % align
	return buf[pad : pad+uintptr(size)]
}
