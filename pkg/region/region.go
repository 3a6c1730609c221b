// Package region acquires and releases the raw, page-backed memory a Heap
// is carved out of. Acquisition and release are explicitly out of scope
// for pkg/mcheap itself (the allocator core only ever carves a region it
// is handed); this package is the ambient counterpart that gets a region
// ready to hand it.
package region

import "math/bits"

// RequiredAlignment returns the byte alignment mcheap.Create will demand
// of a region of the given size: the largest main size <= size.
func RequiredAlignment(size uint32) uintptr {
	cs := uint(bits.LeadingZeros32(size)) & 0x1C
	return uintptr(0x10000000) >> cs
}
