package mcheap

import "errors"

var (
	// ErrInvalidGeometry is returned by Create when the region's size or
	// alignment cannot be decomposed into size classes: zero length, not a
	// multiple of sizeclass.Min, larger than sizeclass.Max, or the region's
	// base address not aligned to the largest main size <= its length.
	ErrInvalidGeometry = errors.New("mcheap: invalid heap geometry")

	// ErrOutOfMemory is returned by Alloc when it cannot satisfy the
	// request: the request is zero bytes, the request exceeds
	// sizeclass.Max, or every sufficiently large class is currently empty.
	ErrOutOfMemory = errors.New("mcheap: out of memory")

	// ErrUnknownAddress names the failure of an address that does not
	// resolve to a live allocation's head. No function in this package
	// returns it: Free has no return value and reports such an address to
	// the diag.Reporter, and AllocSizeOf returns 0 for it.
	ErrUnknownAddress = errors.New("mcheap: unknown address")
)
