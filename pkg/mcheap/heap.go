// Package mcheap implements the deterministic, O(1) dynamic memory
// allocator: a heap carved entirely out of one externally-owned,
// contiguous byte region, with no syscalls and no internal growth on the
// alloc/free path. See pkg/sizeclass, pkg/bitfield and pkg/freelist for the
// three building blocks this package wires together.
package mcheap

import (
	"math/bits"
	"unsafe"

	"github.com/mcheap/mcheap/pkg/bitfield"
	"github.com/mcheap/mcheap/pkg/diag"
	"github.com/mcheap/mcheap/pkg/freelist"
	"github.com/mcheap/mcheap/pkg/sizeclass"
)

// Heap carves a region into size-classed chunks tracked by a packed
// bitfield per level and a free-list registry shared across levels. A Heap
// must not be copied after Create.
type Heap struct {
	region []byte
	store  regionStore

	registry   *freelist.Registry
	bitfield   [sizeclass.MainLevels][]uint32
	levelCount uint32 // number of materialized levels, 0..levelCount-1

	size uint32

	lock Locker
	diag diag.Reporter
}

// Option configures a Heap at construction.
type Option func(*Heap)

// WithLocker installs a Locker other than the default no-op, for heaps
// driven from more than one goroutine.
func WithLocker(l Locker) Option {
	return func(h *Heap) { h.lock = l }
}

// WithDiagnostics installs a diag.Reporter other than the default
// diag.Nop. A nil r keeps diag.Nop.
func WithDiagnostics(r diag.Reporter) Option {
	return func(h *Heap) {
		if r == nil {
			r = diag.Nop
		}
		h.diag = r
	}
}

// Create carves region into an empty heap: one region-spanning allocation
// decomposed into the fewest size-classed free chunks that exactly cover
// it. region is owned by the caller for its entire lifetime; Destroy does
// not release it.
//
// Create fails with ErrInvalidGeometry if len(region) is zero, not a
// multiple of sizeclass.Min, exceeds sizeclass.Max, or region's base
// address is not aligned to the largest main size <= len(region).
func Create(region []byte, opts ...Option) (*Heap, error) {
	size := uint32(len(region))
	if size == 0 || size%sizeclass.Min != 0 || uint64(len(region)) > uint64(sizeclass.Max) {
		return nil, ErrInvalidGeometry
	}

	cs := uint(bits.LeadingZeros32(size)) & 0x1C
	requiredAlign := uintptr(0x10000000) >> cs
	base := uintptr(unsafe.Pointer(&region[0]))
	if base%requiredAlign != 0 {
		return nil, ErrInvalidGeometry
	}

	h := &Heap{
		region:   region,
		store:    regionStore{region},
		registry: freelist.NewRegistry(),
		size:     size,
		lock:     noopLocker{},
		diag:     diag.Nop,
	}
	for _, opt := range opts {
		opt(h)
	}

	for level := uint32(0); level < sizeclass.MainLevels; level++ {
		shift := (level + 1) * 4
		chunks := size >> shift
		if chunks == 0 {
			break
		}
		words := (chunks + 15) / 16
		buf := make([]uint32, words)
		for i := range buf {
			buf[i] = bitfield.AllFreeWord
		}
		if rem := chunks % 16; rem != 0 {
			last := words - 1
			buf[last] = bitfield.SetRun(buf[last], 0, rem, bitfield.StatusFree)
			buf[last] = bitfield.SetRun(buf[last], rem, 16-rem, bitfield.StatusAllocHead)
		}
		h.bitfield[level] = buf
		h.levelCount = level + 1
	}

	seedFreeLists(h.registry, h.store, size)
	return h, nil
}

// seedFreeLists decomposes a freshly created heap's region into the fewest
// free chunks that exactly cover it: repeatedly take the largest class
// that fits the remaining length, push it onto its list, and continue with
// the remainder. Mirrors the source's populate_heads.
func seedFreeLists(reg *freelist.Registry, store freelist.Store, size uint32) {
	var offset uint32
	remaining := size
	for remaining > 0 {
		roundedUp, ok := sizeclass.RoundUpToClass(remaining)
		if !ok {
			panic("mcheap: heap size exceeds sizeclass.Max after validation")
		}
		idx := sizeclass.ClassToIndex(roundedUp)
		if roundedUp != remaining {
			idx--
		}
		used := sizeclass.IndexToClass(idx)
		reg.PushHead(store, idx, offset)
		offset += used
		remaining -= used
	}
}

// Destroy releases the heap's own bookkeeping (bitfields, free-list
// registry). It does not release region: that memory was never this
// package's to free.
func (h *Heap) Destroy() {
	h.bitfield = [sizeclass.MainLevels][]uint32{}
	h.registry = nil
	h.levelCount = 0
}

// Size returns the byte length of the region the heap was created over.
func (h *Heap) Size() uint32 { return h.size }

func (h *Heap) addr(offset uint32) uintptr {
	return uintptr(unsafe.Pointer(&h.region[0])) + uintptr(offset)
}

// offsetOf validates that p falls within the region on a 16-byte boundary
// and returns its offset from the region's base.
func (h *Heap) offsetOf(p uintptr) (uint32, bool) {
	base := uintptr(unsafe.Pointer(&h.region[0]))
	if p < base {
		return 0, false
	}
	off := p - base
	if off >= uintptr(h.size) || off%uintptr(sizeclass.Min) != 0 {
		return 0, false
	}
	return uint32(off), true
}

func (h *Heap) wordAt(level, idx uint32) uint32 {
	return h.bitfield[level][idx>>4]
}

func (h *Heap) chunkStatus(level, idx uint32) bitfield.Status {
	return bitfield.Get(h.wordAt(level, idx), idx&0xF)
}

func (h *Heap) setStatus(level, idx uint32, s bitfield.Status) {
	w := idx >> 4
	h.bitfield[level][w] = bitfield.SetOne(h.bitfield[level][w], idx&0xF, s)
}

func (h *Heap) setRun(level, idx, cnt uint32, s bitfield.Status) {
	w := idx >> 4
	h.bitfield[level][w] = bitfield.SetRun(h.bitfield[level][w], idx&0xF, cnt, s)
}
