package mcheap

import (
	"math/bits"

	"github.com/mcheap/mcheap/pkg/bitfield"
	"github.com/mcheap/mcheap/pkg/sizeclass"
)

// descendToHead finds the level at which the chunk starting at offset is
// recorded as ALLOC_HEAD. An address alignment of absolute address p
// reveals its maximum possible head level (CTZ(p)/4 - 1, since a chunk's
// address at level k must be a multiple of that level's main size); from
// there it walks toward level 0 until it finds the ALLOC_HEAD bit, or
// fails if level 0 isn't it either. Mirrors the source's heap_free prelude.
func (h *Heap) descendToHead(offset uint32) (level, shift, idx uint32, ok bool) {
	addrLow := uint32(h.addr(offset))
	lvl := uint32(bits.TrailingZeros32(addrLow))>>2 - 1
	if lvl >= h.levelCount {
		lvl = h.levelCount - 1
	}
	shift = (lvl + 1) * 4
	for {
		idx = offset >> shift
		// Chunks at or past size>>shift overhang the region's end; their
		// ALLOC_HEAD marks are boundary sentinels, not allocations.
		if idx < h.size>>shift && h.chunkStatus(lvl, idx) == bitfield.StatusAllocHead {
			return lvl, shift, idx, true
		}
		if lvl == 0 {
			return 0, 0, 0, false
		}
		lvl--
		shift -= 4
	}
}

// measureGranted computes the total size handed out for the allocation
// whose head is at (level, shift, idx), starting from offset. If the
// allocation's tail continues into finer levels (the head's 16-chunk group
// ran out of ALLOC chunks and the next chunk at this level is SPLIT), it
// descends and accumulates until it finds a level whose neighboring chunk
// is not SPLIT. It returns the deepest (level, shift, idx) reached, which
// is where a release must begin. Mirrors the source's heap_get_alloc_size.
func (h *Heap) measureGranted(level, shift, idx, offset uint32) (totSize, finalLevel, finalShift, finalIdx uint32) {
	sidx := idx & 0xF
	if sidx == 15 {
		return uint32(1) << shift, level, shift, idx
	}

	shifted := h.wordAt(level, idx) << ((sidx + 1) * 2)
	if shifted == 0 {
		return (16 - sidx) << shift, level, shift, idx
	}

	allocs := bitfield.CountLeadingAllocRun(shifted) + 1
	totSize = allocs << shift
	for h.chunkStatus(level, idx+allocs) == bitfield.StatusSplit {
		level--
		shift -= 4
		idx = (offset + totSize) >> shift
		allocs = bitfield.CountLeadingAllocRun(h.wordAt(level, idx))
		totSize += allocs << shift
	}
	return totSize, level, shift, idx
}

// AllocSizeOf returns the number of bytes actually granted for the
// allocation at p, or 0 if p is not a live allocation's address.
func (h *Heap) AllocSizeOf(p uintptr) uint32 {
	offset, ok := h.offsetOf(p)
	if !ok {
		return 0
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	level, shift, idx, ok := h.descendToHead(offset)
	if !ok {
		return 0
	}
	totSize, _, _, _ := h.measureGranted(level, shift, idx, offset)
	return totSize
}

// StatusOf reports the chunk status of the address p, recursing from the
// finest level upward: a FREE reading at a level below the topmost
// materialized one is provisional (bitfields below an un-split chunk are
// never written and so default to FREE) and is confirmed or overridden by
// the parent level; SPLIT at the parent confirms the child's reading;
// ALLOC_HEAD at a level whose alignment p doesn't exactly match is an
// interior byte of a coarser allocation and reclassified ALLOC. Mirrors the
// source's heap_get_address_status.
func (h *Heap) StatusOf(p uintptr) bitfield.Status {
	offset, ok := h.offsetOf(p)
	if !ok {
		return bitfield.StatusInvalid
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	return h.statusAtLevel(offset, 0, bitfield.StatusInvalid)
}

func (h *Heap) statusAtLevel(offset, level uint32, prev bitfield.Status) bitfield.Status {
	shift := (level + 1) * 4
	idx := offset >> shift
	status := h.chunkStatus(level, idx)

	if status == bitfield.StatusFree && level < h.levelCount-1 && offset>>(shift+4) < h.size>>(shift+4) {
		return h.statusAtLevel(offset, level+1, status)
	}
	if status == bitfield.StatusSplit {
		return prev
	}
	if status == bitfield.StatusAllocHead && offset&((sizeclass.Min<<(level*4))-1) != 0 {
		return bitfield.StatusAlloc
	}
	return status
}
