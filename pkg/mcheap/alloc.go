package mcheap

import (
	"github.com/mcheap/mcheap/pkg/bitfield"
	"github.com/mcheap/mcheap/pkg/sizeclass"
)

// Alloc reserves a contiguous block of at least n bytes and returns its
// address, 16-byte aligned. It fails with ErrOutOfMemory if n is zero, n
// exceeds sizeclass.Max, or no free chunk of a sufficient class currently exists;
// the heap never grows or makes syscalls to satisfy a request. Mirrors the
// source's heap_alloc: round up to the smallest sufficient class, pop its
// free list, then carve the leftover down through the levels below,
// re-threading any leftover pieces onto their own lists as it goes.
func (h *Heap) Alloc(n uint32) (uintptr, error) {
	if n == 0 {
		h.diag.OutOfMemory(n)
		return 0, ErrOutOfMemory
	}

	needed := (n + sizeclass.Min - 1) &^ (sizeclass.Min - 1)

	found, ok := sizeclass.RoundUpToClass(needed)
	if !ok {
		h.diag.OutOfMemory(n)
		return 0, ErrOutOfMemory
	}
	iStar := sizeclass.ClassToIndex(found)

	h.lock.Lock()
	defer h.lock.Unlock()

	idx, ok := h.registry.NextNonemptyGE(iStar)
	if !ok {
		h.diag.OutOfMemory(n)
		return 0, ErrOutOfMemory
	}

	foundSz := sizeclass.IndexToClass(idx)
	c, _ := h.registry.PopHead(h.store, idx)

	extraSz := foundSz - needed
	level := sizeclass.LevelOf(idx)
	shift := (level + 1) * 4

	var lvlNeeded uint32
	for {
		if lvlRemain := (extraSz >> shift) & 0xF; lvlRemain != 0 {
			headIdx := level*sizeclass.PerLevel + lvlRemain - 1
			h.registry.PushHead(h.store, headIdx, c)
			c += lvlRemain << shift
		}

		lvlNeeded = needed >> shift
		if lvlNeeded != 0 {
			break
		}

		h.setStatus(level, c>>shift, bitfield.StatusSplit)
		level--
		shift -= 4
	}

	mainBs := uint32(1) << shift
	head := c
	h.setStatus(level, c>>shift, bitfield.StatusAllocHead)
	c += mainBs

	if cnt := lvlNeeded - 1; cnt != 0 {
		h.setRun(level, c>>shift, cnt, bitfield.StatusAlloc)
		c += mainBs * cnt
	}

	needed -= lvlNeeded << shift
	if needed != 0 && level != 0 {
		h.setStatus(level, c>>shift, bitfield.StatusSplit)
	}

	if level != 0 {
		for level--; ; level-- {
			shift -= 4
			mainBs >>= 4
			lvlNeeded = needed >> shift

			if lvlNeeded != 0 {
				h.setRun(level, c>>shift, lvlNeeded, bitfield.StatusAlloc)
				c += mainBs * lvlNeeded
			}
			needed -= lvlNeeded << shift

			if lvlRemain := (extraSz >> shift) & 0xF; lvlRemain != 0 {
				headIdx := level*sizeclass.PerLevel + lvlRemain - 1
				newC := c
				if level != 0 && needed != 0 {
					newC += mainBs
				}
				h.registry.PushHead(h.store, headIdx, newC)
			}

			if needed == 0 || level == 0 {
				break
			}
			h.setStatus(level, c>>shift, bitfield.StatusSplit)
		}
	}

	return h.addr(head), nil
}
