package mcheap

import (
	"math/bits"

	"github.com/mcheap/mcheap/pkg/bitfield"
	"github.com/mcheap/mcheap/pkg/sizeclass"
)

// Free releases the allocation at p, merging it with any free neighbors at
// every level its bytes span and re-threading the resulting chunk(s) onto
// their free lists. p that isn't a live allocation's address is reported
// to the diag.Reporter and otherwise ignored — Free never panics on bad
// input. Mirrors the source's heap_free.
func (h *Heap) Free(p uintptr) {
	if p == 0 {
		return
	}
	offset, ok := h.offsetOf(p)
	if !ok {
		h.diag.UnknownAddress(p, "address outside heap region or not 16-byte aligned")
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	headLevel, headShift, headIdx, ok := h.descendToHead(offset)
	if !ok {
		h.diag.UnknownAddress(p, "address is not the head of a live allocation")
		return
	}

	totSize, level, shift, _ := h.measureGranted(headLevel, headShift, headIdx, offset)

	subEmpty := uint32(0)
	bottomAddr := offset + totSize

	// Release every level below the allocation's own head level: each
	// iteration frees the tail digit carved at that level during Alloc,
	// merging it with any free run immediately to its right, and promotes
	// a fully-emptied 16-chunk group up to the next level via subEmpty.
	for level < headLevel {
		baseSize := (totSize >> shift) & 0xF
		bsizeSub := baseSize + subEmpty
		idxHere := (bottomAddr >> shift) - baseSize

		var next uint32
		if bsizeSub != 16 {
			word := h.wordAt(level, idxHere)
			next = bitfield.CountLeadingFreeRun(word << (bsizeSub * 2))
			if next != 0 {
				neighbor := (idxHere + bsizeSub) << shift
				h.registry.Remove(h.store, level*sizeclass.PerLevel+next-1, neighbor)
			}
		}

		tot := next + bsizeSub
		h.setRun(level, idxHere, tot, bitfield.StatusFree)

		if tot == 16 {
			subEmpty = 1
		} else {
			chunk := idxHere << shift
			h.registry.PushHead(h.store, level*sizeclass.PerLevel+tot-1, chunk)
			subEmpty = 0
			assertf(totSize>>(shift+4) != 0, "heap_free: no higher digit left while level %d < headLevel %d", level, headLevel)
			level += uint32(bits.TrailingZeros32(totSize>>(shift+4))) >> 2
		}
		level++
		shift = (level + 1) * 4
	}

	// Release the head level itself, merging both a following and a
	// preceding free run; a merge that fills the whole 16-chunk group
	// promotes one level further up and repeats.
	baseSize := (totSize >> shift) & 0xF
	for {
		bsizeSub := baseSize + subEmpty
		idx := offset >> shift
		sub := idx & 0xF
		word := h.wordAt(level, idx)

		var next uint32
		if inxt := (sub + bsizeSub) * 2; inxt != 32 {
			next = bitfield.CountLeadingFreeRun(word << inxt)
			if next != 0 {
				neighbor := (idx + bsizeSub) << shift
				h.registry.Remove(h.store, level*sizeclass.PerLevel+next-1, neighbor)
			}
		}

		var prev uint32
		if sub != 0 {
			prev = bitfield.CountTrailingFreeRun(word >> ((16 - sub) * 2))
			if prev != 0 {
				neighbor := (idx - prev) << shift
				h.registry.Remove(h.store, level*sizeclass.PerLevel+prev-1, neighbor)
			}
		}

		tot := next + prev + bsizeSub
		h.setRun(level, idx-prev, tot, bitfield.StatusFree)

		if tot != 16 {
			chunk := (idx - prev) << shift
			h.registry.PushHead(h.store, level*sizeclass.PerLevel+tot-1, chunk)
			break
		}
		subEmpty = 1
		level++
		shift += 4
		baseSize = 0
	}
}
