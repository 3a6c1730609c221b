// Package freelist implements the per-class free-chunk registry: 105
// doubly-linked list heads (one per size class) plus a 105-bit occupancy
// bitmap that answers "smallest non-empty class >= k" in O(1).
//
// Free chunks are linked by offset, not by Go pointer: a free chunk's first
// bytes are owned by the registry only while it is free (design notes in
// spec.md), and the moment it is handed out those same bytes become the
// caller's payload. Holding a live *node into caller-owned memory after
// that would be unsound, so the list is threaded through relative byte
// offsets into the externally-owned region (the spec's own suggested
// "indices-into-arena" alternative to raw pointers) and a Store does the
// actual read/write.
package freelist

import (
	"math/bits"

	"github.com/mcheap/mcheap/pkg/sizeclass"
)

// Null is the sentinel offset meaning "no node" (the spec's nil prev/next).
// Safe because valid chunk offsets are always < heap size <= 2^32-1.
const Null uint32 = 0xFFFFFFFF

// Store reads and writes the two-offset (prev, next) node overlaid on a
// free chunk's first bytes.
type Store interface {
	ReadNode(offset uint32) (prev, next uint32)
	WriteNode(offset uint32, prev, next uint32)
}

// Registry holds the 105 list heads and their occupancy bitmap. It does not
// own chunk storage; all node reads/writes go through a Store.
type Registry struct {
	heads     [sizeclass.Count]uint32
	occupancy [4]uint32
}

// NewRegistry returns an empty registry (all lists empty, no bits set).
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.heads {
		r.heads[i] = Null
	}
	return r
}

// Head returns the current head offset of list index, or (Null, false) if
// empty.
func (r *Registry) Head(index uint32) (uint32, bool) {
	h := r.heads[index]
	return h, h != Null
}

// IsEmpty reports whether list index has no nodes.
func (r *Registry) IsEmpty(index uint32) bool {
	return r.heads[index] == Null
}

func (r *Registry) setOccupied(index uint32, occupied bool) {
	word, bit := index/32, index%32
	mask := uint32(0x80000000) >> bit
	if occupied {
		r.occupancy[word] |= mask
	} else {
		r.occupancy[word] &^= mask
	}
}

// PushHead prepends node to list index, making it the new head.
func (r *Registry) PushHead(store Store, index uint32, node uint32) {
	old := r.heads[index]
	store.WriteNode(node, Null, old)
	if old != Null {
		_, oldNext := store.ReadNode(old)
		store.WriteNode(old, node, oldNext)
	}
	r.heads[index] = node
	r.setOccupied(index, true)
}

// PopHead removes and returns the head of list index, or (0, false) if
// empty.
func (r *Registry) PopHead(store Store, index uint32) (uint32, bool) {
	head := r.heads[index]
	if head == Null {
		return 0, false
	}
	_, next := store.ReadNode(head)
	if next != Null {
		_, nextNext := store.ReadNode(next)
		store.WriteNode(next, Null, nextNext)
	}
	r.heads[index] = next
	if next == Null {
		r.setOccupied(index, false)
	}
	return head, true
}

// Remove unlinks an arbitrary node known to belong to list index. If node
// was the head, the head and occupancy bit are updated.
func (r *Registry) Remove(store Store, index uint32, node uint32) {
	prev, next := store.ReadNode(node)
	if next != Null {
		_, nextNext := store.ReadNode(next)
		store.WriteNode(next, prev, nextNext)
	}
	if prev != Null {
		prevPrev, _ := store.ReadNode(prev)
		store.WriteNode(prev, prevPrev, next)
		return
	}
	r.heads[index] = next
	if next == Null {
		r.setOccupied(index, false)
	}
}

// NextNonemptyGE returns the smallest list index >= from that is non-empty,
// or (sizeclass.None, false) if none exists. Implemented by masking the
// word holding bit `from` and scanning at most four 32-bit occupancy words
// with a leading-zero count each, so it is a small, constant number of word
// loads regardless of heap size.
func (r *Registry) NextNonemptyGE(from uint32) (uint32, bool) {
	if from >= sizeclass.Count {
		return sizeclass.None, false
	}
	wordIdx, bitIdx := from/32, from%32
	if masked := r.occupancy[wordIdx] << bitIdx; masked != 0 {
		return from + uint32(bits.LeadingZeros32(masked)), true
	}
	for wi := wordIdx + 1; wi < uint32(len(r.occupancy)); wi++ {
		if r.occupancy[wi] != 0 {
			return wi*32 + uint32(bits.LeadingZeros32(r.occupancy[wi])), true
		}
	}
	return sizeclass.None, false
}
