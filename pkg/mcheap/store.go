package mcheap

import "encoding/binary"

// regionStore overlays freelist nodes (two little-endian uint32 offsets) on
// the first 8 bytes of a free chunk, directly in the caller-owned region.
// Those bytes are only ever read as a node while the chunk is free; once
// handed out by Alloc they belong entirely to the caller.
type regionStore struct {
	region []byte
}

func (s regionStore) ReadNode(offset uint32) (prev, next uint32) {
	prev = binary.LittleEndian.Uint32(s.region[offset : offset+4])
	next = binary.LittleEndian.Uint32(s.region[offset+4 : offset+8])
	return
}

func (s regionStore) WriteNode(offset uint32, prev, next uint32) {
	binary.LittleEndian.PutUint32(s.region[offset:offset+4], prev)
	binary.LittleEndian.PutUint32(s.region[offset+4:offset+8], next)
}
