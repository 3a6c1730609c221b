//go:build unix

package region

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is a page-backed anonymous mapping sized and aligned for a Heap.
type Region struct {
	aligned []byte // the trimmed, correctly aligned slice handed to Heap
}

// Reserve mmaps an anonymous, zero-filled region of at least size bytes,
// aligned to RequiredAlignment(size), by over-mapping and trimming the
// unaligned prefix and trailing slack back to the kernel.
func Reserve(size uint32) (*Region, error) {
	align := RequiredAlignment(size)
	total := uintptr(size) + align

	mapping, err := unix.Mmap(-1, 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("region: mmap %d bytes: %w", total, err)
	}

	base := uintptr(unsafe.Pointer(&mapping[0]))
	pad := (align - base%align) % align

	if pad > 0 {
		if err := unix.Munmap(mapping[:pad]); err != nil {
			unix.Munmap(mapping)
			return nil, fmt.Errorf("region: trim prefix: %w", err)
		}
	}
	if tail := mapping[pad+uintptr(size):]; len(tail) > 0 {
		if err := unix.Munmap(tail); err != nil {
			unix.Munmap(mapping[pad:])
			return nil, fmt.Errorf("region: trim suffix: %w", err)
		}
	}

	return &Region{aligned: mapping[pad : pad+uintptr(size)]}, nil
}

// Bytes returns the aligned region a Heap should be created over.
func (r *Region) Bytes() []byte { return r.aligned }

// Release unmaps the region. The Region and every address inside it must
// not be used afterward.
func (r *Region) Release() error {
	if err := unix.Munmap(r.aligned); err != nil {
		return fmt.Errorf("region: munmap: %w", err)
	}
	return nil
}
