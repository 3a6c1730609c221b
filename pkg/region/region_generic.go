//go:build !unix

package region

import "unsafe"

// Region is a heap-backed (not page-backed) stand-in used on platforms
// without golang.org/x/sys/unix mmap support.
type Region struct {
	raw     []byte
	aligned []byte
}

// Reserve allocates a Go-heap buffer of at least size bytes, over-sized and
// trimmed to satisfy RequiredAlignment(size). Release is then a no-op:
// there is no kernel mapping to give back, and the buffer is freed by the
// garbage collector once unreferenced.
func Reserve(size uint32) (*Region, error) {
	align := RequiredAlignment(size)
	raw := make([]byte, uintptr(size)+align)
	base := uintptr(unsafe.Pointer(&raw[0]))
	pad := (align - base%align) % align
	return &Region{raw: raw, aligned: raw[pad : pad+uintptr(size)]}, nil
}

// Bytes returns the aligned region a Heap should be created over.
func (r *Region) Bytes() []byte { return r.aligned }

// Release is a no-op on this platform; see Reserve.
func (r *Region) Release() error { return nil }
