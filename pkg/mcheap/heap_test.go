package mcheap

import (
	"testing"
	"unsafe"

	"github.com/mcheap/mcheap/pkg/bitfield"
	"github.com/mcheap/mcheap/pkg/sizeclass"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsInvalidGeometry(t *testing.T) {
	cases := []struct {
		name   string
		region []byte
	}{
		{"empty", nil},
		{"not a multiple of 16", make([]byte, 17)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Create(c.region)
			require.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}
}

func TestCreateSeedsFreeListsForNonClassSize(t *testing.T) {
	// 18 KiB is not itself a class: it decomposes into a 16 KiB chunk at
	// offset 0 and a 2 KiB chunk at offset 16384.
	const size = 18 * 1024
	region := newAlignedRegion(t, size)

	h, err := Create(region)
	require.NoError(t, err)

	idx16K := sizeclass.ClassToIndex(16 * 1024)
	head, ok := h.registry.Head(idx16K)
	require.True(t, ok)
	require.EqualValues(t, 0, head)

	idx2K := sizeclass.ClassToIndex(2 * 1024)
	head2, ok := h.registry.Head(idx2K)
	require.True(t, ok)
	require.EqualValues(t, 16*1024, head2)
}

func TestCreateExactClassIsSingleChunk(t *testing.T) {
	const size = 4096
	region := newAlignedRegion(t, size)

	h, err := Create(region)
	require.NoError(t, err)

	idx := sizeclass.ClassToIndex(size)
	head, ok := h.registry.Head(idx)
	require.True(t, ok)
	require.EqualValues(t, 0, head)
}

func TestAllocFreeRoundTrip(t *testing.T) {
	const size = 4096
	region := newAlignedRegion(t, size)
	h, err := Create(region)
	require.NoError(t, err)

	p, err := h.Alloc(size)
	require.NoError(t, err)
	require.Equal(t, uintptr(unsafe.Pointer(&region[0])), p)

	_, err = h.Alloc(16)
	require.ErrorIs(t, err, ErrOutOfMemory, "region is fully allocated")

	h.Free(p)

	p2, err := h.Alloc(size)
	require.NoError(t, err)
	require.Equal(t, p, p2, "freed chunk should be reusable")
}

func TestAllocSizeOfAndStatusOf(t *testing.T) {
	const size = 64 * 1024
	region := newAlignedRegion(t, size)
	h, err := Create(region)
	require.NoError(t, err)

	p, err := h.Alloc(100)
	require.NoError(t, err)

	granted := h.AllocSizeOf(p)
	require.True(t, granted >= 100)
	require.True(t, sizeclass.IsClass(granted))

	require.Equal(t, bitfield.StatusAllocHead, h.StatusOf(p))
	require.Equal(t, bitfield.StatusAlloc, h.StatusOf(p+16))

	h.Free(p)
	require.EqualValues(t, 0, h.AllocSizeOf(p), "freed address has no granted size")
}

func TestAllocTooLargeIsOutOfMemory(t *testing.T) {
	const size = 4096
	region := newAlignedRegion(t, size)
	h, err := Create(region)
	require.NoError(t, err)

	_, err = h.Alloc(size + 1)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

type recordingReporter struct {
	unknownAddrs int
	oom          int
}

func (r *recordingReporter) UnknownAddress(uintptr, string) { r.unknownAddrs++ }
func (r *recordingReporter) OutOfMemory(uint32)             { r.oom++ }

func TestFreeUnknownAddressIsReported(t *testing.T) {
	const size = 4096
	region := newAlignedRegion(t, size)
	rec := &recordingReporter{}
	h, err := Create(region, WithDiagnostics(rec))
	require.NoError(t, err)

	h.Free(uintptr(0xdeadbeef))
	require.Equal(t, 1, rec.unknownAddrs)

	base := h.addr(0)
	h.Free(base + 1) // misaligned
	require.Equal(t, 2, rec.unknownAddrs)
}

func TestMixedSizesMergeBackToSingleChunk(t *testing.T) {
	const size = 256 * 1024
	region := newAlignedRegion(t, size)
	h, err := Create(region)
	require.NoError(t, err)

	sizes := []uint32{16, 32, 48, 256, 512, 4096, 8192, 16, 1024, 2048}
	var ptrs []uintptr
	for _, s := range sizes {
		p, err := h.Alloc(s)
		require.NoErrorf(t, err, "alloc %d", s)
		ptrs = append(ptrs, p)
	}

	for _, p := range ptrs {
		h.Free(p)
	}

	// Fully merged back: the whole region should be allocatable as one
	// chunk again.
	p, err := h.Alloc(size)
	require.NoError(t, err)
	require.Equal(t, h.addr(0), p)
}
