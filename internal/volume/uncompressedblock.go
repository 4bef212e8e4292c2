package volume

import "unsafe"

// UncompressedBlock owns a dense S^3 array of voxels for one block, laid
// out in x + y*S + z*S^2 order, plus a dirty flag set by Set and cleared
// by whoever re-compresses it.
type UncompressedBlock[V any] struct {
	side  uint16
	data  []V
	dirty bool
}

// newUncompressedBlock allocates an S^3 array of voxels initialised to the
// zero value of V (spec.md's V::default). side must already be validated
// as a non-zero power of two by the caller.
func newUncompressedBlock[V any](side uint16) *UncompressedBlock[V] {
	n := int(side) * int(side) * int(side)
	return &UncompressedBlock[V]{
		side: side,
		data: make([]V, n),
	}
}

func (b *UncompressedBlock[V]) index(ox, oy, oz uint16) int {
	s := int(b.side)
	return int(ox) + int(oy)*s + int(oz)*s*s
}

// Get returns the voxel at the given in-block offset. Bounds are
// guaranteed valid by the caller; this is an assertion-grade contract, not
// a runtime-checked one.
func (b *UncompressedBlock[V]) Get(ox, oy, oz uint16) V {
	return b.data[b.index(ox, oy, oz)]
}

// Set writes the voxel at the given in-block offset and marks the block
// dirty.
func (b *UncompressedBlock[V]) Set(ox, oy, oz uint16, v V) {
	b.data[b.index(ox, oy, oz)] = v
	b.dirty = true
}

// Dirty reports whether the block has been written since it was last
// known to agree with its compressed buffer.
func (b *UncompressedBlock[V]) Dirty() bool { return b.dirty }

// ClearDirty marks the block as agreeing with its compressed buffer again.
func (b *UncompressedBlock[V]) ClearDirty() { b.dirty = false }

// RawBytes reinterprets the voxel array as a flat byte slice, the view a
// Codec compresses from or decompresses into. The returned slice aliases
// the block's backing array.
func (b *UncompressedBlock[V]) RawBytes() []byte {
	if len(b.data) == 0 {
		return nil
	}
	var zero V
	voxelSize := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.data[0])), len(b.data)*voxelSize)
}

// RawByteLen returns S^3*sizeof(V), the exact length a Codec must produce
// on decompression.
func (b *UncompressedBlock[V]) RawByteLen() int {
	var zero V
	return len(b.data) * int(unsafe.Sizeof(zero))
}

func voxelSizeBytes[V any]() int {
	var zero V
	return int(unsafe.Sizeof(zero))
}
