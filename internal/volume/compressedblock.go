package volume

// CompressedBlock owns a compressed byte buffer for one block, plus a
// last-access timestamp maintained by the volume that owns it. It does not
// know the voxel type or the block side length; it is a tagged byte
// buffer with a timestamp.
type CompressedBlock struct {
	data         []byte
	lastAccessed uint32
}

// newCompressedBlock returns an empty block (zero-length buffer). The
// pager or a re-compression is responsible for filling it.
func newCompressedBlock() *CompressedBlock {
	return &CompressedBlock{}
}

// Data returns the block's compressed bytes. Callers must not retain the
// slice past the next mutation of the block.
func (b *CompressedBlock) Data() []byte { return b.data }

// SetData replaces the block's compressed bytes.
func (b *CompressedBlock) SetData(data []byte) { b.data = data }

// DataSizeBytes returns the length of the compressed buffer.
func (b *CompressedBlock) DataSizeBytes() int { return len(b.data) }

// LastAccessed returns the timestamp of the most recent touch.
func (b *CompressedBlock) LastAccessed() uint32 { return b.lastAccessed }

// SizeInBytes is a reporting helper: the compressed payload plus a fixed
// estimate of per-block bookkeeping overhead.
func (b *CompressedBlock) SizeInBytes() int64 {
	const overhead = 64 // struct header, map entry, slice header
	return int64(len(b.data)) + overhead
}
