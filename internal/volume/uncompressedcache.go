package volume

// uncompressedCache is a bounded mapping of hot blocks to their
// uncompressed form, with a (lastCoord, lastPtr) shortcut for the most
// recently accessed block. It does not evict on its own in this design;
// dirty-flushing happens only at block-erase time, per spec.md §4.6.
type uncompressedCache[V any] struct {
	codec     Codec
	blockSide uint16

	entries map[blockKey]*UncompressedBlock[V]

	hasLast  bool
	lastKey  blockKey
	lastPtr  *UncompressedBlock[V]

	maxEntries int
}

func newUncompressedCache[V any](codec Codec, blockSide uint16) *uncompressedCache[V] {
	return &uncompressedCache[V]{
		codec:      codec,
		blockSide:  blockSide,
		entries:    make(map[blockKey]*UncompressedBlock[V]),
		maxEntries: -1, // unbounded until the volume configures a limit
	}
}

// clear drops every cached uncompressed block and the shortcut, without
// flushing. Callers must only call this when they know nothing is dirty
// (e.g. right after construction, or right after SetMaxEntries, which
// spec.md says clears the cache).
func (c *uncompressedCache[V]) clear() {
	c.entries = make(map[blockKey]*UncompressedBlock[V])
	c.hasLast = false
	c.lastPtr = nil
}

func (c *uncompressedCache[V]) setMaxEntries(n int) {
	c.maxEntries = n
	c.clear()
}

// get returns the uncompressed form of the block at k, decompressing on
// miss. block is the already-resident CompressedBlock backing k (obtained
// from the block index before calling get).
func (c *uncompressedCache[V]) get(k blockKey, block *CompressedBlock) (*UncompressedBlock[V], error) {
	if c.hasLast && c.lastKey == k {
		return c.lastPtr, nil
	}

	if ub, ok := c.entries[k]; ok {
		c.hasLast, c.lastKey, c.lastPtr = true, k, ub
		return ub, nil
	}

	ub := newUncompressedBlock[V](c.blockSide)
	dst := ub.RawBytes()
	n, err := c.codec.Decompress(dst, block.Data())
	if err != nil {
		return nil, wrapCodecErr("decompress block", err)
	}
	if n != ub.RawByteLen() {
		return nil, NewCodecError(Corrupt, "decompressed length does not match block volume", nil)
	}

	c.entries[k] = ub
	c.hasLast, c.lastKey, c.lastPtr = true, k, ub
	return ub, nil
}

// peek returns the cached uncompressed block for k without touching the
// shortcut or triggering decompression, or nil if it is not resident.
func (c *uncompressedCache[V]) peek(k blockKey) *UncompressedBlock[V] {
	return c.entries[k]
}

// flushDirtyAndRemove re-compresses ub into block if it is dirty, then
// drops the cache entry for k (and the shortcut, if it pointed there).
// It is a no-op if k has no uncompressed entry.
func (c *uncompressedCache[V]) flushDirtyAndRemove(k blockKey, block *CompressedBlock) error {
	ub, ok := c.entries[k]
	if !ok {
		if c.hasLast && c.lastKey == k {
			c.hasLast, c.lastPtr = false, nil
		}
		return nil
	}

	if ub.Dirty() {
		src := ub.RawBytes()
		dst := make([]byte, maxCompressedLen(len(src)))
		n, err := c.codec.Compress(dst, src)
		if err != nil {
			return wrapCodecErr("compress dirty block", err)
		}
		block.SetData(append([]byte(nil), dst[:n]...))
		ub.ClearDirty()
	}

	delete(c.entries, k)
	if c.hasLast && c.lastKey == k {
		c.hasLast, c.lastPtr = false, nil
	}
	return nil
}

func (c *uncompressedCache[V]) len() int { return len(c.entries) }
