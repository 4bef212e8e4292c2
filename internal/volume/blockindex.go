package volume

// blockIndex is the ordered B -> CompressedBlock mapping and the single
// point of truth for which blocks are resident. It owns the eviction
// sweep because eviction needs to see every resident block's
// last-accessed timestamp at once.
type blockIndex[V any] struct {
	blocks    map[blockKey]*CompressedBlock
	pager     Pager
	cache     *uncompressedCache[V]
	blockSide uint16

	nextStamp func() uint32

	compressedBudget int64 // <0 means unbounded
	evictions        uint64
}

func newBlockIndex[V any](pager Pager, cache *uncompressedCache[V], blockSide uint16, nextStamp func() uint32) *blockIndex[V] {
	return &blockIndex[V]{
		blocks:           make(map[blockKey]*CompressedBlock),
		pager:            pager,
		cache:            cache,
		blockSide:        blockSide,
		nextStamp:        nextStamp,
		compressedBudget: -1,
	}
}

// getCompressed implements spec.md §4.5's get_compressed: touch-and-return
// on hit, create+pageIn+touch+evict on miss.
func (idx *blockIndex[V]) getCompressed(k blockKey) (*CompressedBlock, error) {
	if block, ok := idx.blocks[k]; ok {
		block.lastAccessed = idx.nextStamp()
		return block, nil
	}

	block := newCompressedBlock()
	idx.blocks[k] = block
	if err := idx.pager.PageIn(regionOfBlock(k, idx.blockSide), block); err != nil {
		delete(idx.blocks, k) // no orphan: the failed insert never existed
		return nil, wrapErr(CodecError, "page in block", err)
	}
	block.lastAccessed = idx.nextStamp()

	if err := idx.evictExcess(); err != nil {
		return nil, err
	}
	return block, nil
}

// erase implements spec.md §4.5's erase: flush any dirty uncompressed
// copy, page out, then forget the block. It leaves the index unchanged if
// pageOut fails, so a caller can retry.
func (idx *blockIndex[V]) erase(k blockKey) error {
	block, ok := idx.blocks[k]
	if !ok {
		return nil
	}

	if err := idx.cache.flushDirtyAndRemove(k, block); err != nil {
		return err
	}

	if err := idx.pager.PageOut(regionOfBlock(k, idx.blockSide), block); err != nil {
		return wrapErr(CodecError, "page out block", err)
	}

	delete(idx.blocks, k)
	return nil
}

func (idx *blockIndex[V]) totalCompressedBytes() int64 {
	var total int64
	for _, b := range idx.blocks {
		total += b.SizeInBytes()
	}
	return total
}

// evictExcess implements the eviction sweep from spec.md §4.7: while
// resident compressed bytes exceed the budget, evict the block with the
// smallest last-accessed timestamp.
func (idx *blockIndex[V]) evictExcess() error {
	if idx.compressedBudget < 0 {
		return nil
	}
	for idx.totalCompressedBytes() > idx.compressedBudget {
		var victim blockKey
		var victimStamp uint32
		first := true
		for k, b := range idx.blocks {
			if first || b.lastAccessed < victimStamp {
				victim, victimStamp, first = k, b.lastAccessed, false
			}
		}
		if first {
			break // nothing left to evict
		}
		if err := idx.erase(victim); err != nil {
			return err
		}
		idx.evictions++
	}
	return nil
}

func (idx *blockIndex[V]) flushRegion(blocksRegion Region) error {
	for x := blocksRegion.LowerX; x <= blocksRegion.UpperX; x++ {
		for y := blocksRegion.LowerY; y <= blocksRegion.UpperY; y++ {
			for z := blocksRegion.LowerZ; z <= blocksRegion.UpperZ; z++ {
				k := blockKey{x, y, z}
				if _, ok := idx.blocks[k]; !ok {
					continue
				}
				if err := idx.erase(k); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (idx *blockIndex[V]) flushAll() error {
	for _, k := range sortedKeys(idx.blocks) {
		if _, ok := idx.blocks[k]; !ok {
			continue // already erased by a nested call
		}
		if err := idx.erase(k); err != nil {
			return err
		}
	}
	return nil
}
