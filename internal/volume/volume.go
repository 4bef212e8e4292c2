package volume

// Stats is a point-in-time snapshot of a Volume's cache occupancy, exposed
// for the stats server and volumectl. It has no effect on behaviour.
type Stats struct {
	ResidentBlocks     int
	CompressedBytes    int64
	UncompressedBlocks int
	Evictions          uint64
	CompressionRatio   float64
}

// nilPager is the default Pager used by New when the caller has no
// external backing store. It keeps every evicted block in an in-memory
// map keyed by region, so a Volume backed by it behaves as if nothing
// were ever really evicted — only its two-tier cache shrinks. PageIn
// fabricates an all-zero block the first time a region is seen.
type nilPager[V any] struct {
	codec     Codec
	blockSide uint16
	store     map[Region][]byte
}

func (p *nilPager[V]) PageIn(region Region, block *CompressedBlock) error {
	if data, ok := p.store[region]; ok {
		block.SetData(data)
		return nil
	}
	zero := newUncompressedBlock[V](p.blockSide)
	src := zero.RawBytes()
	dst := make([]byte, maxCompressedLen(len(src)))
	n, err := p.codec.Compress(dst, src)
	if err != nil {
		return wrapCodecErr("compress zero block", err)
	}
	block.SetData(append([]byte(nil), dst[:n]...))
	return nil
}

func (p *nilPager[V]) PageOut(region Region, block *CompressedBlock) error {
	if p.store == nil {
		p.store = make(map[Region][]byte)
	}
	p.store[region] = append([]byte(nil), block.Data()...)
	return nil
}

// Volume is a sparse, block-paged, lazily-compressed store of voxels of
// type V over a fixed valid Region. It is not safe for concurrent use;
// callers needing concurrency must serialize access themselves (see
// statsserver for the pattern this library expects).
type Volume[V any] struct {
	validRegion       Region
	validRegionBlocks Region

	blockSide      uint16
	blockSidePower uint

	codec     Codec
	ownsCodec bool
	pager     Pager

	index *blockIndex[V]
	cache *uncompressedCache[V]

	timestamp uint32

	borderValue V

	longestSide    int64
	shortestSide   int64
	diagonalLength float64
}

const defaultBlockSide = 32

// New constructs a Volume over validRegion backed by memory only: no
// external Pager, no real compression. It is meant for tests and small
// volumes; production callers should use NewWithOptions with a real Codec
// and Pager.
func New[V any](validRegion Region, blockSide uint16) (*Volume[V], error) {
	if blockSide == 0 {
		blockSide = defaultBlockSide
	}
	codec := passthroughCodec{}
	pager := &nilPager[V]{codec: codec, blockSide: blockSide}
	v, err := newVolume[V](validRegion, codec, pager, blockSide)
	if err != nil {
		return nil, err
	}
	v.ownsCodec = true
	return v, nil
}

// NewWithOptions constructs a Volume over validRegion using the supplied
// Codec and Pager. Both must be non-nil.
func NewWithOptions[V any](validRegion Region, codec Codec, pager Pager, blockSide uint16) (*Volume[V], error) {
	if codec == nil {
		return nil, newErr(InvalidArgument, "codec must not be nil")
	}
	if pager == nil {
		return nil, newErr(InvalidArgument, "pager must not be nil")
	}
	if blockSide == 0 {
		blockSide = defaultBlockSide
	}
	return newVolume[V](validRegion, codec, pager, blockSide)
}

func newVolume[V any](validRegion Region, codec Codec, pager Pager, blockSide uint16) (*Volume[V], error) {
	if !isPowerOfTwo(blockSide) {
		return nil, newErr(InvalidArgument, "blockSide must be a power of two")
	}

	v := &Volume[V]{
		validRegion:    validRegion,
		blockSide:      blockSide,
		blockSidePower: log2OfPowerOfTwo(blockSide),
		codec:          codec,
		pager:          pager,
	}

	v.validRegionBlocks = validRegion.ShiftedByBlockPower(v.blockSidePower)

	v.cache = newUncompressedCache[V](codec, blockSide)
	v.index = newBlockIndex[V](pager, v.cache, blockSide, v.nextTimestamp)

	v.longestSide = validRegion.LongestSide()
	v.shortestSide = validRegion.ShortestSide()
	v.diagonalLength = validRegion.DiagonalLength()

	return v, nil
}

func (v *Volume[V]) nextTimestamp() uint32 {
	v.timestamp++
	return v.timestamp
}

// ValidRegion returns the region of voxel coordinates this Volume accepts.
func (v *Volume[V]) ValidRegion() Region { return v.validRegion }

// LongestSide, ShortestSide, and DiagonalLength report fixed geometric
// properties of ValidRegion, computed once at construction.
func (v *Volume[V]) LongestSide() int64      { return v.longestSide }
func (v *Volume[V]) ShortestSide() int64     { return v.shortestSide }
func (v *Volume[V]) DiagonalLength() float64 { return v.diagonalLength }

// BorderValue returns the voxel value returned for out-of-range reads
// under WrapBorder.
func (v *Volume[V]) BorderValue() V { return v.borderValue }

// SetBorderValue sets the voxel value returned for out-of-range reads
// under WrapBorder.
func (v *Volume[V]) SetBorderValue(value V) { v.borderValue = value }

func (v *Volume[V]) blockKeyFor(x, y, z int32) blockKey {
	return blockKey{
		BX: x >> v.blockSidePower,
		BY: y >> v.blockSidePower,
		BZ: z >> v.blockSidePower,
	}
}

func (v *Volume[V]) offsetWithinBlock(x, y, z int32) (ox, oy, oz uint16) {
	mask := int32(v.blockSide) - 1
	return uint16(x & mask), uint16(y & mask), uint16(z & mask)
}

// clampToValidRegion clamps x, y, z independently into validRegion.
func (v *Volume[V]) clampToValidRegion(x, y, z int32) (int32, int32, int32) {
	r := v.validRegion
	cx := clampI32(x, r.LowerX, r.UpperX)
	cy := clampI32(y, r.LowerY, r.UpperY)
	cz := clampI32(z, r.LowerZ, r.UpperZ)
	return cx, cy, cz
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GetVoxel reads the voxel at (x, y, z), applying the given WrapMode for
// coordinates outside ValidRegion. WrapAssumeValid skips the bounds check
// entirely and is only safe when the caller already knows the coordinate
// is in range.
func (v *Volume[V]) GetVoxel(x, y, z int32, mode WrapMode) (V, error) {
	var zero V
	switch mode {
	case Validate:
		if !v.validRegion.ContainsPoint(x, y, z) {
			return zero, newErr(OutOfRange, "coordinate outside valid region")
		}
	case Clamp:
		x, y, z = v.clampToValidRegion(x, y, z)
	case Border:
		if !v.validRegion.ContainsPoint(x, y, z) {
			return v.borderValue, nil
		}
	case AssumeValid:
		// no check
	default:
		return zero, newErr(InvalidArgument, "unknown wrap mode")
	}
	return v.getVoxelUnchecked(x, y, z)
}

// GetVoxelAt is GetVoxel under WrapAssumeValid, matching spec.md's
// unchecked fast-path accessor.
func (v *Volume[V]) GetVoxelAt(x, y, z int32) (V, error) {
	return v.getVoxelUnchecked(x, y, z)
}

func (v *Volume[V]) getVoxelUnchecked(x, y, z int32) (V, error) {
	var zero V
	k := v.blockKeyFor(x, y, z)
	compressed, err := v.index.getCompressed(k)
	if err != nil {
		return zero, err
	}
	ub, err := v.cache.get(k, compressed)
	if err != nil {
		return zero, err
	}
	ox, oy, oz := v.offsetWithinBlock(x, y, z)
	return ub.Get(ox, oy, oz), nil
}

// SetVoxel writes value at (x, y, z). Only WrapValidate and
// WrapAssumeValid are accepted for writes; Clamp and Border silently
// redirect or discard writes, which spec.md forbids as ambiguous.
func (v *Volume[V]) SetVoxel(x, y, z int32, value V, mode WrapMode) error {
	switch mode {
	case Validate:
		if !v.validRegion.ContainsPoint(x, y, z) {
			return newErr(OutOfRange, "coordinate outside valid region")
		}
	case AssumeValid:
		// no check
	case Clamp, Border:
		return newErr(InvalidArgument, "wrap mode not valid for writes")
	default:
		return newErr(InvalidArgument, "unknown wrap mode")
	}
	return v.setVoxelUnchecked(x, y, z, value)
}

// SetVoxelAt is SetVoxel under WrapAssumeValid.
func (v *Volume[V]) SetVoxelAt(x, y, z int32, value V) error {
	return v.setVoxelUnchecked(x, y, z, value)
}

func (v *Volume[V]) setVoxelUnchecked(x, y, z int32, value V) error {
	k := v.blockKeyFor(x, y, z)
	compressed, err := v.index.getCompressed(k)
	if err != nil {
		return err
	}
	ub, err := v.cache.get(k, compressed)
	if err != nil {
		return err
	}
	ox, oy, oz := v.offsetWithinBlock(x, y, z)
	ub.Set(ox, oy, oz, value)
	return nil
}

// SetTargetMemoryLimitInBytes bounds resident compressed bytes, deriving a
// matching bound on uncompressed blocks the same way the original library
// does: an "ideal" uncompressed working set sized to one slab of the
// region, capped at half the byte budget, with the remainder left for
// compressed residency. Setting this clears the uncompressed cache.
func (v *Volume[V]) SetTargetMemoryLimitInBytes(bytes int64) {
	widthBlocks := v.validRegionBlocks.WidthInVoxels()
	heightBlocks := v.validRegionBlocks.HeightInVoxels()
	depthBlocks := v.validRegionBlocks.DepthInVoxels()

	// "One slab" means the largest of the three axis-pair cross-sections,
	// so the ideal count doesn't depend on which axis happens to be
	// labelled width/height/depth for a given region.
	idealUncompressedCount := widthBlocks * heightBlocks
	if v := widthBlocks * depthBlocks; v > idealUncompressedCount {
		idealUncompressedCount = v
	}
	if v := heightBlocks * depthBlocks; v > idealUncompressedCount {
		idealUncompressedCount = v
	}
	if idealUncompressedCount < 1 {
		idealUncompressedCount = 1
	}

	uncompressedBlockBytes := int64(v.blockSide) * int64(v.blockSide) * int64(v.blockSide) * int64(voxelSizeBytes[V]())
	if uncompressedBlockBytes < 1 {
		uncompressedBlockBytes = 1
	}

	capUncompressedCount := (bytes / 2) / uncompressedBlockBytes
	if capUncompressedCount < 1 {
		capUncompressedCount = 1
	}

	maxUncompressed := idealUncompressedCount
	if capUncompressedCount < maxUncompressed {
		maxUncompressed = capUncompressedCount
	}

	v.cache.setMaxEntries(int(maxUncompressed))

	compressedBudget := bytes - maxUncompressed*uncompressedBlockBytes
	if compressedBudget < 0 {
		compressedBudget = 0
	}
	v.index.compressedBudget = compressedBudget
}

// SetMaxNumberOfUncompressedBlocks sets a direct bound on the number of
// simultaneously-uncompressed blocks, bypassing the byte-budget
// derivation in SetTargetMemoryLimitInBytes. Setting this clears the
// uncompressed cache.
func (v *Volume[V]) SetMaxNumberOfUncompressedBlocks(n int) {
	v.cache.setMaxEntries(n)
}

// Prefetch pages every block intersecting region into the index up front,
// so that subsequent reads and writes in that region do not pay a PageIn
// cost. It deliberately leaves every block compressed rather than
// decompressing it into the uncompressed cache, since the prefetched
// region may exceed the uncompressed cache's capacity; a read or write
// still decompresses on first touch as usual. Blocks already resident
// (compressed or not) are left untouched.
func (v *Volume[V]) Prefetch(region Region) error {
	clamped, ok := region.Intersect(v.validRegion)
	if !ok {
		return nil
	}
	blocksRegion := clamped.ShiftedByBlockPower(v.blockSidePower)

	for x := blocksRegion.LowerX; x <= blocksRegion.UpperX; x++ {
		for y := blocksRegion.LowerY; y <= blocksRegion.UpperY; y++ {
			for z := blocksRegion.LowerZ; z <= blocksRegion.UpperZ; z++ {
				k := blockKey{x, y, z}
				if v.cache.peek(k) != nil {
					continue
				}
				if _, err := v.index.getCompressed(k); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Flush re-compresses and evicts every resident block intersecting
// region, writing dirty blocks back through the Pager.
func (v *Volume[V]) Flush(region Region) error {
	clamped, ok := region.Intersect(v.validRegion)
	if !ok {
		return nil
	}
	blocksRegion := clamped.ShiftedByBlockPower(v.blockSidePower)
	return v.index.flushRegion(blocksRegion)
}

// FlushAll re-compresses and evicts every resident block, writing dirty
// blocks back through the Pager. Callers that own an external Pager
// should call this before discarding a Volume, since Go has no
// destructor to do it for them.
func (v *Volume[V]) FlushAll() error {
	return v.index.flushAll()
}

// CalculateSizeInBytes returns the current total size of resident data:
// compressed block bytes plus uncompressed block bytes.
func (v *Volume[V]) CalculateSizeInBytes() int64 {
	uncompressedBlockBytes := int64(v.blockSide) * int64(v.blockSide) * int64(v.blockSide) * int64(voxelSizeBytes[V]())
	return v.index.totalCompressedBytes() + int64(v.cache.len())*uncompressedBlockBytes
}

// CalculateCompressionRatio returns the ratio of uncompressed bytes to
// compressed bytes across currently-resident blocks, or 0 if nothing is
// resident or nothing is compressed.
func (v *Volume[V]) CalculateCompressionRatio() float64 {
	compressed := v.index.totalCompressedBytes()
	if compressed == 0 {
		return 0
	}
	uncompressedBlockBytes := int64(v.blockSide) * int64(v.blockSide) * int64(v.blockSide) * int64(voxelSizeBytes[V]())
	uncompressed := int64(len(v.index.blocks)) * uncompressedBlockBytes
	return float64(uncompressed) / float64(compressed)
}

// Close releases resources owned exclusively by this Volume — currently
// just the default Codec New constructs. A Volume built with
// NewWithOptions doesn't own its Codec, so Close is a no-op for it; the
// caller that supplied the Codec is responsible for closing it.
func (v *Volume[V]) Close() error {
	if !v.ownsCodec {
		return nil
	}
	if c, ok := v.codec.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Stats returns a snapshot of cache occupancy and eviction counters.
func (v *Volume[V]) Stats() Stats {
	return Stats{
		ResidentBlocks:     len(v.index.blocks),
		CompressedBytes:    v.index.totalCompressedBytes(),
		UncompressedBlocks: v.cache.len(),
		Evictions:          v.index.evictions,
		CompressionRatio:   v.CalculateCompressionRatio(),
	}
}
