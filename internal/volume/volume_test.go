package volume

import (
	"errors"
	"testing"
)

func mustNewU8(t *testing.T, region Region, blockSide uint16) *Volume[uint8] {
	t.Helper()
	v, err := New[uint8](region, blockSide)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestRoundTripWriteRead(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{63, 63, 63}), 16)

	if err := v.SetVoxelAt(5, 6, 7, 42); err != nil {
		t.Fatalf("SetVoxelAt: %v", err)
	}
	got, err := v.GetVoxelAt(5, 6, 7)
	if err != nil {
		t.Fatalf("GetVoxelAt: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestRoundTripSurvivesEviction(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{127, 127, 127}), 8)

	// Force every block to be uncompressed-cache-evicted on next touch by
	// capping the cache to a single entry, then writing into many distinct
	// blocks.
	v.SetMaxNumberOfUncompressedBlocks(1)

	if err := v.SetVoxelAt(1, 1, 1, 11); err != nil {
		t.Fatalf("SetVoxelAt block A: %v", err)
	}
	if err := v.SetVoxelAt(100, 100, 100, 22); err != nil {
		t.Fatalf("SetVoxelAt block B: %v", err)
	}

	got, err := v.GetVoxelAt(1, 1, 1)
	if err != nil {
		t.Fatalf("GetVoxelAt block A: %v", err)
	}
	if got != 11 {
		t.Fatalf("block A: got %d, want 11 (value must survive being pushed out of the uncompressed cache)", got)
	}

	got, err = v.GetVoxelAt(100, 100, 100)
	if err != nil {
		t.Fatalf("GetVoxelAt block B: %v", err)
	}
	if got != 22 {
		t.Fatalf("block B: got %d, want 22", got)
	}
}

func TestRoundTripSurvivesCompressedEviction(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{255, 255, 255}), 8)
	v.SetTargetMemoryLimitInBytes(4096) // tiny budget forces eviction of resident blocks

	if err := v.SetVoxelAt(0, 0, 0, 7); err != nil {
		t.Fatalf("SetVoxelAt: %v", err)
	}

	// Touch many distinct blocks to pressure the compressed-block budget.
	for i := int32(1); i < 64; i++ {
		x := i * 8
		if err := v.SetVoxelAt(x, 0, 0, uint8(i)); err != nil {
			t.Fatalf("SetVoxelAt(%d): %v", x, err)
		}
	}

	got, err := v.GetVoxelAt(0, 0, 0)
	if err != nil {
		t.Fatalf("GetVoxelAt origin: %v", err)
	}
	if got != 7 {
		t.Fatalf("origin block: got %d, want 7 (value must survive compressed-block eviction)", got)
	}

	if v.Stats().Evictions == 0 {
		t.Fatalf("expected at least one eviction under a tight memory limit")
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{15, 15, 15}), 8)

	_, err := v.GetVoxel(100, 0, 0, Validate)
	if err == nil {
		t.Fatalf("expected an error for an out-of-range coordinate under Validate")
	}
	var verr *Error
	if !errors.As(err, &verr) || verr.Kind != OutOfRange {
		t.Fatalf("got %v, want Kind OutOfRange", err)
	}
}

func TestClampRedirectsToValidRegion(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{15, 15, 15}), 8)

	if err := v.SetVoxelAt(15, 0, 0, 99); err != nil {
		t.Fatalf("SetVoxelAt: %v", err)
	}
	got, err := v.GetVoxel(1000, 0, 0, Clamp)
	if err != nil {
		t.Fatalf("GetVoxel under Clamp: %v", err)
	}
	if got != 99 {
		t.Fatalf("got %d, want 99 (clamp should have snapped x to 15)", got)
	}
}

func TestBorderReturnsConfiguredValue(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{15, 15, 15}), 8)
	v.SetBorderValue(255)

	got, err := v.GetVoxel(-1, 0, 0, Border)
	if err != nil {
		t.Fatalf("GetVoxel under Border: %v", err)
	}
	if got != 255 {
		t.Fatalf("got %d, want 255", got)
	}
}

func TestSetVoxelRejectsClampAndBorder(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{15, 15, 15}), 8)

	for _, mode := range []WrapMode{Clamp, Border} {
		err := v.SetVoxel(0, 0, 0, 1, mode)
		if err == nil {
			t.Fatalf("expected SetVoxel to reject wrap mode %s", mode)
		}
		var verr *Error
		if !errors.As(err, &verr) || verr.Kind != InvalidArgument {
			t.Fatalf("mode %s: got %v, want Kind InvalidArgument", mode, err)
		}
	}
}

func TestNewRejectsNonPowerOfTwoBlockSide(t *testing.T) {
	_, err := New[uint8](NewRegion([3]int32{0, 0, 0}, [3]int32{15, 15, 15}), 10)
	if err == nil {
		t.Fatalf("expected an error for a non-power-of-two block side")
	}
}

func TestNewWithOptionsRejectsNilCodec(t *testing.T) {
	_, err := NewWithOptions[uint8](NewRegion([3]int32{0, 0, 0}, [3]int32{15, 15, 15}), nil, &nilPager[uint8]{codec: passthroughCodec{}, blockSide: 8}, 8)
	if err == nil {
		t.Fatalf("expected an error for a nil codec")
	}
}

func TestNewWithOptionsRejectsNilPager(t *testing.T) {
	_, err := NewWithOptions[uint8](NewRegion([3]int32{0, 0, 0}, [3]int32{15, 15, 15}), passthroughCodec{}, nil, 8)
	if err == nil {
		t.Fatalf("expected an error for a nil pager")
	}
}

func TestPrefetchSkipsAlreadyUncompressedBlocks(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{31, 31, 31}), 8)

	if err := v.SetVoxelAt(0, 0, 0, 1); err != nil {
		t.Fatalf("SetVoxelAt: %v", err)
	}
	before := v.cache.len()

	if err := v.Prefetch(NewRegion([3]int32{0, 0, 0}, [3]int32{31, 31, 31})); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}

	if v.cache.len() < before {
		t.Fatalf("prefetch should not shrink the uncompressed cache")
	}
	got, err := v.GetVoxelAt(0, 0, 0)
	if err != nil {
		t.Fatalf("GetVoxelAt: %v", err)
	}
	if got != 1 {
		t.Fatalf("got %d, want 1 (prefetch must not clobber an existing dirty block)", got)
	}
}

func TestPrefetchLeavesBlocksCompressed(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{31, 31, 31}), 8)

	before := v.cache.len()
	if err := v.Prefetch(NewRegion([3]int32{0, 0, 0}, [3]int32{31, 31, 31})); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}

	if got := v.cache.len(); got != before {
		t.Fatalf("got uncompressed cache size %d after Prefetch, want unchanged at %d: prefetch must not decompress", got, before)
	}
	k := blockKey{0, 0, 0}
	if _, ok := v.index.blocks[k]; !ok {
		t.Fatalf("expected block %+v to be resident in the compressed index after Prefetch", k)
	}
}

func TestFlushAllIsIdempotent(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{63, 63, 63}), 8)

	if err := v.SetVoxelAt(0, 0, 0, 9); err != nil {
		t.Fatalf("SetVoxelAt: %v", err)
	}
	if err := v.FlushAll(); err != nil {
		t.Fatalf("first FlushAll: %v", err)
	}
	if err := v.FlushAll(); err != nil {
		t.Fatalf("second FlushAll: %v", err)
	}

	got, err := v.GetVoxelAt(0, 0, 0)
	if err != nil {
		t.Fatalf("GetVoxelAt after flush: %v", err)
	}
	if got != 9 {
		t.Fatalf("got %d, want 9 (value must survive a flush + reload from the nil pager)", got)
	}
}

func TestCalculateCompressionRatioIsZeroWhenEmpty(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{15, 15, 15}), 8)
	if ratio := v.CalculateCompressionRatio(); ratio != 0 {
		t.Fatalf("got ratio %f, want 0 before any block is touched", ratio)
	}
}

func TestStatsReflectsResidentBlocks(t *testing.T) {
	v := mustNewU8(t, NewRegion([3]int32{0, 0, 0}, [3]int32{63, 63, 63}), 8)
	if err := v.SetVoxelAt(0, 0, 0, 1); err != nil {
		t.Fatalf("SetVoxelAt: %v", err)
	}
	if err := v.SetVoxelAt(40, 0, 0, 2); err != nil {
		t.Fatalf("SetVoxelAt: %v", err)
	}
	stats := v.Stats()
	if stats.ResidentBlocks != 2 {
		t.Fatalf("got %d resident blocks, want 2", stats.ResidentBlocks)
	}
	if stats.UncompressedBlocks != 2 {
		t.Fatalf("got %d uncompressed blocks, want 2", stats.UncompressedBlocks)
	}
}
