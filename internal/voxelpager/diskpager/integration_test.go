package diskpager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JamesGbl/polyvox/internal/volume"
)

func TestVolumeSurvivesCloseAndReopenThroughDiskPager(t *testing.T) {
	dir := t.TempDir()
	region := volume.NewRegion([3]int32{0, 0, 0}, [3]int32{63, 63, 63})
	shape := Shape{BlockSide: 8, VoxelSizeBytes: 1, ValidRegion: region, CodecName: "passthrough"}

	p1, err := Open(dir, shape, volume.DefaultCodec(), "")
	if err != nil {
		t.Fatalf("Open (first): %v", err)
	}
	vol1, err := volume.NewWithOptions[byte](region, volume.DefaultCodec(), p1, shape.BlockSide)
	if err != nil {
		t.Fatalf("NewWithOptions (first): %v", err)
	}
	if err := vol1.SetVoxelAt(1, 2, 3, 77); err != nil {
		t.Fatalf("SetVoxelAt: %v", err)
	}
	if err := vol1.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}

	p2, err := Open(dir, shape, volume.DefaultCodec(), "")
	if err != nil {
		t.Fatalf("Open (second): %v", err)
	}
	vol2, err := volume.NewWithOptions[byte](region, volume.DefaultCodec(), p2, shape.BlockSide)
	if err != nil {
		t.Fatalf("NewWithOptions (second): %v", err)
	}
	got, err := vol2.GetVoxelAt(1, 2, 3)
	if err != nil {
		t.Fatalf("GetVoxelAt: %v", err)
	}
	if got != 77 {
		t.Fatalf("got %d, want 77 (value must survive a close and reopen through the disk pager)", got)
	}
}

func TestManifestSchemaRejectsMalformedManifest(t *testing.T) {
	dir := t.TempDir()
	region := volume.NewRegion([3]int32{0, 0, 0}, [3]int32{15, 15, 15})
	shape := Shape{BlockSide: 8, VoxelSizeBytes: 1, ValidRegion: region, CodecName: "passthrough"}
	schemaPath := filepath.Join("..", "..", "..", "schemas", "manifest.schema.json")

	if _, err := Open(dir, shape, volume.DefaultCodec(), schemaPath); err != nil {
		t.Fatalf("initial Open: %v", err)
	}

	// Corrupt the manifest by removing a required field.
	manifestPath := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifestPath, []byte(`{"block_side": 8}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Open(dir, shape, volume.DefaultCodec(), schemaPath); err == nil {
		t.Fatalf("expected an error opening a manifest missing required fields")
	}
}
