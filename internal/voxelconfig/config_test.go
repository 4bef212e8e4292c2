package voxelconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volume.yaml")
	const body = `
block_side: 32
target_memory_limit_bytes: 67108864
codec: zstd
valid_region:
  lower: [0, 0, 0]
  upper: [1023, 255, 1023]
pager:
  kind: disk
  path: ./data
stats:
  listen_addr: 127.0.0.1:9090
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BlockSide != 32 {
		t.Fatalf("got BlockSide %d, want 32", c.BlockSide)
	}
	if c.Codec != "zstd" {
		t.Fatalf("got Codec %q, want zstd", c.Codec)
	}
	if c.ValidRegion.Upper != [3]int32{1023, 255, 1023} {
		t.Fatalf("got upper %v, want [1023 255 1023]", c.ValidRegion.Upper)
	}
	if c.Pager.Kind != "disk" || c.Pager.Path != "./data" {
		t.Fatalf("got pager %+v, want kind=disk path=./data", c.Pager)
	}
	if c.Stats.ListenAddr != "127.0.0.1:9090" {
		t.Fatalf("got listen addr %q, want 127.0.0.1:9090", c.Stats.ListenAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
