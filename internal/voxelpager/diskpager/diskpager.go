// Package diskpager implements a volume.Pager backed by one file per
// block under a directory, with a manifest.json describing the shape the
// directory was created for. It is grounded on the teacher's snapshot
// writer (os.MkdirAll + os.OpenFile, one artifact per logical unit) but
// trades the teacher's single-file-per-snapshot layout for one-file-per-
// block, since a volume's pages are paged in and out independently rather
// than all at once.
package diskpager

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JamesGbl/polyvox/internal/volume"
)

// blockHeaderLen is the size of the diagnostic header every block file
// carries ahead of its compressed payload: an 8-byte little-endian Unix
// timestamp recording when the block was last paged out. The volume's
// own last-accessed bookkeeping is authoritative for eviction; this
// header exists only so a block file can be inspected independently of
// the volume that wrote it.
const blockHeaderLen = 8

// Shape describes the geometry a manifest must match for a directory to
// be reused across process restarts.
type Shape struct {
	BlockSide      uint16
	VoxelSizeBytes int
	ValidRegion    volume.Region
	CodecName      string
}

type manifest struct {
	VolumeID       string `json:"volume_id"`
	BlockSide      int    `json:"block_side"`
	VoxelSizeBytes int    `json:"voxel_size_bytes"`
	ValidRegion    region `json:"valid_region"`
	Codec          string `json:"codec"`
}

type region struct {
	Lower [3]int32 `json:"lower"`
	Upper [3]int32 `json:"upper"`
}

// Pager is a volume.Pager that persists blocks as flat files under dir.
type Pager struct {
	dir      string
	shape    Shape
	codec    volume.Codec
	volumeID string
}

// Open opens (or creates) a disk-backed pager rooted at dir. If dir
// already contains a manifest.json, it is validated against schemaPath
// and checked for a shape match; otherwise a fresh manifest is written,
// minting a new volume_id. codec is used to fabricate zero-filled blocks
// on a cache miss and must be the same Codec the caller's Volume uses.
func Open(dir string, shape Shape, codec volume.Codec, schemaPath string) (*Pager, error) {
	if codec == nil {
		return nil, fmt.Errorf("diskpager: codec must not be nil")
	}
	if err := os.MkdirAll(filepath.Join(dir, "blocks"), 0o755); err != nil {
		return nil, fmt.Errorf("diskpager: mkdir: %w", err)
	}

	manifestPath := filepath.Join(dir, "manifest.json")
	existing, err := os.ReadFile(manifestPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("diskpager: read manifest: %w", err)
		}
		return create(dir, manifestPath, shape, codec)
	}
	return openExisting(dir, manifestPath, existing, shape, codec, schemaPath)
}

func create(dir, manifestPath string, shape Shape, codec volume.Codec) (*Pager, error) {
	m := manifest{
		VolumeID:       uuid.NewString(),
		BlockSide:      int(shape.BlockSide),
		VoxelSizeBytes: shape.VoxelSizeBytes,
		ValidRegion: region{
			Lower: [3]int32{shape.ValidRegion.LowerX, shape.ValidRegion.LowerY, shape.ValidRegion.LowerZ},
			Upper: [3]int32{shape.ValidRegion.UpperX, shape.ValidRegion.UpperY, shape.ValidRegion.UpperZ},
		},
		Codec: shape.CodecName,
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("diskpager: encode manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, raw, 0o644); err != nil {
		return nil, fmt.Errorf("diskpager: write manifest: %w", err)
	}
	return &Pager{dir: dir, shape: shape, codec: codec, volumeID: m.VolumeID}, nil
}

func openExisting(dir, manifestPath string, raw []byte, shape Shape, codec volume.Codec, schemaPath string) (*Pager, error) {
	if schemaPath != "" {
		sch, err := jsonschema.Compile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("diskpager: compile schema: %w", err)
		}
		var asAny any
		if err := json.Unmarshal(raw, &asAny); err != nil {
			return nil, fmt.Errorf("diskpager: decode manifest: %w", err)
		}
		if err := sch.Validate(asAny); err != nil {
			return nil, fmt.Errorf("diskpager: manifest failed schema validation: %w", err)
		}
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("diskpager: decode manifest: %w", err)
	}

	if m.BlockSide != int(shape.BlockSide) || m.VoxelSizeBytes != shape.VoxelSizeBytes {
		return nil, fmt.Errorf("diskpager: manifest shape mismatch: on disk block_side=%d voxel_size_bytes=%d, requested block_side=%d voxel_size_bytes=%d",
			m.BlockSide, m.VoxelSizeBytes, shape.BlockSide, shape.VoxelSizeBytes)
	}
	wantLower := [3]int32{shape.ValidRegion.LowerX, shape.ValidRegion.LowerY, shape.ValidRegion.LowerZ}
	wantUpper := [3]int32{shape.ValidRegion.UpperX, shape.ValidRegion.UpperY, shape.ValidRegion.UpperZ}
	if m.ValidRegion.Lower != wantLower || m.ValidRegion.Upper != wantUpper {
		return nil, fmt.Errorf("diskpager: manifest region mismatch: on disk %v..%v, requested %v..%v",
			m.ValidRegion.Lower, m.ValidRegion.Upper, wantLower, wantUpper)
	}

	return &Pager{dir: dir, shape: shape, codec: codec, volumeID: m.VolumeID}, nil
}

// VolumeID returns the manifest's persistent identifier for this
// directory, minted once on first creation.
func (p *Pager) VolumeID() string { return p.volumeID }

func (p *Pager) blockPath(reg volume.Region) string {
	name := fmt.Sprintf("%d_%d_%d.blk", reg.LowerX, reg.LowerY, reg.LowerZ)
	return filepath.Join(p.dir, "blocks", name)
}

// PageIn implements volume.Pager. A block file that does not exist yet
// means the region has never been written; PageIn then compresses a
// zero-filled S^3 block with the pager's codec, so the CompressedBlock
// always decompresses to a full block of default voxels as the Pager
// contract requires.
func (p *Pager) PageIn(region volume.Region, block *volume.CompressedBlock) error {
	raw, err := os.ReadFile(p.blockPath(region))
	if err != nil {
		if os.IsNotExist(err) {
			return p.pageInZero(block)
		}
		return fmt.Errorf("diskpager: read block: %w", err)
	}
	if len(raw) < blockHeaderLen {
		return fmt.Errorf("diskpager: block file shorter than %d-byte header", blockHeaderLen)
	}
	block.SetData(raw[blockHeaderLen:])
	return nil
}

func (p *Pager) pageInZero(block *volume.CompressedBlock) error {
	rawLen := int(p.shape.BlockSide) * int(p.shape.BlockSide) * int(p.shape.BlockSide) * p.shape.VoxelSizeBytes
	zero := make([]byte, rawLen)
	dst := make([]byte, volume.MaxCompressedLen(rawLen))
	n, err := p.codec.Compress(dst, zero)
	if err != nil {
		return fmt.Errorf("diskpager: compress zero block: %w", err)
	}
	block.SetData(append([]byte(nil), dst[:n]...))
	return nil
}

// PageOut implements volume.Pager. Each block file is the 8-byte
// last-paged-out header (see blockHeaderLen) followed by the
// CompressedBlock's raw bytes.
func (p *Pager) PageOut(region volume.Region, block *volume.CompressedBlock) error {
	data := block.Data()
	if len(data) == 0 {
		return nil
	}
	buf := make([]byte, blockHeaderLen+len(data))
	binary.LittleEndian.PutUint64(buf[:blockHeaderLen], uint64(time.Now().Unix()))
	copy(buf[blockHeaderLen:], data)

	tmp := p.blockPath(region) + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("diskpager: write block: %w", err)
	}
	if err := os.Rename(tmp, p.blockPath(region)); err != nil {
		return fmt.Errorf("diskpager: rename block: %w", err)
	}
	return nil
}

