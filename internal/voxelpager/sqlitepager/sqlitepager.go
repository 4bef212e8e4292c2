// Package sqlitepager implements a volume.Pager backed by a single
// SQLite table, grounded on the teacher's indexdb.SQLiteIndex: the same
// WAL pragmas and schema-on-open pattern, but synchronous. The teacher's
// pager funnels writes through a buffered channel and a background writer
// goroutine because many simulation goroutines produce ticks and audits
// concurrently; a Volume has exactly one caller and calls PageOut
// one block at a time, so there is no concurrent producer to decouple
// from and the indirection would only add latency.
package sqlitepager

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/JamesGbl/polyvox/internal/volume"
)

// Shape describes the block geometry a Pager needs in order to fabricate
// a zero-filled block on a cache miss, since the blocks table itself
// carries no shape metadata of its own.
type Shape struct {
	BlockSide      uint16
	VoxelSizeBytes int
}

// Pager is a volume.Pager backed by a SQLite database file.
type Pager struct {
	db    *sql.DB
	shape Shape
	codec volume.Codec
	tick  int64
}

// Open opens (creating if necessary) a SQLite-backed pager at path.
// codec is used to fabricate zero-filled blocks on a cache miss and must
// be the same Codec the caller's Volume uses.
func Open(path string, shape Shape, codec volume.Codec) (*Pager, error) {
	if codec == nil {
		return nil, fmt.Errorf("sqlitepager: codec must not be nil")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitepager: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Pager{db: db, shape: shape, codec: codec}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("sqlitepager: pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS blocks (
		bx INTEGER NOT NULL,
		by INTEGER NOT NULL,
		bz INTEGER NOT NULL,
		data BLOB NOT NULL,
		last_paged_tick INTEGER NOT NULL,
		PRIMARY KEY (bx, by, bz)
	);`)
	if err != nil {
		return fmt.Errorf("sqlitepager: create schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (p *Pager) Close() error { return p.db.Close() }

// PageIn implements volume.Pager. A missing row means the region has
// never been written; PageIn then compresses a zero-filled S^3 block
// with the pager's codec, so the CompressedBlock always decompresses to
// a full block of default voxels as the Pager contract requires.
func (p *Pager) PageIn(region volume.Region, block *volume.CompressedBlock) error {
	var data []byte
	row := p.db.QueryRow(`SELECT data FROM blocks WHERE bx = ? AND by = ? AND bz = ?`,
		region.LowerX, region.LowerY, region.LowerZ)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return p.pageInZero(block)
		}
		return fmt.Errorf("sqlitepager: select block: %w", err)
	}
	block.SetData(data)
	return nil
}

func (p *Pager) pageInZero(block *volume.CompressedBlock) error {
	rawLen := int(p.shape.BlockSide) * int(p.shape.BlockSide) * int(p.shape.BlockSide) * p.shape.VoxelSizeBytes
	zero := make([]byte, rawLen)
	dst := make([]byte, volume.MaxCompressedLen(rawLen))
	n, err := p.codec.Compress(dst, zero)
	if err != nil {
		return fmt.Errorf("sqlitepager: compress zero block: %w", err)
	}
	block.SetData(append([]byte(nil), dst[:n]...))
	return nil
}

// PageOut implements volume.Pager. last_paged_tick is a pager-local
// monotonic counter for diagnostics only; the volume's own last-accessed
// bookkeeping is authoritative for eviction.
func (p *Pager) PageOut(region volume.Region, block *volume.CompressedBlock) error {
	data := block.Data()
	if len(data) == 0 {
		return nil
	}
	p.tick++
	_, err := p.db.Exec(`INSERT OR REPLACE INTO blocks(bx, by, bz, data, last_paged_tick) VALUES (?, ?, ?, ?, ?)`,
		region.LowerX, region.LowerY, region.LowerZ, data, p.tick)
	if err != nil {
		return fmt.Errorf("sqlitepager: upsert block: %w", err)
	}
	return nil
}
