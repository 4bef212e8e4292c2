// Package zstdcodec adapts github.com/klauspost/compress/zstd to the
// volume.Codec contract: a pure buffer-to-buffer compressor with no framing
// or versioning of its own. It differs from a streaming zstd.Writer/Reader
// pair (the pattern used elsewhere in this module for on-disk logs) because
// a Codec's input is always exactly one block's worth of bytes, known in
// full before the call.
package zstdcodec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/JamesGbl/polyvox/internal/volume"
)

// Codec is a volume.Codec backed by a reusable zstd encoder/decoder pair.
// It is not safe for concurrent use, matching the single-goroutine contract
// the Volume it's attached to already assumes.
type Codec struct {
	enc   *zstd.Encoder
	dec   *zstd.Decoder
	level zstd.EncoderLevel
}

// Option configures a Codec at construction.
type Option func(*Codec)

// WithLevel overrides the default speed/ratio tradeoff (zstd.SpeedDefault).
func WithLevel(level zstd.EncoderLevel) Option {
	return func(c *Codec) { c.level = level }
}

// New builds a Codec. Callers must call Close when done with it to release
// the encoder and decoder's background resources.
func New(opts ...Option) (*Codec, error) {
	c := &Codec{level: zstd.SpeedDefault}
	for _, opt := range opts {
		opt(c)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return nil, fmt.Errorf("zstdcodec: new encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstdcodec: new decoder: %w", err)
	}
	c.enc, c.dec = enc, dec
	return c, nil
}

// Compress implements volume.Codec.
func (c *Codec) Compress(dst, src []byte) (int, error) {
	out := c.enc.EncodeAll(src, dst[:0])
	if len(out) > len(dst) {
		msg := fmt.Sprintf("destination too small: need %d, have %d", len(out), len(dst))
		return 0, volume.NewCodecError(volume.OutOfSpace, msg, nil)
	}
	if len(out) > 0 && len(dst) > 0 && &out[0] != &dst[0] {
		copy(dst, out)
	}
	return len(out), nil
}

// Decompress implements volume.Codec.
func (c *Codec) Decompress(dst, src []byte) (int, error) {
	out, err := c.dec.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, volume.NewCodecError(volume.Corrupt, "zstd stream failed to decode", err)
	}
	if len(out) > len(dst) {
		msg := fmt.Sprintf("destination too small: need %d, have %d", len(out), len(dst))
		return 0, volume.NewCodecError(volume.OutOfSpace, msg, nil)
	}
	if len(out) > 0 && &out[0] != &dst[0] {
		copy(dst, out)
	}
	return len(out), nil
}

// Close releases the underlying encoder and decoder.
func (c *Codec) Close() error {
	c.enc.Close()
	c.dec.Close()
	return nil
}
