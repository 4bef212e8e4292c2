package volume

// DefaultCodec returns the zero-dependency Codec New uses when no
// explicit Codec is supplied, for callers that want to pass it to
// NewWithOptions explicitly (e.g. to pair it with a real Pager while
// deferring a real Codec).
func DefaultCodec() Codec { return passthroughCodec{} }

// passthroughCodec is the zero-dependency Codec used by New when the
// caller doesn't supply one. It performs no compression at all — it is a
// placeholder, not a recommendation; callers that care about memory
// should construct with NewWithOptions and a real Codec such as the one
// in package zstdcodec.

type passthroughCodec struct{}

func (passthroughCodec) Compress(dst, src []byte) (int, error) {
	if len(dst) < len(src) {
		return 0, NewCodecError(OutOfSpace, "destination buffer too small", nil)
	}
	copy(dst, src)
	return len(src), nil
}

func (passthroughCodec) Decompress(dst, src []byte) (int, error) {
	if len(dst) < len(src) {
		return 0, NewCodecError(OutOfSpace, "destination buffer too small", nil)
	}
	copy(dst, src)
	return len(src), nil
}
