package volume

import (
	"errors"
	"testing"
)

func TestWrapCodecErrPreservesReasonFromCodec(t *testing.T) {
	codecErr := NewCodecError(Corrupt, "bad stream", nil)
	wrapped := wrapCodecErr("decompress block", codecErr)

	if wrapped.Kind != CodecError {
		t.Fatalf("got Kind %v, want CodecError", wrapped.Kind)
	}
	if wrapped.Reason == nil || *wrapped.Reason != Corrupt {
		t.Fatalf("got Reason %v, want Corrupt", wrapped.Reason)
	}
	if !errors.Is(wrapped, codecErr) {
		t.Fatalf("wrapped error should unwrap to the original codec error")
	}
}

func TestWrapCodecErrLeavesReasonNilForPlainErrors(t *testing.T) {
	wrapped := wrapCodecErr("page in block", errors.New("disk full"))
	if wrapped.Reason != nil {
		t.Fatalf("got Reason %v, want nil for a non-codec-originated error", wrapped.Reason)
	}
}

func TestCodecErrorReasonString(t *testing.T) {
	if OutOfSpace.String() != "OutOfSpace" {
		t.Fatalf("got %q, want OutOfSpace", OutOfSpace.String())
	}
	if Corrupt.String() != "Corrupt" {
		t.Fatalf("got %q, want Corrupt", Corrupt.String())
	}
}
