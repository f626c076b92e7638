package ffmpeg

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"vodfetch/internal/domain"
)

func TestMuxArgsCopyWithoutReencode(t *testing.T) {
	args := muxArgs("in.ts", "out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-i in.ts") {
		t.Fatalf("input missing from args: %v", args)
	}
	if !strings.Contains(joined, "-c copy") {
		t.Fatalf("stream copy missing from args: %v", args)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("output must be last arg: %v", args)
	}
}

func TestMuxMissingBinaryReturnsMuxError(t *testing.T) {
	m := NewMuxer().WithBinary(filepath.Join(t.TempDir(), "no-such-ffmpeg"))
	err := m.Mux(context.Background(), "in.ts", "out.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	var muxErr *domain.MuxError
	if !errors.As(err, &muxErr) {
		t.Fatalf("expected MuxError, got %T: %v", err, err)
	}
	if muxErr.Output != "out.mp4" {
		t.Fatalf("unexpected output path %q", muxErr.Output)
	}
}
