package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"vodfetch/internal/domain"
)

// Muxer remuxes a staged transport stream into its final container with
// ffmpeg, copying streams without re-encoding.
type Muxer struct {
	binary string
}

func NewMuxer() *Muxer {
	return &Muxer{binary: "ffmpeg"}
}

func (m *Muxer) WithBinary(path string) *Muxer {
	if path != "" {
		m.binary = path
	}
	return m
}

func muxArgs(input, output string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", input,
		"-c", "copy",
		output,
	}
}

func (m *Muxer) Mux(ctx context.Context, input, output string) error {
	cmd := exec.CommandContext(ctx, m.binary, muxArgs(input, output)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := err
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			detail = fmt.Errorf("%w: %s", err, msg)
		}
		return &domain.MuxError{Output: output, Err: detail}
	}
	return nil
}
