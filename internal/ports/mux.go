package ports

import "context"

// Muxer turns an assembled segment stream into the final playable container.
// Implementations wrap an external tool; MuxError classification is the
// caller's concern.
type Muxer interface {
	Mux(ctx context.Context, inputPath, outputPath string) error
}
