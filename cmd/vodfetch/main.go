package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"vodfetch/internal/domain"
)

// Exit codes: 0 success, 1 download failed, 2 query not resolvable,
// 3 internal error.
const (
	exitOK             = 0
	exitDownloadFailed = 1
	exitBadQuery       = 2
	exitInternal       = 3
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var notFound *domain.NotFoundError
	var ambiguous *domain.AmbiguousQueryError
	switch {
	case errors.As(err, &notFound), errors.As(err, &ambiguous):
		return exitBadQuery
	case errors.Is(err, errDownloadFailed):
		return exitDownloadFailed
	default:
		return exitInternal
	}
}
