package app

import (
	"fmt"
	"os"
	"path/filepath"

	"vodfetch/internal/domain"
)

// Assembler is the single ordering authority of a title's download. Segments
// arrive in any order; it buffers out-of-order arrivals keyed by index and
// writes to the staging file strictly in index order, so index K hits disk
// only after 0..K-1 have. The buffer never grows past the scheduler's
// concurrency ceiling, since at most that many segments can run ahead of the
// frontier.
type Assembler struct {
	path    string
	file    *os.File
	total   int
	next    int
	pending map[int][]byte
}

// NewAssembler creates the staging file for a title of total segments.
func NewAssembler(stagingPath string, total int) (*Assembler, error) {
	if total <= 0 {
		return nil, fmt.Errorf("assembler: total segments must be positive, got %d", total)
	}
	if err := os.MkdirAll(filepath.Dir(stagingPath), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(stagingPath)
	if err != nil {
		return nil, err
	}
	return &Assembler{path: stagingPath, file: f, total: total, pending: make(map[int][]byte)}, nil
}

// Push accepts one completed segment and flushes the in-order frontier.
func (a *Assembler) Push(seg domain.AssembledSegment) error {
	if seg.Index < 0 || seg.Index >= a.total {
		return fmt.Errorf("assembler: index %d out of range [0,%d)", seg.Index, a.total)
	}
	if seg.Index < a.next {
		return fmt.Errorf("assembler: index %d already written", seg.Index)
	}
	if _, dup := a.pending[seg.Index]; dup {
		return fmt.Errorf("assembler: duplicate index %d", seg.Index)
	}
	a.pending[seg.Index] = seg.Data

	for {
		data, ok := a.pending[a.next]
		if !ok {
			return nil
		}
		if _, err := a.file.Write(data); err != nil {
			return err
		}
		delete(a.pending, a.next)
		a.next++
	}
}

// Complete closes the staging file and returns its path. It fails unless
// every index in [0,total) has been written.
func (a *Assembler) Complete() (string, error) {
	if a.next != a.total {
		_ = a.file.Close()
		return "", fmt.Errorf("assembler: incomplete, %d of %d segments written", a.next, a.total)
	}
	if err := a.file.Close(); err != nil {
		return "", err
	}
	return a.path, nil
}

// Abort discards the staged output and releases buffered segments.
func (a *Assembler) Abort() {
	_ = a.file.Close()
	_ = os.Remove(a.path)
	a.pending = nil
}

// Written reports how far the in-order frontier has advanced.
func (a *Assembler) Written() int { return a.next }
