// Package storage defines the writer interface the pipeline streams
// finished chromosomes to, plus the sqlite, TSV, memory and discard
// backends.
package storage

import (
	"context"

	"github.com/dakristia/modleFork/internal/cmatrix"
)

// ChromosomeResult is everything the writer receives for one finished
// chromosome. A nil Matrix signals a skipped chromosome; backends still
// record an empty entry for it.
type ChromosomeResult struct {
	Name    string
	Start   uint64
	End     uint64
	Size    uint64
	BinSize uint64
	Matrix  *cmatrix.Matrix[cmatrix.Count]
}

// Writer consumes finished chromosomes in completion order. WriteChromosome
// errors are fatal to the pipeline. Close flushes and releases the backend.
type Writer interface {
	WriteChromosome(ctx context.Context, res ChromosomeResult) error
	Close() error
}
