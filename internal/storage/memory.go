package storage

import (
	"context"
	"sync"
)

// MemoryWriter keeps results in memory, in arrival order. Used by tests and
// by callers that post-process matrices instead of persisting them.
type MemoryWriter struct {
	mu      sync.Mutex
	results []ChromosomeResult
	closed  bool
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (w *MemoryWriter) WriteChromosome(_ context.Context, res ChromosomeResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.results = append(w.results, res)
	return nil
}

func (w *MemoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	return nil
}

func (w *MemoryWriter) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *MemoryWriter) Results() []ChromosomeResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]ChromosomeResult, len(w.results))
	copy(out, w.results)
	return out
}
