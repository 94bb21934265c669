package storage

import (
	"context"
	"fmt"
)

// New builds a writer backend by kind: "sqlite", "tsv", "memory" or
// "discard".
func New(ctx context.Context, kind, path string) (Writer, error) {
	switch kind {
	case "sqlite":
		w := NewSQLiteWriter(path)
		if err := w.Init(ctx); err != nil {
			return nil, err
		}
		return w, nil
	case "tsv":
		return NewTSVWriter(path)
	case "", "memory":
		return NewMemoryWriter(), nil
	case "discard":
		return DiscardWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported writer backend: %s", kind)
	}
}
