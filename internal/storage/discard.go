package storage

import "context"

// DiscardWriter drops every result. Selected by the skip-output switch so
// the pipeline behaves identically with or without persistence.
type DiscardWriter struct{}

func (DiscardWriter) WriteChromosome(context.Context, ChromosomeResult) error { return nil }
func (DiscardWriter) Close() error                                            { return nil }
