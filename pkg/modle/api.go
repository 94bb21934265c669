// Package modle is the public entry point for running loop-extrusion
// simulations programmatically. It wires the genome model, the extrusion
// kernel and a writer backend into a single call.
package modle

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dakristia/modleFork/internal/config"
	"github.com/dakristia/modleFork/internal/genome"
	"github.com/dakristia/modleFork/internal/sim"
	"github.com/dakristia/modleFork/internal/storage"
)

// Config re-exports the core parameter set.
type Config = config.Config

// DefaultConfig returns the baseline parameters.
func DefaultConfig() Config { return config.Default() }

// ChromRecord and BarrierRecord are the parsed inputs the core consumes.
type (
	ChromRecord   = genome.ChromRecord
	BarrierRecord = genome.BarrierRecord
)

// Writer is the sink finished chromosomes stream to.
type Writer = storage.Writer

// ChromosomeResult is what a Writer receives per finished chromosome.
type ChromosomeResult = storage.ChromosomeResult

// NewWriter builds a writer backend: "sqlite", "tsv", "memory" or
// "discard".
func NewWriter(ctx context.Context, kind, path string) (Writer, error) {
	return storage.New(ctx, kind, path)
}

// Run builds the genome from the given records and simulates every
// chromosome to its stopping target, streaming results to w. The writer is
// left open for the caller to close.
func Run(ctx context.Context, cfg Config, chroms []ChromRecord, bars []BarrierRecord, w Writer, log *logrus.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	g, err := genome.New(chroms, bars, genome.BarrierOpts{
		OccupiedSelfProb:    cfg.CTCFOccupiedSelfProb,
		NotOccupiedSelfProb: cfg.CTCFNotOccupiedSelfProb,
	})
	if err != nil {
		return err
	}
	if cfg.SkipOutput {
		w = storage.DiscardWriter{}
	}
	kernel, err := sim.New(&cfg)
	if err != nil {
		return err
	}
	return sim.NewPipeline(kernel, g, w, log).Run(ctx)
}
