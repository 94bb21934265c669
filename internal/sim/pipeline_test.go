package sim

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/dakristia/modleFork/internal/config"
	"github.com/dakristia/modleFork/internal/genome"
	"github.com/dakristia/modleFork/internal/storage"
)

func pipelineConfig() config.Config {
	cfg := config.Default()
	cfg.BinSize = 1_000
	cfg.DiagonalWidth = 10_000
	cfg.NumCells = 2
	cfg.NumLefs = 5
	cfg.LefsPerMbp = 0
	cfg.AvgLefLifetime = 100_000
	cfg.RevExtrusionSpeed = 500
	cfg.RevExtrusionSpeedStd = 0
	cfg.FwdExtrusionSpeed = 500
	cfg.FwdExtrusionSpeedStd = 0
	cfg.TargetContactDensity = 0
	cfg.SimulationIterations = 50
	cfg.ContactSamplingInterval = 1
	cfg.SkipBurnin = true
	cfg.NThreads = 2
	cfg.Seed = 123
	return cfg
}

func pipelineGenome(t *testing.T) *genome.Genome {
	t.Helper()
	g, err := genome.New(
		[]genome.ChromRecord{
			{Name: "chr1", Start: 0, End: 100_000, Size: 100_000},
			{Name: "chr2", Start: 0, End: 80_000, Size: 80_000},
			{Name: "chrKO", Start: 0, End: 50_000, Size: 50_000},
		},
		[]genome.BarrierRecord{
			{Chrom: "chr1", Pos: 30_000, Strand: '+', Occupancy: 0.8},
			{Chrom: "chr1", Pos: 70_000, Strand: '-', Occupancy: 0.8},
			{Chrom: "chr2", Pos: 40_000, Strand: '+', Occupancy: 0.8},
		},
		genome.BarrierOpts{NotOccupiedSelfProb: 0.7},
	)
	if err != nil {
		t.Fatalf("pipeline genome: %v", err)
	}
	return g
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func runPipeline(t *testing.T, cfg config.Config) []storage.ChromosomeResult {
	t.Helper()
	kernel, err := New(&cfg)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	w := storage.NewMemoryWriter()
	p := NewPipeline(kernel, pipelineGenome(t), w, quietLogger())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return w.Results()
}

func TestPipelineEmitsEveryChromosome(t *testing.T) {
	results := runPipeline(t, pipelineConfig())
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	byName := make(map[string]storage.ChromosomeResult)
	for _, res := range results {
		byName[res.Name] = res
	}
	for _, name := range []string{"chr1", "chr2"} {
		res, ok := byName[name]
		if !ok {
			t.Fatalf("%s missing from results", name)
		}
		if res.Matrix == nil {
			t.Fatalf("%s emitted without a matrix", name)
		}
		if res.Matrix.TotContacts() == 0 {
			t.Fatalf("%s has no contacts", name)
		}
	}
	ko, ok := byName["chrKO"]
	if !ok {
		t.Fatal("barrier-free chromosome missing from results")
	}
	if ko.Matrix != nil {
		t.Fatal("barrier-free chromosome emitted with a matrix")
	}
}

func TestPipelineSimulatesKOChromsWhenRequested(t *testing.T) {
	cfg := pipelineConfig()
	cfg.WriteContactsForKOChroms = true
	results := runPipeline(t, cfg)
	for _, res := range results {
		if res.Name == "chrKO" && res.Matrix == nil {
			t.Fatal("KO chromosome skipped despite write_contacts_for_ko_chroms")
		}
	}
}

func TestPipelineIsDeterministicAcrossThreadCounts(t *testing.T) {
	totals := func(results []storage.ChromosomeResult) map[string]uint64 {
		out := make(map[string]uint64)
		for _, res := range results {
			if res.Matrix != nil {
				out[res.Name] = res.Matrix.TotContacts()
			}
		}
		return out
	}

	cfg1 := pipelineConfig()
	cfg1.NThreads = 1
	cfg4 := pipelineConfig()
	cfg4.NThreads = 4

	a := totals(runPipeline(t, cfg1))
	b := totals(runPipeline(t, cfg4))
	if len(a) != len(b) {
		t.Fatalf("result counts differ: %d vs %d", len(a), len(b))
	}
	for name, tot := range a {
		if b[name] != tot {
			t.Fatalf("%s: %d contacts with 1 thread, %d with 4", name, tot, b[name])
		}
	}
}

func TestPipelineContactDensityTarget(t *testing.T) {
	cfg := pipelineConfig()
	cfg.SimulationIterations = 0
	cfg.TargetContactDensity = 0.05
	results := runPipeline(t, cfg)
	for _, res := range results {
		if res.Matrix == nil {
			continue
		}
		target := uint64(cfg.TargetContactDensity * float64(res.Matrix.Nrows()*res.Matrix.Ncols()))
		if res.Matrix.TotContacts() < target {
			t.Fatalf("%s: %d contacts below target %d", res.Name, res.Matrix.TotContacts(), target)
		}
	}
}

func TestPipelineDeallocatesMatrices(t *testing.T) {
	cfg := pipelineConfig()
	kernel, err := New(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	g := pipelineGenome(t)
	w := storage.NewMemoryWriter()
	if err := NewPipeline(kernel, g, w, quietLogger()).Run(context.Background()); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	for _, chrom := range g.Chromosomes() {
		if chrom.Contacts() != nil {
			t.Fatalf("%s: matrix still allocated after write", chrom.Name())
		}
	}
}

func TestPipelineStopsOnCanceledContext(t *testing.T) {
	cfg := pipelineConfig()
	kernel, err := New(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPipeline(kernel, pipelineGenome(t), storage.NewMemoryWriter(), quietLogger())
	if err := p.Run(ctx); err == nil {
		t.Fatal("pipeline ignored canceled context")
	}
}
