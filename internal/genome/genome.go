// Package genome models the simulated chromosomes: ranges, extrusion
// barriers and optional feature annotations. The package consumes
// already-parsed interval records; file parsing lives in bedio.
package genome

import (
	"fmt"
	"sort"

	"github.com/dakristia/modleFork/internal/barriers"
	"github.com/dakristia/modleFork/internal/cmatrix"
)

// ChromRecord is one already-parsed chromosome entry. Start and End bound
// the simulated range; Size is the full chromosome length.
type ChromRecord struct {
	Name  string
	Start uint64
	End   uint64
	Size  uint64
}

// BarrierRecord is one already-parsed extrusion-barrier entry. Strand '+'
// maps to a fwd-blocking barrier, '-' to rev-blocking; any other strand is
// rejected.
type BarrierRecord struct {
	Chrom     string
	Pos       uint64
	Strand    byte
	Occupancy float64
}

// Interval is a half-open feature annotation used by targeted simulations.
type Interval struct {
	Start uint64
	End   uint64
	Name  string
}

type Chromosome struct {
	name  string
	size  uint64
	start uint64
	end   uint64

	barriers []barriers.Barrier
	features [][]Interval

	contacts *cmatrix.Matrix[cmatrix.Count]
}

func (c *Chromosome) Name() string                 { return c.name }
func (c *Chromosome) Size() uint64                 { return c.size }
func (c *Chromosome) Start() uint64                { return c.start }
func (c *Chromosome) End() uint64                  { return c.end }
func (c *Chromosome) SimulatedSize() uint64        { return c.end - c.start }
func (c *Chromosome) Barriers() []barriers.Barrier { return c.barriers }
func (c *Chromosome) NBarriers() int               { return len(c.barriers) }
func (c *Chromosome) Features() [][]Interval       { return c.features }

func (c *Chromosome) AddFeatures(feats []Interval) {
	c.features = append(c.features, feats)
}

// NBins returns the number of matrix bins covering the simulated range.
func (c *Chromosome) NBins(binSize uint64) int {
	return int((c.SimulatedSize() + binSize - 1) / binSize)
}

// AllocateContacts lazily builds the chromosome's contact matrix with
// nrows = ceil(diagonalWidth/binSize) and ncols = NBins.
func (c *Chromosome) AllocateContacts(binSize, diagonalWidth uint64) {
	if c.contacts != nil {
		return
	}
	nrows := int((diagonalWidth + binSize - 1) / binSize)
	c.contacts = cmatrix.New[cmatrix.Count](nrows, c.NBins(binSize))
}

// Contacts returns the chromosome's matrix, or nil when none was allocated
// (skipped chromosomes).
func (c *Chromosome) Contacts() *cmatrix.Matrix[cmatrix.Count] { return c.contacts }

// DeallocateContacts releases the matrix after the writer has flushed it.
func (c *Chromosome) DeallocateContacts() { c.contacts = nil }

// BarrierOpts control how barrier records are turned into Markov-chain
// parameters.
type BarrierOpts struct {
	// OccupiedSelfProb, when non-zero, overrides the occupied
	// self-transition probability derived from record occupancy.
	OccupiedSelfProb    float64
	NotOccupiedSelfProb float64
	// OccupancyOverride, when non-zero, replaces per-record occupancy.
	OccupancyOverride float64
}

type Genome struct {
	chromosomes []*Chromosome
	byName      map[string]*Chromosome
}

// New builds the genome from parsed chromosome and barrier records,
// validating both. Barriers end up sorted by position within their
// chromosome.
func New(chroms []ChromRecord, bars []BarrierRecord, opts BarrierOpts) (*Genome, error) {
	g := &Genome{byName: make(map[string]*Chromosome, len(chroms))}
	for _, rec := range chroms {
		if rec.Name == "" {
			return nil, fmt.Errorf("chromosome with empty name")
		}
		if _, ok := g.byName[rec.Name]; ok {
			return nil, fmt.Errorf("duplicate chromosome: %s", rec.Name)
		}
		size := rec.Size
		if size == 0 {
			size = rec.End
		}
		if rec.Start >= rec.End || rec.End > size {
			return nil, fmt.Errorf("chromosome %s: invalid range [%d, %d) with size %d", rec.Name, rec.Start, rec.End, size)
		}
		chrom := &Chromosome{name: rec.Name, size: size, start: rec.Start, end: rec.End}
		g.chromosomes = append(g.chromosomes, chrom)
		g.byName[rec.Name] = chrom
	}

	for _, rec := range bars {
		chrom, ok := g.byName[rec.Chrom]
		if !ok {
			// Barriers mapping to chromosomes that are not simulated are
			// silently dropped, matching chrom-subrange behavior.
			continue
		}
		bar, err := buildBarrier(rec, chrom, opts)
		if err != nil {
			return nil, err
		}
		chrom.barriers = append(chrom.barriers, bar)
	}
	for _, chrom := range g.chromosomes {
		sort.Slice(chrom.barriers, func(i, j int) bool {
			return chrom.barriers[i].Pos < chrom.barriers[j].Pos
		})
	}
	return g, nil
}

func buildBarrier(rec BarrierRecord, chrom *Chromosome, opts BarrierOpts) (barriers.Barrier, error) {
	var dir barriers.Direction
	switch rec.Strand {
	case '+':
		dir = barriers.Fwd
	case '-':
		dir = barriers.Rev
	default:
		return barriers.Barrier{}, fmt.Errorf("barrier %s:%d: invalid strand %q", rec.Chrom, rec.Pos, string(rec.Strand))
	}
	if rec.Pos < chrom.start || rec.Pos >= chrom.end {
		return barriers.Barrier{}, fmt.Errorf("barrier %s:%d: position outside of range [%d, %d)", rec.Chrom, rec.Pos, chrom.start, chrom.end)
	}
	occupancy := rec.Occupancy
	if opts.OccupancyOverride != 0 {
		occupancy = opts.OccupancyOverride
	}
	if occupancy < 0 || occupancy > 1 || occupancy != occupancy {
		return barriers.Barrier{}, fmt.Errorf("barrier %s:%d: occupancy %v is not in [0, 1]", rec.Chrom, rec.Pos, occupancy)
	}
	pnn := opts.NotOccupiedSelfProb
	poo := opts.OccupiedSelfProb
	if poo == 0 {
		poo = barriers.POOFromOccupancy(occupancy, pnn)
	}
	bar := barriers.Barrier{Pos: rec.Pos, POO: poo, PNN: pnn, MajorDir: dir}
	if err := bar.Validate(); err != nil {
		return barriers.Barrier{}, fmt.Errorf("barrier %s:%d: %w", rec.Chrom, rec.Pos, err)
	}
	return bar, nil
}

func (g *Genome) Chromosomes() []*Chromosome { return g.chromosomes }
func (g *Genome) NChromosomes() int          { return len(g.chromosomes) }

func (g *Genome) Chromosome(name string) (*Chromosome, bool) {
	chrom, ok := g.byName[name]
	return chrom, ok
}

// Size is the sum of full chromosome lengths.
func (g *Genome) Size() uint64 {
	var n uint64
	for _, chrom := range g.chromosomes {
		n += chrom.size
	}
	return n
}

// SimulatedSize is the sum of simulated ranges.
func (g *Genome) SimulatedSize() uint64 {
	var n uint64
	for _, chrom := range g.chromosomes {
		n += chrom.SimulatedSize()
	}
	return n
}

func (g *Genome) NBarriers() int {
	n := 0
	for _, chrom := range g.chromosomes {
		n += chrom.NBarriers()
	}
	return n
}
