package sim

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dakristia/modleFork/internal/genome"
	"github.com/dakristia/modleFork/internal/progress"
	"github.com/dakristia/modleFork/internal/rng"
	"github.com/dakristia/modleFork/internal/storage"
)

// Pipeline fans per-cell tasks out to a fixed worker pool and streams
// finished chromosomes to a single writer goroutine. A chromosome is
// finished once all of its cells have completed; the writer emits
// chromosomes in completion order, not task order.
type Pipeline struct {
	sim    *Simulation
	genome *genome.Genome
	writer storage.Writer
	log    *logrus.Logger

	extrusionEvents atomic.Uint64
}

func NewPipeline(sim *Simulation, g *genome.Genome, w storage.Writer, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{sim: sim, genome: g, writer: w, log: log}
}

type chromPlan struct {
	chrom          *genome.Chromosome
	numLefs        int
	targetEpochs   int
	targetContacts uint64
}

// Run simulates every chromosome of the genome to its stopping target.
// The writer is not closed; the caller owns its lifecycle.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.sim.Config()

	var plans []chromPlan
	var skipped []*genome.Chromosome
	for _, chrom := range p.genome.Chromosomes() {
		if chrom.NBarriers() == 0 && !cfg.WriteContactsForKOChroms {
			p.log.WithField("chrom", chrom.Name()).Warn("skipping chromosome without extrusion barriers")
			skipped = append(skipped, chrom)
			continue
		}
		chrom.AllocateContacts(cfg.BinSize, cfg.DiagonalWidth)
		plan := chromPlan{
			chrom:        chrom,
			numLefs:      cfg.NumLefsFor(chrom.SimulatedSize()),
			targetEpochs: cfg.SimulationIterations,
		}
		if cfg.TargetContactDensity > 0 {
			contacts := chrom.Contacts()
			plan.targetContacts = uint64(math.Ceil(cfg.TargetContactDensity * float64(contacts.Nrows()*contacts.Ncols())))
			plan.targetEpochs = math.MaxInt
		}
		plans = append(plans, plan)
	}

	totalCells := int64(len(plans) * cfg.NumCells)
	reporter := progress.New(p.log, totalCells, &p.extrusionEvents)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan Task, 2*cfg.NThreads)
	done := make(chan *genome.Chromosome, cfg.NThreads)

	writerErr := make(chan error, 1)
	go func() {
		err := p.writerLoop(ctx, done, skipped, reporter)
		if err != nil {
			cancel()
		}
		writerErr <- err
	}()

	workers, wctx := errgroup.WithContext(ctx)
	workers.Go(func() error {
		defer close(tasks)
		id := 0
		for _, plan := range plans {
			for cell := 0; cell < cfg.NumCells; cell++ {
				task := Task{
					ID:             id,
					Chrom:          plan.chrom,
					CellID:         cell,
					TargetEpochs:   plan.targetEpochs,
					TargetContacts: plan.targetContacts,
					NumLefs:        plan.numLefs,
					Barriers:       plan.chrom.Barriers(),
					Seed:           rng.MixSeed(cfg.Seed, plan.chrom.Name(), uint64(cell)),
				}
				select {
				case tasks <- task:
				case <-wctx.Done():
					return wctx.Err()
				}
				id++
			}
		}
		return nil
	})

	for w := 0; w < cfg.NThreads; w++ {
		workers.Go(func() error {
			state := NewState()
			for task := range tasks {
				if err := wctx.Err(); err != nil {
					return err
				}
				started := time.Now()
				state.Assign(task)
				if err := p.sim.RunTask(state); err != nil {
					return fmt.Errorf("task %d (%s cell %d): %w", task.ID, task.Chrom.Name(), task.CellID, err)
				}
				p.extrusionEvents.Add(state.ExtrusionEvents)
				state.ExtrusionEvents = 0
				reporter.CellDone(time.Since(started))

				select {
				case done <- task.Chrom:
				case <-wctx.Done():
					return wctx.Err()
				}
			}
			return nil
		})
	}

	err := workers.Wait()
	close(done)
	if werr := <-writerErr; err == nil {
		err = werr
	}
	reporter.Done()
	return err
}

// writerLoop counts completed cells per chromosome and emits each
// chromosome once its cell count is reached, deallocating the matrix
// afterwards. Skipped chromosomes are emitted as empty entries first.
// A closed channel is the end-of-simulation sentinel.
func (p *Pipeline) writerLoop(ctx context.Context, done <-chan *genome.Chromosome, skipped []*genome.Chromosome, reporter *progress.Reporter) error {
	cfg := p.sim.Config()

	for _, chrom := range skipped {
		res := storage.ChromosomeResult{
			Name:    chrom.Name(),
			Start:   chrom.Start(),
			End:     chrom.End(),
			Size:    chrom.Size(),
			BinSize: cfg.BinSize,
		}
		if err := p.writer.WriteChromosome(ctx, res); err != nil {
			return fmt.Errorf("write empty entry for %s: %w", chrom.Name(), err)
		}
	}

	counts := make(map[*genome.Chromosome]int)
	for chrom := range done {
		counts[chrom]++
		if counts[chrom] != cfg.NumCells {
			continue
		}
		res := storage.ChromosomeResult{
			Name:    chrom.Name(),
			Start:   chrom.Start(),
			End:     chrom.End(),
			Size:    chrom.Size(),
			BinSize: cfg.BinSize,
			Matrix:  chrom.Contacts(),
		}
		if err := p.writer.WriteChromosome(ctx, res); err != nil {
			return fmt.Errorf("write contacts for %s: %w", chrom.Name(), err)
		}
		reporter.ChromosomeWritten(chrom.Name(), res.Matrix.TotContacts())
		chrom.DeallocateContacts()
	}
	return nil
}
