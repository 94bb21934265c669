package sim

import (
	"fmt"

	"github.com/dakristia/modleFork/internal/barriers"
	"github.com/dakristia/modleFork/internal/bitvec"
	"github.com/dakristia/modleFork/internal/genome"
	"github.com/dakristia/modleFork/internal/rng"
)

// Task describes one independent simulation replicate: a chromosome, a cell
// id and the stopping condition. Barriers is a read-only snapshot shared by
// every cell of the same chromosome.
type Task struct {
	ID             int
	Chrom          *genome.Chromosome
	CellID         int
	TargetEpochs   int
	TargetContacts uint64
	NumLefs        int
	Barriers       []barriers.Barrier
	Seed           uint64
}

// State bundles a task with the preallocated scratch buffers a worker reuses
// across tasks.
type State struct {
	Task

	Lefs             []Lef
	RevRanks         []int
	FwdRanks         []int
	RevMoves         []uint64
	FwdMoves         []uint64
	RevCollisions    []Collision
	FwdCollisions    []Collision
	UnloaderAffinity []float64
	EpochBuff        []int
	BarrierMask      *bitvec.BitVec

	Rand *rng.Source

	// Extrusion events performed so far, surfaced for throughput reporting.
	ExtrusionEvents uint64
}

func NewState() *State {
	return &State{BarrierMask: bitvec.New(0)}
}

// Assign rebinds the state to a task, resizing and resetting every buffer.
func (s *State) Assign(task Task) {
	s.Task = task
	s.ResizeBuffers(task.NumLefs)
	s.ResetBuffers()
	if s.Rand == nil {
		s.Rand = rng.New(task.Seed)
	} else {
		s.Rand.Seed(task.Seed)
	}
}

func (s *State) ResizeBuffers(n int) {
	s.Lefs = resize(s.Lefs, n)
	s.RevRanks = resize(s.RevRanks, n)
	s.FwdRanks = resize(s.FwdRanks, n)
	s.RevMoves = resize(s.RevMoves, n)
	s.FwdMoves = resize(s.FwdMoves, n)
	s.RevCollisions = resize(s.RevCollisions, n)
	s.FwdCollisions = resize(s.FwdCollisions, n)
	s.UnloaderAffinity = resize(s.UnloaderAffinity, n)
	s.EpochBuff = resize(s.EpochBuff, n)
	s.BarrierMask.Resize(len(s.Barriers))
}

// ResetBuffers clears moves and collisions, initializes both rank arrays to
// the identity permutation and zeroes the release affinities.
func (s *State) ResetBuffers() {
	for i := range s.Lefs {
		s.Lefs[i] = Lef{}
		s.RevRanks[i] = i
		s.FwdRanks[i] = i
		s.RevMoves[i] = 0
		s.FwdMoves[i] = 0
		s.RevCollisions[i] = NoCollision
		s.FwdCollisions[i] = NoCollision
		s.UnloaderAffinity[i] = 0
		s.EpochBuff[i] = 0
	}
	s.BarrierMask.Reset()
}

func (s *State) String() string {
	return fmt.Sprintf("task %d: %s[%d-%d] cell=%d epochs=%d contacts=%d lefs=%d barriers=%d seed=%d",
		s.ID, s.Chrom.Name(), s.Chrom.Start(), s.Chrom.End(), s.CellID,
		s.TargetEpochs, s.TargetContacts, s.NumLefs, len(s.Barriers), s.Seed)
}

func resize[T any](buff []T, n int) []T {
	if cap(buff) >= n {
		return buff[:n]
	}
	return make([]T, n)
}
