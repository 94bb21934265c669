// Package barriers models DNA-bound extrusion barriers and the two-state
// Markov chain driving their occupancy.
package barriers

import (
	"fmt"

	"github.com/dakristia/modleFork/internal/bitvec"
	"github.com/dakristia/modleFork/internal/rng"
)

// Direction of extrusion along the DNA, 5'-3' being Fwd.
type Direction uint8

const (
	None Direction = iota
	Rev
	Fwd
)

func (d Direction) String() string {
	switch d {
	case Rev:
		return "rev"
	case Fwd:
		return "fwd"
	default:
		return "none"
	}
}

// Barrier is a CTCF-like element. POO is the probability that an occupied
// barrier stays occupied in the next epoch, PNN the analogous probability
// for the not-occupied state. A barrier blocks only extrusion units
// approaching from its major direction, and only while occupied.
type Barrier struct {
	Pos      uint64
	POO      float64
	PNN      float64
	MajorDir Direction
}

func (b Barrier) MinorDir() Direction {
	if b.MajorDir == Rev {
		return Fwd
	}
	return Rev
}

func (b Barrier) Validate() error {
	if b.MajorDir != Rev && b.MajorDir != Fwd {
		return fmt.Errorf("barrier at %d: major blocking direction is required", b.Pos)
	}
	if b.POO < 0 || b.POO > 1 || b.POO != b.POO {
		return fmt.Errorf("barrier at %d: occupied self-transition probability %v is not in [0, 1]", b.Pos, b.POO)
	}
	if b.PNN < 0 || b.PNN > 1 || b.PNN != b.PNN {
		return fmt.Errorf("barrier at %d: not-occupied self-transition probability %v is not in [0, 1]", b.Pos, b.PNN)
	}
	return nil
}

// StationaryOccupancy returns the stationary probability of the occupied
// state for the barrier's chain.
func (b Barrier) StationaryOccupancy() float64 {
	denom := (1 - b.POO) + (1 - b.PNN)
	if denom == 0 {
		// Both states absorbing: split evenly.
		return 0.5
	}
	return (1 - b.PNN) / denom
}

// POOFromOccupancy solves the occupied self-transition probability that
// yields the requested stationary occupancy given PNN. The result is
// clamped to [0, 1].
func POOFromOccupancy(occupancy, pnn float64) float64 {
	if occupancy <= 0 {
		return 0
	}
	poo := 2 - pnn - (1-pnn)/occupancy
	if poo < 0 {
		return 0
	}
	if poo > 1 {
		return 1
	}
	return poo
}

// NextState advances the chain one epoch.
func NextState(b Barrier, occupied bool, src *rng.Source) bool {
	u := src.Float64()
	if occupied {
		return u < b.POO
	}
	return !(u < b.PNN)
}

// InitStates samples the initial occupancy of every barrier from the
// stationary distribution of its chain.
func InitStates(bars []Barrier, mask *bitvec.BitVec, src *rng.Source) {
	mask.Resize(len(bars))
	for i, b := range bars {
		mask.Set(i, src.Float64() < b.StationaryOccupancy())
	}
}

// UpdateStates advances every barrier chain one epoch in place.
func UpdateStates(bars []Barrier, mask *bitvec.BitVec, src *rng.Source) {
	for i, b := range bars {
		mask.Set(i, NextState(b, mask.Get(i), src))
	}
}
