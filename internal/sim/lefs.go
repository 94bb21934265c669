package sim

import "math"

// ExtrusionUnit is one end of a LEF, identified by its genomic position.
// The direction is implied by which slot of the Lef it occupies.
type ExtrusionUnit struct {
	Pos uint64
}

// Lef is a loop extrusion factor: a pair of extrusion units anchored at the
// same position at binding time and moving apart until release. While bound,
// RevUnit.Pos <= FwdUnit.Pos.
type Lef struct {
	RevUnit      ExtrusionUnit
	FwdUnit      ExtrusionUnit
	BindingEpoch int
	Bound        bool
}

// Bind anchors both units at pos as a zero-length loop.
func (l *Lef) Bind(pos uint64, epoch int) {
	l.RevUnit.Pos = pos
	l.FwdUnit.Pos = pos
	l.BindingEpoch = epoch
	l.Bound = true
}

// Release makes the LEF free and eligible for rebinding next epoch.
func (l *Lef) Release() { l.Bound = false }

func (l *Lef) LoopSize() uint64 { return l.FwdUnit.Pos - l.RevUnit.Pos }

// Collision encodes what blocks an extrusion unit in the current epoch.
// Codes below nbarriers identify a barrier; codes in
// [nbarriers, nbarriers+nlefs) a primary collision with the opposing unit
// of the encoded LEF; larger codes a secondary collision with a
// same-direction LEF.
type Collision uint64

const (
	NoCollision          Collision = math.MaxUint64
	ReachedChromBoundary Collision = math.MaxUint64 - 1
)

func (c Collision) IsBarrier(nbarriers int) bool {
	return c < Collision(nbarriers)
}

func (c Collision) IsPrimary(nbarriers, nlefs int) bool {
	return c >= Collision(nbarriers) && c < Collision(nbarriers+nlefs)
}

func (c Collision) IsSecondary(nbarriers, nlefs int) bool {
	return c >= Collision(nbarriers+nlefs) && c != NoCollision && c != ReachedChromBoundary
}

func (c Collision) Blocked() bool {
	return c != NoCollision && c != ReachedChromBoundary
}

func primaryCollision(nbarriers, lefIdx int) Collision {
	return Collision(nbarriers + lefIdx)
}

func secondaryCollision(nbarriers, nlefs, lefIdx int) Collision {
	return Collision(nbarriers + nlefs + lefIdx)
}
