package sim

import (
	"math"
	"sort"

	"github.com/dakristia/modleFork/internal/barriers"
)

// processCollisions runs the multi-pass collision resolution for one epoch:
// chromosome boundaries, LEF-barrier collisions, primary LEF-LEF collisions,
// the corresponding move corrections and finally secondary (same-direction)
// LEF-LEF collisions. Returns the counts produced by the boundary pass.
func (sim *Simulation) processCollisions(s *State) (numRevAt5, numFwdAt3 int) {
	numRevAt5, numFwdAt3 = detectUnitsAtChromBoundaries(s)
	sim.detectLefBarCollisions(s)
	detectPrimaryLefLefCollisions(s)
	correctMovesForLefBarCollisions(s)
	correctMovesForPrimaryLefLefCollisions(s)
	processSecondaryLefLefCollisions(s)
	return numRevAt5, numFwdAt3
}

// detectLefBarCollisions scans the sorted barrier list for the first
// occupied barrier lying in the interval each unit traverses this epoch and
// blocking in that unit's direction. Units are processed in rank order so a
// barrier sitting behind a nearer unit never blocks a trailing one; trailing
// units stall on the unit instead, in the secondary pass. When a block
// probability below one is configured, each encounter draws independently
// and may bypass the barrier.
func (sim *Simulation) detectLefBarCollisions(s *State) {
	bars := s.Barriers
	if len(bars) == 0 {
		return
	}

	// Rev units, 5'-3' rank order: the unit closest to a barrier reaches it
	// first and shields everything behind it.
	shield := uint64(0)
	haveShield := false
	for _, i := range s.RevRanks {
		lef := &s.Lefs[i]
		if !lef.Bound {
			continue
		}
		pos := lef.RevUnit.Pos
		if s.RevCollisions[i] == NoCollision && s.RevMoves[i] > 0 {
			lo := pos - s.RevMoves[i]
			ub := sort.Search(len(bars), func(k int) bool { return bars[k].Pos >= pos })
			for k := ub - 1; k >= 0 && bars[k].Pos >= lo; k-- {
				if haveShield && bars[k].Pos <= shield {
					break
				}
				if !s.BarrierMask.Get(k) || bars[k].MajorDir != barriers.Rev {
					continue
				}
				if sim.barrierBlocks(s) {
					s.RevCollisions[i] = Collision(k)
				}
				break
			}
		}
		shield = pos
		haveShield = true
	}

	// Fwd units, 3'-5' rank order, mirrored.
	haveShield = false
	for k := len(s.FwdRanks) - 1; k >= 0; k-- {
		i := s.FwdRanks[k]
		lef := &s.Lefs[i]
		if !lef.Bound {
			continue
		}
		pos := lef.FwdUnit.Pos
		if s.FwdCollisions[i] == NoCollision && s.FwdMoves[i] > 0 {
			hi := pos + s.FwdMoves[i]
			lb := sort.Search(len(bars), func(b int) bool { return bars[b].Pos > pos })
			for b := lb; b < len(bars) && bars[b].Pos <= hi; b++ {
				if haveShield && bars[b].Pos >= shield {
					break
				}
				if !s.BarrierMask.Get(b) || bars[b].MajorDir != barriers.Fwd {
					continue
				}
				if sim.barrierBlocks(s) {
					s.FwdCollisions[i] = Collision(b)
				}
				break
			}
		}
		shield = pos
		haveShield = true
	}
}

func (sim *Simulation) barrierBlocks(s *State) bool {
	p := sim.cfg.ProbabilityOfBarrierBlock
	if p == 0 || p >= 1 {
		return true
	}
	return s.Rand.Bernoulli(p)
}

// detectPrimaryLefLefCollisions pairs each rev unit with the nearest
// opposing fwd unit below it and records a collision when their trajectories
// would cross this epoch. Units already stopped by a barrier keep their
// barrier code; the free unit of the pair records the primary code instead.
func detectPrimaryLefLefCollisions(s *State) {
	nbarriers := len(s.Barriers)
	fp := 0
	candidate := -1
	prevRevPos := uint64(0)
	havePrevRev := false

	for _, r := range s.RevRanks {
		if !s.Lefs[r].Bound || s.RevCollisions[r] == ReachedChromBoundary {
			continue
		}
		rpos := s.Lefs[r].RevUnit.Pos
		for fp < len(s.FwdRanks) {
			f := s.FwdRanks[fp]
			if !s.Lefs[f].Bound || s.FwdCollisions[f] == ReachedChromBoundary {
				fp++
				continue
			}
			if s.Lefs[f].FwdUnit.Pos > rpos {
				break
			}
			if f != r {
				candidate = f
			}
			fp++
		}
		if candidate >= 0 {
			f := candidate
			fpos := s.Lefs[f].FwdUnit.Pos
			// The pair must be adjacent: no rev unit between them.
			if !havePrevRev || fpos >= prevRevPos {
				revStop := effectiveRevStop(s, r, nbarriers)
				fwdStop := effectiveFwdStop(s, f, nbarriers)
				// Units collide when their trajectories would cross, touch,
				// or end with a single free bp between them.
				if s.RevMoves[r]+s.FwdMoves[f] > 0 && fwdStop+2 >= revStop {
					recordPrimaryCollision(s, r, f, nbarriers)
				}
			}
		}
		prevRevPos = rpos
		havePrevRev = true
		candidate = -1
	}
}

func effectiveRevStop(s *State, i, nbarriers int) uint64 {
	if c := s.RevCollisions[i]; c.IsBarrier(nbarriers) {
		return s.Barriers[c].Pos + 1
	}
	return s.Lefs[i].RevUnit.Pos - s.RevMoves[i]
}

func effectiveFwdStop(s *State, i, nbarriers int) uint64 {
	if c := s.FwdCollisions[i]; c.IsBarrier(nbarriers) {
		return s.Barriers[c].Pos - 1
	}
	return s.Lefs[i].FwdUnit.Pos + s.FwdMoves[i]
}

func recordPrimaryCollision(s *State, r, f, nbarriers int) {
	revFree := s.RevCollisions[r] == NoCollision
	fwdFree := s.FwdCollisions[f] == NoCollision
	switch {
	case revFree && fwdFree:
		s.RevCollisions[r] = primaryCollision(nbarriers, f)
		s.FwdCollisions[f] = primaryCollision(nbarriers, r)
	case revFree:
		s.RevCollisions[r] = primaryCollision(nbarriers, f)
	case fwdFree:
		s.FwdCollisions[f] = primaryCollision(nbarriers, r)
	}
}

// computeLefLefCollisionPos intersects the two trajectories by relative
// velocity and returns the adjacent positions the rev and fwd unit end up
// at, rev one bp above fwd.
func computeLefLefCollisionPos(revPos, fwdPos, revMove, fwdMove uint64) (revCollide, fwdCollide uint64) {
	relativeSpeed := revMove + fwdMove
	t := float64(revPos-fwdPos) / float64(relativeSpeed)
	collisionPos := fwdPos + uint64(math.Round(float64(fwdMove)*t))
	if collisionPos == fwdPos {
		return collisionPos + 1, collisionPos
	}
	return collisionPos, collisionPos - 1
}

// correctMovesForLefBarCollisions stalls barrier-blocked units one bp on the
// approach side of the blocking barrier.
func correctMovesForLefBarCollisions(s *State) {
	nbarriers := len(s.Barriers)
	for i := range s.Lefs {
		if c := s.RevCollisions[i]; c.IsBarrier(nbarriers) {
			stop := s.Barriers[c].Pos + 1
			if pos := s.Lefs[i].RevUnit.Pos; pos > stop {
				s.RevMoves[i] = pos - stop
			} else {
				s.RevMoves[i] = 0
			}
		}
		if c := s.FwdCollisions[i]; c.IsBarrier(nbarriers) {
			stop := s.Barriers[c].Pos - 1
			if pos := s.Lefs[i].FwdUnit.Pos; pos < stop {
				s.FwdMoves[i] = stop - pos
			} else {
				s.FwdMoves[i] = 0
			}
		}
	}
}

// correctMovesForPrimaryLefLefCollisions constrains both units of each
// colliding pair to the intersection positions, or stalls the free unit
// next to its already-blocked partner.
func correctMovesForPrimaryLefLefCollisions(s *State) {
	nbarriers := len(s.Barriers)
	nlefs := len(s.Lefs)

	for r := range s.Lefs {
		c := s.RevCollisions[r]
		if !c.IsPrimary(nbarriers, nlefs) {
			continue
		}
		f := int(c) - nbarriers
		rpos := s.Lefs[r].RevUnit.Pos
		fpos := s.Lefs[f].FwdUnit.Pos
		if s.FwdCollisions[f] == primaryCollision(nbarriers, r) {
			// Mutual collision: both units travel to the meeting point.
			revCollide, fwdCollide := computeLefLefCollisionPos(rpos, fpos, s.RevMoves[r], s.FwdMoves[f])
			s.RevMoves[r] = rpos - revCollide
			s.FwdMoves[f] = fwdCollide - fpos
			continue
		}
		// Partner is stalled elsewhere: stop one bp above its final position.
		fwdStop := fpos + s.FwdMoves[f]
		if rpos > fwdStop+1 {
			s.RevMoves[r] = rpos - (fwdStop + 1)
		} else {
			s.RevMoves[r] = 0
		}
	}

	for f := range s.Lefs {
		c := s.FwdCollisions[f]
		if !c.IsPrimary(nbarriers, nlefs) {
			continue
		}
		r := int(c) - nbarriers
		if s.RevCollisions[r] == primaryCollision(nbarriers, f) {
			continue // handled above
		}
		fpos := s.Lefs[f].FwdUnit.Pos
		revStop := s.Lefs[r].RevUnit.Pos - s.RevMoves[r]
		if revStop >= 1 && fpos < revStop-1 {
			s.FwdMoves[f] = (revStop - 1) - fpos
		} else {
			s.FwdMoves[f] = 0
		}
	}
}

// processSecondaryLefLefCollisions re-examines same-direction neighbors:
// when a leading unit is stalled and a trailing unit would overtake it, the
// trailing unit stops one bp behind and records the leading LEF. Leaders are
// processed before trailers, so stalls cascade within a single pass.
func processSecondaryLefLefCollisions(s *State) {
	nbarriers := len(s.Barriers)
	nlefs := len(s.Lefs)

	// Rev units travel towards 5': the leader of a pair is the unit with the
	// lower genomic position.
	leader := -1
	for _, idx := range s.RevRanks {
		if !s.Lefs[idx].Bound {
			continue
		}
		if leader >= 0 && s.RevCollisions[leader].Blocked() {
			leaderEnd := s.Lefs[leader].RevUnit.Pos - s.RevMoves[leader]
			pos := s.Lefs[idx].RevUnit.Pos
			if s.RevCollisions[idx] == NoCollision && pos-s.RevMoves[idx] <= leaderEnd {
				if pos > leaderEnd+1 {
					s.RevMoves[idx] = pos - (leaderEnd + 1)
				} else {
					s.RevMoves[idx] = 0
				}
				s.RevCollisions[idx] = secondaryCollision(nbarriers, nlefs, leader)
			}
		}
		leader = idx
	}

	// Fwd units travel towards 3': the leader is the unit with the higher
	// genomic position.
	leader = -1
	for k := len(s.FwdRanks) - 1; k >= 0; k-- {
		idx := s.FwdRanks[k]
		if !s.Lefs[idx].Bound {
			continue
		}
		if leader >= 0 && s.FwdCollisions[leader].Blocked() {
			leaderEnd := s.Lefs[leader].FwdUnit.Pos + s.FwdMoves[leader]
			pos := s.Lefs[idx].FwdUnit.Pos
			if s.FwdCollisions[idx] == NoCollision && pos+s.FwdMoves[idx] >= leaderEnd {
				if leaderEnd >= 1 && pos < leaderEnd-1 {
					s.FwdMoves[idx] = (leaderEnd - 1) - pos
				} else {
					s.FwdMoves[idx] = 0
				}
				s.FwdCollisions[idx] = secondaryCollision(nbarriers, nlefs, leader)
			}
		}
		leader = idx
	}
}
