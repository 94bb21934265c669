package sim

import (
	"math"
	"sort"
)

// rankLefs rebuilds the rev and fwd rank permutations. Ranks sort LEFs by
// the respective unit position; exact-position ties are broken by binding
// epoch, ascending for rev units and descending for fwd units, so behavior
// under overlap stays deterministic.
func rankLefs(lefs []Lef, revRanks, fwdRanks []int) {
	sort.SliceStable(revRanks, func(a, b int) bool {
		ri, rj := revRanks[a], revRanks[b]
		if lefs[ri].RevUnit.Pos != lefs[rj].RevUnit.Pos {
			return lefs[ri].RevUnit.Pos < lefs[rj].RevUnit.Pos
		}
		return lefs[ri].BindingEpoch < lefs[rj].BindingEpoch
	})
	sort.SliceStable(fwdRanks, func(a, b int) bool {
		ri, rj := fwdRanks[a], fwdRanks[b]
		if lefs[ri].FwdUnit.Pos != lefs[rj].FwdUnit.Pos {
			return lefs[ri].FwdUnit.Pos < lefs[rj].FwdUnit.Pos
		}
		return lefs[ri].BindingEpoch > lefs[rj].BindingEpoch
	})
}

// generateRevMove draws a move towards the 5'-end, clamped so the unit never
// crosses the start of the simulated range. A zero stddev makes the draw
// deterministic.
func (sim *Simulation) generateRevMove(s *State, unit ExtrusionUnit) uint64 {
	limit := unit.Pos - s.Chrom.Start()
	speed := sim.cfg.RevExtrusionSpeed
	if sim.revSpeedStd == 0 {
		if speed < limit {
			return speed
		}
		return limit
	}
	move := s.Rand.Normal(float64(speed), sim.revSpeedStd)
	return clampMove(move, limit)
}

func (sim *Simulation) generateFwdMove(s *State, unit ExtrusionUnit) uint64 {
	limit := (s.Chrom.End() - 1) - unit.Pos
	speed := sim.cfg.FwdExtrusionSpeed
	if sim.fwdSpeedStd == 0 {
		if speed < limit {
			return speed
		}
		return limit
	}
	move := s.Rand.Normal(float64(speed), sim.fwdSpeedStd)
	return clampMove(move, limit)
}

func clampMove(move float64, limit uint64) uint64 {
	if move <= 0 {
		return 0
	}
	n := uint64(math.Round(move))
	if n > limit {
		return limit
	}
	return n
}

// generateMoves fills the move buffers for every LEF. Free LEFs get zero
// moves. When adjust is set, consecutive same-direction units are kept from
// bypassing each other (see adjustMovesOfConsecutiveUnits).
func (sim *Simulation) generateMoves(s *State, adjust bool) {
	for i := range s.Lefs {
		if !s.Lefs[i].Bound {
			s.RevMoves[i] = 0
			s.FwdMoves[i] = 0
			continue
		}
		s.RevMoves[i] = sim.generateRevMove(s, s.Lefs[i].RevUnit)
		s.FwdMoves[i] = sim.generateFwdMove(s, s.Lefs[i].FwdUnit)
	}
	if adjust {
		adjustMovesOfConsecutiveUnits(s)
	}
}

// adjustMovesOfConsecutiveUnits raises the move of a leading unit whenever
// the trailing unit behind it would otherwise overtake it, so that the
// leader ends at the trailer's final position. The two units end on the same
// bp; no one-bp gap is left between them. Rev units are processed in 3'-5'
// order, fwd units in 5'-3' order. This approximates the pushing that would
// occur in a real system.
func adjustMovesOfConsecutiveUnits(s *State) {
	n := len(s.Lefs)
	for i := 0; i < n-1; i++ {
		// Rev pair: idx2 precedes idx1 in 3'-5' order.
		idx1 := s.RevRanks[n-2-i]
		idx2 := s.RevRanks[n-1-i]
		if s.Lefs[idx1].Bound && s.Lefs[idx2].Bound {
			pos1 := s.Lefs[idx1].RevUnit.Pos - s.RevMoves[idx1]
			pos2 := s.Lefs[idx2].RevUnit.Pos - s.RevMoves[idx2]
			if pos2 < pos1 {
				s.RevMoves[idx1] += pos1 - pos2
			}
		}

		// Fwd pair: idx3 precedes idx4 in 5'-3' order.
		idx3 := s.FwdRanks[i]
		idx4 := s.FwdRanks[i+1]
		if s.Lefs[idx3].Bound && s.Lefs[idx4].Bound {
			pos3 := s.Lefs[idx3].FwdUnit.Pos + s.FwdMoves[idx3]
			pos4 := s.Lefs[idx4].FwdUnit.Pos + s.FwdMoves[idx4]
			if pos3 > pos4 {
				s.FwdMoves[idx4] += pos3 - pos4
			}
		}
	}
}

// detectUnitsAtChromBoundaries flags rev units that are at or will reach the
// 5'-end and fwd units at the 3'-end, clamping their moves. Flagged units
// are skipped by the collision passes. Returns the number of rev units
// already sitting at the 5'-end and fwd units at the 3'-end.
func detectUnitsAtChromBoundaries(s *State) (numRevAt5, numFwdAt3 int) {
	start := s.Chrom.Start()
	end := s.Chrom.End()

	for _, idx := range s.RevRanks {
		lef := &s.Lefs[idx]
		if !lef.Bound {
			continue
		}
		if lef.RevUnit.Pos == start {
			s.RevCollisions[idx] = ReachedChromBoundary
			s.RevMoves[idx] = 0
			numRevAt5++
			continue
		}
		if lef.RevUnit.Pos-s.RevMoves[idx] <= start {
			s.RevCollisions[idx] = ReachedChromBoundary
			s.RevMoves[idx] = lef.RevUnit.Pos - start
		}
		break
	}

	for k := len(s.FwdRanks) - 1; k >= 0; k-- {
		idx := s.FwdRanks[k]
		lef := &s.Lefs[idx]
		if !lef.Bound {
			continue
		}
		if lef.FwdUnit.Pos == end-1 {
			s.FwdCollisions[idx] = ReachedChromBoundary
			s.FwdMoves[idx] = 0
			numFwdAt3++
			continue
		}
		if lef.FwdUnit.Pos+s.FwdMoves[idx] >= end-1 {
			s.FwdCollisions[idx] = ReachedChromBoundary
			s.FwdMoves[idx] = (end - 1) - lef.FwdUnit.Pos
		}
		break
	}
	return numRevAt5, numFwdAt3
}

// extrude applies the corrected moves to every bound LEF. Displacements
// equal the corrected moves; positions stay within the simulated range.
func extrude(s *State) {
	for i := range s.Lefs {
		lef := &s.Lefs[i]
		if !lef.Bound {
			continue
		}
		lef.RevUnit.Pos -= s.RevMoves[i]
		lef.FwdUnit.Pos += s.FwdMoves[i]
		s.ExtrusionEvents++
	}
}
