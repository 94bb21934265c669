package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/dakristia/modleFork/internal/barriers"
	"github.com/dakristia/modleFork/internal/config"
)

// Simulation evaluates the loop-extrusion kernel for one task at a time.
// A Simulation is stateless between tasks and safe to share across workers.
type Simulation struct {
	cfg *config.Config

	revSpeedStd float64
	fwdSpeedStd float64

	// LEFs released per epoch, derived from the average lifetime.
	releaseQuota func(numLefs int) int
}

func New(cfg *config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sim := &Simulation{cfg: cfg}
	sim.revSpeedStd = absoluteStd(cfg.RevExtrusionSpeedStd, cfg.RevExtrusionSpeed)
	sim.fwdSpeedStd = absoluteStd(cfg.FwdExtrusionSpeedStd, cfg.FwdExtrusionSpeed)

	bpPerEpoch := float64(cfg.RevExtrusionSpeed + cfg.FwdExtrusionSpeed)
	lifetime := float64(cfg.AvgLefLifetime)
	sim.releaseQuota = func(numLefs int) int {
		quota := int(math.Round(float64(numLefs) * bpPerEpoch / lifetime))
		if quota < 1 {
			quota = 1
		}
		return quota
	}
	return sim, nil
}

// Stddevs below one are interpreted as a fraction of the mean speed.
func absoluteStd(std float64, speed uint64) float64 {
	if std > 0 && std < 1 {
		return std * float64(speed)
	}
	return std
}

func (sim *Simulation) Config() *config.Config { return sim.cfg }

// RunTask drives the per-epoch sequence for one cell until the task's
// stopping condition is met: bind free LEFs, rank units, generate moves,
// resolve collisions, extrude, register contacts, release LEFs. Contact
// sampling only starts once the burn-in schedule has loaded every LEF.
func (sim *Simulation) RunTask(s *State) error {
	if s.Chrom.Contacts() == nil && s.TargetContacts > 0 {
		return fmt.Errorf("%s: contact matrix is required for a contact-density target", s.Chrom.Name())
	}

	barriers.InitStates(s.Barriers, s.BarrierMask, s.Rand)
	burninDone := sim.cfg.SkipBurnin
	var burninLastEpoch int
	if !burninDone {
		burninLastEpoch = sim.setupBurnin(s)
	}

	for epoch := 0; ; epoch++ {
		if burninDone && sim.done(s, epoch) {
			return nil
		}
		if !burninDone && epoch >= burninLastEpoch {
			burninDone = true
		}

		barriers.UpdateStates(s.Barriers, s.BarrierMask, s.Rand)
		sim.bindLefs(s, epoch, burninDone)
		sim.generateMoves(s, true)
		sim.processCollisions(s)

		extrude(s)

		if burninDone && sim.sampleContactsThisEpoch(s, epoch) {
			if err := sim.registerContacts(s); err != nil {
				return err
			}
		}

		generateLefUnloaderAffinities(s, sim.cfg.HardStallMultiplier)
		sim.releaseLefs(s)
		sim.clearCollisions(s)
	}
}

func (sim *Simulation) done(s *State, epoch int) bool {
	if s.TargetContacts > 0 {
		return s.Chrom.Contacts().TotContacts() >= s.TargetContacts
	}
	return epoch >= s.TargetEpochs
}

// setupBurnin draws the epoch at which each LEF first becomes eligible for
// binding, uniformly from [0, 4*avg_lifetime/bin_size], sorted descending
// and offset so the earliest eligible epoch is zero. Returns the epoch at
// which the last LEF loads.
func (sim *Simulation) setupBurnin(s *State) int {
	upper := 4 * sim.cfg.AvgLefLifetime / sim.cfg.BinSize
	for i := range s.EpochBuff {
		s.EpochBuff[i] = int(s.Rand.Uint64n(upper + 1))
	}
	sort.Sort(sort.Reverse(sort.IntSlice(s.EpochBuff)))
	if n := len(s.EpochBuff); n > 0 {
		if offset := s.EpochBuff[n-1]; offset != 0 {
			for i := range s.EpochBuff {
				s.EpochBuff[i] -= offset
			}
		}
		return s.EpochBuff[0]
	}
	return 0
}

// bindLefs places every free LEF the scheduler permits at a uniformly random
// position of the simulated range as a zero-length loop, then re-sorts both
// rank arrays. During burn-in LEF i is only eligible once its scheduled
// loading epoch has passed.
func (sim *Simulation) bindLefs(s *State, epoch int, burninDone bool) {
	bound := 0
	for i := range s.Lefs {
		if s.Lefs[i].Bound {
			continue
		}
		if !burninDone && epoch < s.EpochBuff[i] {
			continue
		}
		pos := s.Rand.UniformRange(s.Chrom.Start(), s.Chrom.End())
		s.Lefs[i].Bind(pos, epoch)
		bound++
	}
	if bound > 0 {
		rankLefs(s.Lefs, s.RevRanks, s.FwdRanks)
	}
}

func (sim *Simulation) sampleContactsThisEpoch(s *State, epoch int) bool {
	interval := sim.cfg.ContactSamplingInterval
	if interval <= 1 {
		return true
	}
	if sim.cfg.RandomizeContactSamplingInterval {
		return s.Rand.Bernoulli(1 / float64(interval))
	}
	return epoch%interval == 0
}

// registerContacts increments the chromosome matrix at the bin pair spanned
// by each bound LEF strictly inside the simulated range. When randomization
// is enabled, generalized extreme-value noise perturbs both unit positions
// before binning; positions pushed out of range are discarded.
func (sim *Simulation) registerContacts(s *State) error {
	contacts := s.Chrom.Contacts()
	if contacts == nil {
		return nil
	}
	start := s.Chrom.Start() + 1
	end := s.Chrom.End() - 1
	binSize := sim.cfg.BinSize

	for i := range s.Lefs {
		lef := &s.Lefs[i]
		if !lef.Bound ||
			lef.RevUnit.Pos <= start || lef.RevUnit.Pos >= end ||
			lef.FwdUnit.Pos <= start || lef.FwdUnit.Pos >= end {
			continue
		}

		var pos1, pos2 uint64
		if sim.cfg.RandomizeContacts {
			p1 := float64(lef.RevUnit.Pos-start) - s.Rand.Gev(sim.cfg.GenextremeMu, sim.cfg.GenextremeSigma, sim.cfg.GenextremeXi)
			p2 := float64(lef.FwdUnit.Pos-start) + s.Rand.Gev(sim.cfg.GenextremeMu, sim.cfg.GenextremeSigma, sim.cfg.GenextremeXi)
			span := float64(end - start)
			if p1 < 0 || p2 < 0 || p1 > span || p2 > span {
				continue
			}
			pos1 = uint64(math.Round(p1))
			pos2 = uint64(math.Round(p2))
		} else {
			pos1 = lef.RevUnit.Pos - start
			pos2 = lef.FwdUnit.Pos - start
		}

		if err := contacts.Increment(int(pos1/binSize), int(pos2/binSize)); err != nil {
			return fmt.Errorf("%s: register contact for LEF %d: %w", s.Chrom.Name(), i, err)
		}
	}
	return nil
}

// generateLefUnloaderAffinities assigns each bound LEF a release weight of
// one, lowered to 1/hardStallMultiplier when both units are simultaneously
// blocked by convergent barriers. Free LEFs get zero weight.
func generateLefUnloaderAffinities(s *State, hardStallMultiplier float64) {
	nbarriers := len(s.Barriers)
	for i := range s.Lefs {
		switch {
		case !s.Lefs[i].Bound:
			s.UnloaderAffinity[i] = 0
		case !s.RevCollisions[i].IsBarrier(nbarriers) || !s.FwdCollisions[i].IsBarrier(nbarriers):
			s.UnloaderAffinity[i] = 1
		default:
			revBar := s.Barriers[s.RevCollisions[i]]
			fwdBar := s.Barriers[s.FwdCollisions[i]]
			if revBar.MajorDir == barriers.Rev && fwdBar.MajorDir == barriers.Fwd {
				s.UnloaderAffinity[i] = 1 / hardStallMultiplier
			} else {
				s.UnloaderAffinity[i] = 1
			}
		}
	}
}

// releaseLefs draws the epoch's release quota from the affinity-weighted
// discrete distribution. Draws are with replacement; releasing an already
// free LEF is a no-op.
func (sim *Simulation) releaseLefs(s *State) {
	total := 0.0
	for _, w := range s.UnloaderAffinity {
		total += w
	}
	if total == 0 {
		return
	}
	quota := sim.releaseQuota(len(s.Lefs))
	for k := 0; k < quota; k++ {
		s.Lefs[s.Rand.Discrete(s.UnloaderAffinity)].Release()
	}
}

func (sim *Simulation) clearCollisions(s *State) {
	for i := range s.Lefs {
		s.RevCollisions[i] = NoCollision
		s.FwdCollisions[i] = NoCollision
	}
}
