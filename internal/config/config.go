// Package config enumerates the simulation parameters consumed by the core
// and validates them before a run starts.
package config

import (
	"errors"
	"fmt"
	"math"
	"runtime"
)

type Config struct {
	// Matrix geometry.
	BinSize       uint64 `mapstructure:"bin_size" yaml:"bin_size"`
	DiagonalWidth uint64 `mapstructure:"diagonal_width" yaml:"diagonal_width"`

	// Replicates and extruder counts.
	NumCells   int     `mapstructure:"num_cells" yaml:"num_cells"`
	LefsPerMbp float64 `mapstructure:"lefs_per_mbp" yaml:"lefs_per_mbp"`
	// NumLefs, when non-zero, fixes the per-task LEF count instead of
	// scaling it by chromosome length.
	NumLefs int `mapstructure:"num_lefs" yaml:"num_lefs"`

	AvgLefLifetime uint64 `mapstructure:"average_lef_lifetime" yaml:"average_lef_lifetime"`

	RevExtrusionSpeed    uint64  `mapstructure:"rev_extrusion_speed" yaml:"rev_extrusion_speed"`
	RevExtrusionSpeedStd float64 `mapstructure:"rev_extrusion_speed_std" yaml:"rev_extrusion_speed_std"`
	FwdExtrusionSpeed    uint64  `mapstructure:"fwd_extrusion_speed" yaml:"fwd_extrusion_speed"`
	FwdExtrusionSpeedStd float64 `mapstructure:"fwd_extrusion_speed_std" yaml:"fwd_extrusion_speed_std"`

	// Barrier behavior.
	ProbabilityOfBarrierBlock float64 `mapstructure:"probability_of_extrusion_barrier_block" yaml:"probability_of_extrusion_barrier_block"`
	CTCFOccupiedSelfProb      float64 `mapstructure:"ctcf_occupied_self_prob" yaml:"ctcf_occupied_self_prob"`
	CTCFNotOccupiedSelfProb   float64 `mapstructure:"ctcf_not_occupied_self_prob" yaml:"ctcf_not_occupied_self_prob"`

	HardStallMultiplier float64 `mapstructure:"hard_stall_multiplier" yaml:"hard_stall_multiplier"`
	SoftStallMultiplier float64 `mapstructure:"soft_stall_multiplier" yaml:"soft_stall_multiplier"`

	// Stopping condition: exactly one of the two may be set.
	TargetContactDensity float64 `mapstructure:"target_contact_density" yaml:"target_contact_density"`
	SimulationIterations int     `mapstructure:"simulation_iterations" yaml:"simulation_iterations"`

	// Contact sampling.
	ContactSamplingInterval          int  `mapstructure:"contact_sampling_interval" yaml:"contact_sampling_interval"`
	RandomizeContactSamplingInterval bool `mapstructure:"randomize_contact_sampling_interval" yaml:"randomize_contact_sampling_interval"`

	// Generalized extreme-value noise applied to unit positions when
	// randomized contact registration is enabled.
	RandomizeContacts bool    `mapstructure:"randomize_contacts" yaml:"randomize_contacts"`
	GenextremeMu      float64 `mapstructure:"genextreme_mu" yaml:"genextreme_mu"`
	GenextremeSigma   float64 `mapstructure:"genextreme_sigma" yaml:"genextreme_sigma"`
	GenextremeXi      float64 `mapstructure:"genextreme_xi" yaml:"genextreme_xi"`

	NThreads int    `mapstructure:"nthreads" yaml:"nthreads"`
	Seed     uint64 `mapstructure:"seed" yaml:"seed"`

	SkipBurnin               bool `mapstructure:"skip_burnin" yaml:"skip_burnin"`
	SkipOutput               bool `mapstructure:"skip_output" yaml:"skip_output"`
	WriteContactsForKOChroms bool `mapstructure:"write_contacts_for_ko_chroms" yaml:"write_contacts_for_ko_chroms"`
}

// Default returns the baseline parameter set used when no config file or
// flag overrides a field.
func Default() Config {
	return Config{
		BinSize:                 5_000,
		DiagonalWidth:           3_000_000,
		NumCells:                512,
		LefsPerMbp:              20,
		AvgLefLifetime:          600_000,
		RevExtrusionSpeed:       2_500,
		RevExtrusionSpeedStd:    0.05,
		FwdExtrusionSpeed:       2_500,
		FwdExtrusionSpeedStd:    0.05,
		CTCFNotOccupiedSelfProb: 0.7,
		HardStallMultiplier:     5,
		SoftStallMultiplier:     0.6,
		TargetContactDensity:    1.0,
		ContactSamplingInterval: 20,
		NThreads:                runtime.NumCPU(),
	}
}

var ErrAmbiguousStoppingCondition = errors.New("target_contact_density and simulation_iterations are mutually exclusive")

func (c *Config) Validate() error {
	if c.BinSize == 0 {
		return fmt.Errorf("bin_size must be > 0")
	}
	if c.DiagonalWidth < c.BinSize {
		return fmt.Errorf("diagonal_width (%d) must be >= bin_size (%d)", c.DiagonalWidth, c.BinSize)
	}
	if c.NumCells <= 0 {
		return fmt.Errorf("num_cells must be > 0")
	}
	if c.NumLefs == 0 && c.LefsPerMbp <= 0 {
		return fmt.Errorf("either num_lefs or lefs_per_mbp is required")
	}
	if c.NumLefs < 0 {
		return fmt.Errorf("num_lefs must be >= 0")
	}
	if c.AvgLefLifetime == 0 {
		return fmt.Errorf("average_lef_lifetime must be > 0")
	}
	if c.RevExtrusionSpeed == 0 && c.FwdExtrusionSpeed == 0 {
		return fmt.Errorf("at least one extrusion speed must be > 0")
	}
	if c.RevExtrusionSpeedStd < 0 || c.FwdExtrusionSpeedStd < 0 {
		return fmt.Errorf("extrusion speed stddev must be >= 0")
	}
	for name, p := range map[string]float64{
		"probability_of_extrusion_barrier_block": c.ProbabilityOfBarrierBlock,
		"ctcf_occupied_self_prob":                c.CTCFOccupiedSelfProb,
		"ctcf_not_occupied_self_prob":            c.CTCFNotOccupiedSelfProb,
	} {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return fmt.Errorf("%s (%v) is not in [0, 1]", name, p)
		}
	}
	if c.HardStallMultiplier < 1 {
		return fmt.Errorf("hard_stall_multiplier must be >= 1")
	}
	if c.SoftStallMultiplier < 0 {
		return fmt.Errorf("soft_stall_multiplier must be >= 0")
	}
	if c.TargetContactDensity < 0 || math.IsNaN(c.TargetContactDensity) {
		return fmt.Errorf("target_contact_density must be >= 0")
	}
	if c.SimulationIterations < 0 {
		return fmt.Errorf("simulation_iterations must be >= 0")
	}
	if c.TargetContactDensity != 0 && c.SimulationIterations != 0 {
		return ErrAmbiguousStoppingCondition
	}
	if c.TargetContactDensity == 0 && c.SimulationIterations == 0 {
		return fmt.Errorf("one of target_contact_density or simulation_iterations is required")
	}
	if c.ContactSamplingInterval <= 0 {
		return fmt.Errorf("contact_sampling_interval must be > 0")
	}
	if c.RandomizeContacts && c.GenextremeSigma <= 0 {
		return fmt.Errorf("genextreme_sigma must be > 0 when contact randomization is enabled")
	}
	if c.NThreads <= 0 {
		return fmt.Errorf("nthreads must be > 0")
	}
	return nil
}

// NumLefsFor returns the LEF count for a chromosome of the given simulated
// size, either the fixed count or the per-Mbp scaling.
func (c *Config) NumLefsFor(simulatedSize uint64) int {
	if c.NumLefs > 0 {
		return c.NumLefs
	}
	n := int(math.Round(c.LefsPerMbp * float64(simulatedSize) / 1e6))
	if n < 1 {
		n = 1
	}
	return n
}

// Nrows returns the band height of the contact matrices.
func (c *Config) Nrows() int {
	return int((c.DiagonalWidth + c.BinSize - 1) / c.BinSize)
}
