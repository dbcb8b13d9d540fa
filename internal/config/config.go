/*Package config loads and validates the run-time parameter file (the
"InputPara" record in spec.md's external-interfaces section).*/
package config

import (
	"fmt"

	gcfg "gopkg.in/gcfg.v1"

	"github.com/Aabhash007/gamer/internal/errs"
)

// RunMode distinguishes a single-rank run from an MPI-distributed one, the
// same split the teacher draws between its "guppy" and "mpi_guppy" binaries.
type RunMode int

const (
	SingleRankMode RunMode = iota
	DistributedMode
)

// Strictness controls whether Check aborts or merely reports on failure.
type Strictness int

const (
	CrashOnError Strictness = iota
	WarnOnError
)

// InputPara is the run-time parameter record read from a config file. Field
// names match the gcfg section/key convention (ini-style grouping).
type InputPara struct {
	Grid struct {
		MaxLevel   int
		PatchSize  int
		BoxSize    float64
		Periodic   bool
	}
	Fluid struct {
		Model        string // "hydro", "mhd", or "elbdm"
		NPassive     int
		MinDens      float64
		MinPres      float64
		PositiveDensInFixUp bool
	}
	Gravity struct {
		ExternalAcceleration bool
		ExternalPotential    bool
		PointMassGM          float64
		PointMassEps         float64
	}
	StarFormation struct {
		Enabled      bool
		Efficiency   float64
		MinStarMass  float64
		Seed         uint64
	}
	Checkpoint struct {
		Dumps     string
		OutputDir string
		Codec     string // "zstd" or "zlib"
	}
	Run struct {
		Threads int
		Debug   bool
	}
}

// Load reads and parses an ini-style config file into an InputPara.
func Load(path string) (*InputPara, error) {
	p := Default()
	if err := gcfg.ReadFileInto(p, path); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return p, nil
}

// Default returns an InputPara populated with the same defaults GAMER's
// Input__Parameter ships with for every field this spec exercises.
func Default() *InputPara {
	p := &InputPara{}
	p.Grid.MaxLevel = 6
	p.Grid.PatchSize = 8
	p.Grid.Periodic = true
	p.Fluid.Model = "hydro"
	p.Fluid.MinDens = 1e-10
	p.Fluid.MinPres = 1e-10
	p.Fluid.PositiveDensInFixUp = true
	p.StarFormation.Efficiency = 0.01
	p.Checkpoint.Codec = "zstd"
	p.Run.Threads = -1
	return p
}

// Check validates an InputPara the way the teacher's Check mode validates
// Args: crashing immediately under CrashOnError, or collecting and
// reporting every problem under WarnOnError. It returns true if no problems
// were found.
func Check(mode RunMode, strictness Strictness, p *InputPara) bool {
	ok := true
	report := func(format string, a ...interface{}) {
		ok = false
		if strictness == CrashOnError {
			errs.External(format, a...)
		} else {
			fmt.Printf("warning: "+format+"\n", a...)
		}
	}

	if p.Grid.MaxLevel < 0 {
		report("Grid.MaxLevel must be non-negative, got %d", p.Grid.MaxLevel)
	}
	if p.Grid.PatchSize <= 0 || p.Grid.PatchSize%2 != 0 {
		report("Grid.PatchSize must be a positive even number, got %d",
			p.Grid.PatchSize)
	}
	switch p.Fluid.Model {
	case "hydro", "mhd", "elbdm":
	default:
		report("Fluid.Model must be one of hydro/mhd/elbdm, got %q", p.Fluid.Model)
	}
	if p.Gravity.ExternalAcceleration && p.Gravity.PointMassGM <= 0 {
		report("Gravity.PointMassGM must be positive when " +
			"Gravity.ExternalAcceleration is set")
	}
	if p.StarFormation.Enabled && p.StarFormation.Efficiency <= 0 {
		report("StarFormation.Efficiency must be positive when star " +
			"formation is enabled, got %f", p.StarFormation.Efficiency)
	}
	switch p.Checkpoint.Codec {
	case "zstd", "zlib":
	default:
		report("Checkpoint.Codec must be zstd or zlib, got %q", p.Checkpoint.Codec)
	}
	if mode == DistributedMode && p.Checkpoint.OutputDir == "" {
		report("Checkpoint.OutputDir must be set for a distributed run, " +
			"since every rank writes into it")
	}

	return ok
}
