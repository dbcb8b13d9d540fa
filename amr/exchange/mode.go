/*Package exchange plans and executes the ghost-zone and flux exchanges
between sibling patches, both within a rank and across ranks.*/
package exchange

import "fmt"

// Mode selects which buffer a Plan/Engine pass exchanges and which of the
// 26 sibling directions (or, for CoarseFineFlux, the 6 face directions)
// participate.
type Mode int

const (
	// General exchanges the fluid buffer's ghost zones during a normal
	// timestep, all 26 directions.
	General Mode = iota
	// AfterRefine re-fills ghost zones for patches created by a refine
	// operation, all 26 directions.
	AfterRefine
	// AfterFixUp re-fills ghost zones after the coarse-fine fix-up pass has
	// modified boundary cells, all 26 directions.
	AfterFixUp
	// PotForPoisson exchanges the potential buffer's ghost zones between
	// Poisson-relaxation iterations, all 26 directions.
	PotForPoisson
	// PotAfterRefine re-fills the potential buffer's ghost zones for
	// patches created by a refine operation, all 26 directions.
	PotAfterRefine
	// CoarseFineFlux exchanges the 6-face flux registers used by the
	// fix-up engine; only the 6 face directions participate.
	CoarseFineFlux
)

// String names a Mode for logging and error messages.
func (m Mode) String() string {
	switch m {
	case General:
		return "General"
	case AfterRefine:
		return "AfterRefine"
	case AfterFixUp:
		return "AfterFixUp"
	case PotForPoisson:
		return "PotForPoisson"
	case PotAfterRefine:
		return "PotAfterRefine"
	case CoarseFineFlux:
		return "CoarseFineFlux"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// NDirections returns how many of the 26 sibling directions this mode
// exchanges: 26 for every ghost-zone mode, 6 for CoarseFineFlux.
func (m Mode) NDirections() int {
	if m == CoarseFineFlux {
		return 6
	}
	return 26
}

// UsesPotential reports whether this mode exchanges the potential buffer
// instead of the fluid buffer.
func (m Mode) UsesPotential() bool {
	return m == PotForPoisson || m == PotAfterRefine
}

// ErrBadMode is returned when a Plan or Engine call is given a Mode outside
// the six defined above.
var ErrBadMode = fmt.Errorf("exchange: unrecognized mode")

// VariableMask selects which of a patch's data groups an Exchange call
// reads and writes. GENERAL/AFTER_* modes accept any combination of
// VarFluid, VarPotential, and VarPassive; the POT_* modes accept only
// VarPotential; CoarseFineFlux accepts only VarFlux.
type VariableMask uint8

const (
	VarFluid VariableMask = 1 << iota
	VarPotential
	VarPassive
	VarFlux
)

// Intersects reports whether m shares any bit with other.
func (m VariableMask) Intersects(other VariableMask) bool {
	return m&other != 0
}

// valid checks m against the preconditions each mode enforces: GENERAL and
// the AFTER_* modes require at least one of fluid/potential/passive;
// POT_FOR_POISSON and POT_AFTER_REFINE reject any bit other than
// potential; CoarseFineFlux accepts only the flux bit.
func (m VariableMask) valid(mode Mode) bool {
	switch mode {
	case CoarseFineFlux:
		return m == VarFlux
	case PotForPoisson, PotAfterRefine:
		return m != 0 && m&^VarPotential == 0
	default:
		return m.Intersects(VarFluid | VarPotential | VarPassive)
	}
}

// ErrBadVariableMask is returned when a Request's VarMask is incompatible
// with its Mode.
var ErrBadVariableMask = fmt.Errorf("exchange: variable mask incompatible with mode")

// ErrBadGhostWidth is returned when GhostWidth falls outside [0, PatchSize].
var ErrBadGhostWidth = fmt.Errorf("exchange: ghost width out of range")

// ErrBadSandglass is returned when a sandglass index is outside {0, 1}
// while the corresponding field is selected by a Request's VarMask.
var ErrBadSandglass = fmt.Errorf("exchange: sandglass index out of range")
