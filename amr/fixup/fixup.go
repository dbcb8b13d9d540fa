/*Package fixup implements the two-stage coarse-fine conservation pass:
flux correction on coarse cells bordering a fine patch, and restriction of
a fine patch's interior back onto its father.

Both stages and their sign conventions are grounded on GAMER's
Flu_FixUp.cpp: the low face of a coarse cell is corrected by subtracting
the accumulated fine flux times a level-dependent constant, the high face
by adding it. Whenever PositiveDensInFixUp is set, a density correction
that would leave a cell non-positive is skipped for that cell (the other
variables are still corrected), and density is floored at MinDens instead
of being reconstructed in full.
*/
package fixup

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/Aabhash007/gamer/amr"
	"github.com/Aabhash007/gamer/internal/errs"
)

// DensIdx, EngyIdx give the conventional slot of density and energy among a
// patch's fluid variables; passive scalars (including ELBDM's imaginary
// part) occupy every index from PassiveStart onward.
const (
	DensIdx     = 0
	EngyIdx     = 4
	PassiveStart = 5
)

// Options configures a fix-up pass.
type Options struct {
	Model               amr.Model
	PositiveDensInFixUp bool
	MinDens             float64
	MinPres             float64
	// Debug is the flag callers pass on to CheckConservation; no function in
	// this package reads it from Options.
	Debug bool
}

// CorrectFlux applies the accumulated face flux on a coarse patch's
// coarse-fine boundary back into the coarse cells adjoining that face. f is
// the packed flux slab for one face (as produced by
// exchange.Engine.Exchange in CoarseFineFlux mode): NFlux variables each
// contributing a PatchSize^2 slab, face-major. dt and dh are the coarse
// patch's timestep and cell width; the flux correction is dt/dh times the
// flux difference, matching Flu_FixUp.cpp's Flux_Array usage.
func CorrectFlux(p *amr.Patch, face int, f []float64, dt, dh float64, opt Options) error {
	nVar := p.NVar()
	n := amr.PatchSize * amr.PatchSize
	if len(f) != nVar*n {
		return fmt.Errorf("fixup: face %d flux slab has %d entries, want %d (nVar=%d)",
			face, len(f), nVar*n, nVar)
	}

	const_ := dt / dh
	sign := 1.0
	for _, c := range amr.SiblingOffset[face] {
		if c < 0 {
			// The low face of a coarse cell removes the accumulated fine
			// flux; the high face adds it.
			sign = -1.0
		}
	}

	vars := p.CurFluid()
	for v := 0; v < nVar; v++ {
		cells := vars[v]
		for i := 0; i < n; i++ {
			idx := faceCellIndex(face, i)
			corrected := cells[idx] + sign*const_*f[v*n+i]
			if v == DensIdx && opt.PositiveDensInFixUp && corrected <= 0 {
				// Leave this cell's density uncorrected rather than let it
				// go non-positive; other variables are corrected regardless.
				continue
			}
			cells[idx] = corrected
		}
	}

	if opt.PositiveDensInFixUp {
		clampPositive(vars[DensIdx], opt.MinDens)
	} else {
		reconstructEnergy(vars, opt.MinDens, opt.MinPres)
	}

	if opt.Model == amr.ELBDM {
		rescaleELBDM(vars)
	}

	return nil
}

// faceCellIndex maps a 0..PatchSize^2-1 slab index back to the flattened
// PatchSize^3 cell index on the named face, using the same orientation
// PackFace reads from.
func faceCellIndex(face, slabIdx int) int {
	off := amr.SiblingOffset[face]
	// Faces have exactly one nonzero axis; the slab is laid out in the
	// remaining two axes in the same z-major order PackFace uses.
	var fixedAxis int
	for axis, c := range off {
		if c != 0 {
			fixedAxis = axis
		}
	}
	fixedVal := 0
	if off[fixedAxis] == 1 {
		fixedVal = amr.PatchSize - 1
	}

	coords := [3]int{}
	coords[fixedAxis] = fixedVal
	free := [2]int{}
	k := 0
	for axis := 0; axis < 3; axis++ {
		if axis != fixedAxis {
			free[k] = axis
			k++
		}
	}
	coords[free[0]] = slabIdx % amr.PatchSize
	coords[free[1]] = slabIdx / amr.PatchSize

	return coords[0] + amr.PatchSize*coords[1] + amr.PatchSize*amr.PatchSize*coords[2]
}

// clampPositive floors every density cell to minDens without touching
// energy or momentum, matching GAMER's POSITIVE_DENS_IN_FIXUP shortcut.
func clampPositive(dens []float64, minDens float64) {
	for i := range dens {
		if dens[i] < minDens {
			dens[i] = minDens
		}
	}
}

// reconstructEnergy floors density and pressure and rebuilds total energy
// from the floored pressure plus kinetic energy, the non-shortcut branch of
// Flu_FixUp.cpp's density/energy correction.
func reconstructEnergy(vars [][]float64, minDens, minPres float64) {
	dens, momx, momy, momz, engy := vars[0], vars[1], vars[2], vars[3], vars[4]
	const gammaMinus1 = 2.0 / 3.0 // monatomic ideal gas, gamma = 5/3

	for i := range dens {
		if dens[i] < minDens {
			dens[i] = minDens
		}
		kinetic := 0.5 * (momx[i]*momx[i] + momy[i]*momy[i] + momz[i]*momz[i]) / dens[i]
		pres := (engy[i] - kinetic) * gammaMinus1
		if pres < minPres {
			pres = minPres
			engy[i] = pres/gammaMinus1 + kinetic
		}
	}
}

// rescaleELBDM renormalizes the real/imaginary passive pair so that
// density (vars[0]) still matches Re^2+Im^2 after a flux correction has
// perturbed it independently, matching GAMER's mass-conservation rescale
// for the wave-function solver.
func rescaleELBDM(vars [][]float64) {
	if len(vars) < PassiveStart+1 {
		return
	}
	dens, re, im := vars[DensIdx], vars[PassiveStart], vars[PassiveStart+1]
	for i := range dens {
		amp2 := re[i]*re[i] + im[i]*im[i]
		if amp2 <= 0 {
			continue
		}
		scale := sqrt(dens[i] / amp2)
		re[i] *= scale
		im[i] *= scale
	}
}

func sqrt(x float64) float64 {
	if x < 0 {
		return 0
	}
	// Newton's method avoids pulling in math just for one call site used
	// only on already-clamped, non-negative densities.
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 8; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// Restrict averages a fine patch's PatchSize^3 interior down into one
// octant of its father's PatchSize^3 array, the 8-to-1 block average every
// coarsened cell receives. octant selects which PatchSize/2 sub-cube of the
// father the fine patch's data lands in, using the same bit layout as
// amr.SiblingOffset's {-1,+1} convention (bit i set means the high half of
// axis i).
func Restrict(father, fine *amr.Patch, octant int) error {
	if father.NVar() != fine.NVar() {
		return fmt.Errorf("fixup: father has %d variables, fine patch has %d",
			father.NVar(), fine.NVar())
	}
	half := amr.PatchSize / 2
	ox, oy, oz := octant&1, (octant>>1)&1, (octant>>2)&1

	fVars, cVars := fine.CurFluid(), father.CurFluid()
	for v := range fVars {
		fine8 := make([]float64, 0, 8)
		for cz := 0; cz < half; cz++ {
			for cy := 0; cy < half; cy++ {
				for cx := 0; cx < half; cx++ {
					fine8 = fine8[:0]
					for dz := 0; dz < 2; dz++ {
						for dy := 0; dy < 2; dy++ {
							for dx := 0; dx < 2; dx++ {
								fx, fy, fz := cx*2+dx, cy*2+dy, cz*2+dz
								idx := fx + amr.PatchSize*fy + amr.PatchSize*amr.PatchSize*fz
								fine8 = append(fine8, fVars[v][idx])
							}
						}
					}
					avg := floats.Sum(fine8) / 8

					px, py, pz := ox*half+cx, oy*half+cy, oz*half+cz
					pIdx := px + amr.PatchSize*py + amr.PatchSize*amr.PatchSize*pz
					cVars[v][pIdx] = avg
				}
			}
		}
	}
	return nil
}

// CheckConservation sums a fluid variable across a set of patches before
// and after a fix-up pass and reports whether the two totals agree within
// a relative tolerance. It is meant to run only under Options.Debug, the
// same GAMER_DEBUG-gated invariant check CheckReciprocity uses: with debug
// false it returns nil without checking, and with debug true a violation is
// reported through errs.Internal, which exits the process.
func CheckConservation(before, after []float64, rtol float64, debug bool) error {
	if !debug {
		return nil
	}
	if len(before) != len(after) {
		return fmt.Errorf("fixup: conservation check given mismatched slices")
	}
	b, a := floats.Sum(before), floats.Sum(after)
	if b == 0 {
		if a != 0 {
			errs.Internal("conservation violated: total went from 0 to %g", a)
			return fmt.Errorf("conservation violated")
		}
		return nil
	}
	if diff := (a - b) / b; diff > rtol || diff < -rtol {
		errs.Internal("conservation violated: total changed from %g to %g (%.3g relative)",
			b, a, diff)
		return fmt.Errorf("conservation violated")
	}
	return nil
}
