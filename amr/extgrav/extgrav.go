/*Package extgrav implements the external acceleration/potential hook: a
function-pointer-pair pattern with a small bounded auxiliary array, ported
from GAMER's CPU_ExtAcc_PointMass.cpp. Go expresses the function pointer
pair as an interface instead, but keeps the aux-array calling convention
so existing parameter files need no translation.
*/
package extgrav

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NAuxMax bounds the auxiliary parameter array passed to a hook, matching
// GAMER_FLT UserArray[N_aux_max] in the original.
const NAuxMax = 10

// Softening selects which softened-gravity convention a point mass hook
// uses. Eps <= 0 disables softening entirely in both conventions, the
// literal convention the original source preserves.
type Softening int

const (
	// Plummer softening: Phi = -GM / sqrt(r^2 + eps^2).
	Plummer Softening = iota
	// Ruffert softening smooths the 1/r singularity over a finite core
	// radius instead of adding eps^2 under the square root.
	Ruffert
)

// Hook is the acceleration/potential function-pointer pair external
// gravity sources must implement.
type Hook interface {
	Accel(pos r3.Vec, t float64, aux [NAuxMax]float64) (r3.Vec, error)
	Potential(pos r3.Vec, t float64, aux [NAuxMax]float64) (float64, error)
}

// PointMass is the canonical Hook: a single point mass at a fixed position
// with either Plummer or Ruffert softening.
type PointMass struct {
	Softening Softening
}

// PointMassAux lays out the auxiliary array a PointMass hook expects:
// aux[0..2] is the mass's position, aux[3] is GM, aux[4] is the softening
// length (<=0 disables softening).
type PointMassAux struct {
	Pos r3.Vec
	GM  float64
	Eps float64
}

// Pack writes a PointMassAux into the [NAuxMax]float64 calling convention.
func (a PointMassAux) Pack() [NAuxMax]float64 {
	var out [NAuxMax]float64
	out[0], out[1], out[2] = a.Pos.X, a.Pos.Y, a.Pos.Z
	out[3] = a.GM
	out[4] = a.Eps
	return out
}

// UnpackPointMassAux reverses Pack.
func UnpackPointMassAux(aux [NAuxMax]float64) PointMassAux {
	return PointMassAux{
		Pos: r3.Vec{X: aux[0], Y: aux[1], Z: aux[2]},
		GM:  aux[3],
		Eps: aux[4],
	}
}

// Accel returns the acceleration a test particle at pos feels from the
// point mass, softened per p.Softening.
func (p *PointMass) Accel(pos r3.Vec, t float64, aux [NAuxMax]float64) (r3.Vec, error) {
	a := UnpackPointMassAux(aux)
	d := r3.Sub(pos, a.Pos)
	r2 := r3.Dot(d, d)

	var denom float64
	switch p.Softening {
	case Plummer:
		if a.Eps > 0 {
			denom = math.Pow(r2+a.Eps*a.Eps, 1.5)
		} else {
			denom = math.Pow(r2, 1.5)
		}
	case Ruffert:
		r := math.Sqrt(r2)
		if a.Eps > 0 {
			// Ruffert (1994): smoothly interpolates the denominator between
			// r^3 far from the core and a softened form inside eps.
			s := r / a.Eps
			smooth := math.Sqrt(1 + s*s*s*s*s*s)
			denom = r2 * r * math.Pow(smooth, 1.0/3.0)
		} else {
			denom = r * r2
		}
	default:
		return r3.Vec{}, fmt.Errorf("extgrav: unrecognized softening %d", p.Softening)
	}

	if denom == 0 {
		return r3.Vec{}, fmt.Errorf("extgrav: singular acceleration at the point mass itself")
	}
	scale := -a.GM / denom
	return r3.Scale(scale, d), nil
}

// Potential returns the potential at pos sourced by the point mass.
func (p *PointMass) Potential(pos r3.Vec, t float64, aux [NAuxMax]float64) (float64, error) {
	a := UnpackPointMassAux(aux)
	d := r3.Sub(pos, a.Pos)
	r2 := r3.Dot(d, d)

	switch p.Softening {
	case Plummer:
		if a.Eps > 0 {
			return -a.GM / math.Sqrt(r2+a.Eps*a.Eps), nil
		}
		return -a.GM / math.Sqrt(r2), nil
	case Ruffert:
		r := math.Sqrt(r2)
		if a.Eps > 0 {
			s := r / a.Eps
			smooth := math.Sqrt(1 + s*s*s*s*s*s)
			return -a.GM / (r * math.Pow(smooth, 1.0/6.0)), nil
		}
		return -a.GM / r, nil
	default:
		return 0, fmt.Errorf("extgrav: unrecognized softening %d", p.Softening)
	}
}

// InitAuxArray builds the aux array GAMER's Init_ExtAccAuxArray_PointMass
// would produce for a point mass of the given mass (in code units already
// multiplied by G) at pos with softening length eps.
func InitAuxArray(pos r3.Vec, gm, eps float64) [NAuxMax]float64 {
	return PointMassAux{Pos: pos, GM: gm, Eps: eps}.Pack()
}
