/*Package starform implements stochastic mass-to-particle conversion:
Jeans/free-fall-time gated promotion of dense gas into star particles,
ported from GAMER's SF_CreateStar_AGORA.cpp. Each new particle inherits the
cell's passive metal fraction and is given an acceleration assembled from
self-gravity, any external-acceleration hook, and the gradient of any
external-potential hook.
*/
package starform

import (
	"context"
	"fmt"
	"math"

	"github.com/phil-mansfield/gravitree"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/Aabhash007/gamer/amr"
	"github.com/Aabhash007/gamer/amr/extgrav"
	"github.com/Aabhash007/gamer/amr/fixup"
	"github.com/Aabhash007/gamer/amr/particle"
)

// Options configures one star-formation pass.
type Options struct {
	Efficiency  float64 // fraction of the cell's gas mass converted per free-fall time
	MinStarMass float64 // particles below this mass are not spawned
	MinDens     float64 // gas below this density is never eligible
	GravConst   float64 // gravitational constant in code units
}

// FreeFallTime returns the free-fall time of gas at density rho, the same
// sqrt(3*pi / (32*G*rho)) GAMER uses to gate star formation.
func FreeFallTime(rho, gravConst float64) float64 {
	if rho <= 0 {
		return math.Inf(1)
	}
	return math.Sqrt(3 * math.Pi / (32 * gravConst * rho))
}

// PromotionProbability returns the probability that a cell whose computed
// star mass mStar falls short of the minimum particle mass mMin is
// stochastically promoted anyway: mStar/mMin, clamped to [0, 1]. A cell
// that already meets mMin always promotes (probability 1).
func PromotionProbability(mStar, mMin float64) float64 {
	if mMin <= 0 {
		return 1
	}
	if mStar >= mMin {
		return 1
	}
	if mStar <= 0 {
		return 0
	}
	return mStar / mMin
}

// NewStar is one particle spawned by a CreateStars pass, before it is
// folded into a particle.Store.
type NewStar struct {
	Pos, Vel  r3.Vec
	Mass      float64
	MetalFrac float64
}

// CreateStars walks every cell in a patch's current fluid buffer, rolls
// the promotion probability with rng, and spawns a star particle for each
// cell that crosses it, removing the spawned mass (and a matching fraction
// of momentum and metal mass) from the gas. Cell indexing follows the same
// PatchSize^3 z-major layout as amr.PackFace.
func CreateStars(p *amr.Patch, dh, dt float64, opt Options, rng *RNG) ([]NewStar, error) {
	if p.NVar() < fixup.PassiveStart+1 {
		return nil, fmt.Errorf("starform: patch has %d fluid variables, need at least %d for a metal tracer",
			p.NVar(), fixup.PassiveStart+1)
	}
	vars := p.CurFluid()
	dens, momx, momy, momz := vars[0], vars[1], vars[2], vars[3]
	metal := vars[fixup.PassiveStart]
	cellVol := dh * dh * dh

	var stars []NewStar
	n := amr.PatchSize
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				idx := x + n*y + n*n*z
				rho := dens[idx]
				if rho < opt.MinDens {
					continue
				}

				tff := FreeFallTime(rho, opt.GravConst)
				invTff := 0.0
				if !math.IsInf(tff, 1) && tff > 0 {
					invTff = 1 / tff
				}
				starMass := opt.Efficiency * dt * rho * cellVol * invTff

				if starMass < opt.MinStarMass {
					prob := PromotionProbability(starMass, opt.MinStarMass)
					if rng.Uniform() >= prob {
						continue
					}
					starMass = opt.MinStarMass
				}
				if starMass > rho*cellVol {
					starMass = rho * cellVol
				}

				frac := starMass / (rho * cellVol)
				vel := r3.Vec{X: momx[idx] / rho, Y: momy[idx] / rho, Z: momz[idx] / rho}
				metalFrac := metal[idx] / rho

				stars = append(stars, NewStar{
					Pos:       cellCenter(p, x, y, z, dh),
					Vel:       vel,
					Mass:      starMass,
					MetalFrac: metalFrac,
				})

				dens[idx] -= starMass / cellVol
				momx[idx] -= frac * momx[idx]
				momy[idx] -= frac * momy[idx]
				momz[idx] -= frac * momz[idx]
				metal[idx] -= frac * metal[idx]
			}
		}
	}
	return stars, nil
}

func cellCenter(p *amr.Patch, x, y, z int, dh float64) r3.Vec {
	return r3.Vec{
		X: (float64(p.Corner[0]) + float64(x) + 0.5) * dh,
		Y: (float64(p.Corner[1]) + float64(y) + 0.5) * dh,
		Z: (float64(p.Corner[2]) + float64(z) + 0.5) * dh,
	}
}

// SelfGravityGradient returns -grad(Phi) at a cell using a centered finite
// difference across the patch's ghost-inclusive potential buffer, PotExt.
// x, y, z are interior-cell coordinates (0..PatchSize-1); PotExt must be
// laid out with amr.GhostWidth ghost cells on every side.
func SelfGravityGradient(potExt []float64, x, y, z int, dh float64) (r3.Vec, error) {
	side := amr.PatchSize + 2*amr.GhostWidth
	if len(potExt) != side*side*side {
		return r3.Vec{}, fmt.Errorf(
			"starform: PotExt has %d cells, want %d for a %d-wide ghost-inclusive cube",
			len(potExt), side*side*side, side)
	}

	gx, gy, gz := x+amr.GhostWidth, y+amr.GhostWidth, z+amr.GhostWidth
	at := func(dx, dy, dz int) float64 {
		idx := (gx + dx) + side*(gy+dy) + side*side*(gz+dz)
		return potExt[idx]
	}

	ddx := (at(1, 0, 0) - at(-1, 0, 0)) / (2 * dh)
	ddy := (at(0, 1, 0) - at(0, -1, 0)) / (2 * dh)
	ddz := (at(0, 0, 1) - at(0, 0, -1)) / (2 * dh)

	return r3.Vec{X: -ddx, Y: -ddy, Z: -ddz}, nil
}

// ExternalPotentialGradient approximates -grad(Phi_ext) at pos with a
// centered finite difference evaluated at the six face centers of a cube
// of half-width h, the same probe pattern GAMER's external-potential
// force assembly uses when no closed-form acceleration hook is available.
func ExternalPotentialGradient(
	hook extgrav.Hook, pos r3.Vec, t, h float64, aux [extgrav.NAuxMax]float64,
) (r3.Vec, error) {
	probe := func(d r3.Vec) (float64, error) {
		return hook.Potential(r3.Add(pos, d), t, aux)
	}

	px1, err := probe(r3.Vec{X: h})
	if err != nil {
		return r3.Vec{}, err
	}
	px0, err := probe(r3.Vec{X: -h})
	if err != nil {
		return r3.Vec{}, err
	}
	py1, err := probe(r3.Vec{Y: h})
	if err != nil {
		return r3.Vec{}, err
	}
	py0, err := probe(r3.Vec{Y: -h})
	if err != nil {
		return r3.Vec{}, err
	}
	pz1, err := probe(r3.Vec{Z: h})
	if err != nil {
		return r3.Vec{}, err
	}
	pz0, err := probe(r3.Vec{Z: -h})
	if err != nil {
		return r3.Vec{}, err
	}

	return r3.Vec{
		X: -(px1 - px0) / (2 * h),
		Y: -(py1 - py0) / (2 * h),
		Z: -(pz1 - pz0) / (2 * h),
	}, nil
}

// ParticleAcceleration assembles the full acceleration a newly spawned
// particle feels: self-gravity from the patch's PotExt buffer, any
// external-acceleration hook evaluated directly, and the gradient of any
// external-potential hook.
func ParticleAcceleration(
	p *amr.Patch, x, y, z int, dh, t float64,
	extAccel extgrav.Hook, extAccelAux [extgrav.NAuxMax]float64,
	extPot extgrav.Hook, extPotAux [extgrav.NAuxMax]float64,
) (r3.Vec, error) {
	total := r3.Vec{}

	if p.PotExt != nil {
		g, err := SelfGravityGradient(p.PotExt, x, y, z, dh)
		if err != nil {
			return r3.Vec{}, err
		}
		total = r3.Add(total, g)
	}

	pos := cellCenter(p, x, y, z, dh)
	if extAccel != nil {
		a, err := extAccel.Accel(pos, t, extAccelAux)
		if err != nil {
			return r3.Vec{}, err
		}
		total = r3.Add(total, a)
	}

	if extPot != nil {
		g, err := ExternalPotentialGradient(extPot, pos, t, dh/2, extPotAux)
		if err != nil {
			return r3.Vec{}, err
		}
		total = r3.Add(total, g)
	}

	return total, nil
}

// Reducer sums a single value across every rank; a star-formation pass
// uses it to find the global count of newly spawned particles.
type Reducer interface {
	SumInt64(ctx context.Context, local int64) (int64, error)
}

// LocalReducer is the single-rank Reducer, the star-formation analogue of
// exchange.LocalTransport: it hands the local count straight back since
// there is no other rank to sum across.
type LocalReducer struct{}

func (LocalReducer) SumInt64(ctx context.Context, local int64) (int64, error) {
	return local, nil
}

// ReduceCount folds a batch of newly spawned stars into the global count of
// particles created this step, for logging and for sizing the next
// checkpoint's particle arrays.
func ReduceCount(ctx context.Context, r Reducer, stars []NewStar) (int64, error) {
	return r.SumInt64(ctx, int64(len(stars)))
}

// IntoStore appends a set of newly spawned stars into a particle.Store,
// growing every field in lock-step. It is the local half of an injection
// pass; ReduceCount handles the cross-rank total.
func IntoStore(store particle.Store, stars []NewStar) {
	n := len(stars)
	if n == 0 {
		return
	}

	pos := make([][3]float64, n)
	vel := make([][3]float64, n)
	mass := make([]float64, n)
	metal := make([]float64, n)
	for i, s := range stars {
		pos[i] = [3]float64{s.Pos.X, s.Pos.Y, s.Pos.Z}
		vel[i] = [3]float64{s.Vel.X, s.Vel.Y, s.Vel.Z}
		mass[i] = s.Mass
		metal[i] = s.MetalFrac
	}

	appendVec(store, "pos", pos)
	appendVec(store, "vel", vel)
	appendScalar(store, "mass", mass)
	appendScalar(store, "metalfrac", metal)
}

func appendScalar(store particle.Store, name string, x []float64) {
	existing, ok := store[name]
	if !ok {
		store[name] = particle.NewFloat64(name, x)
		return
	}
	merged := append(existing.Data().([]float64), x...)
	store[name] = particle.NewFloat64(name, merged)
}

func appendVec(store particle.Store, name string, x [][3]float64) {
	for d, suffix := range []string{"[0]", "[1]", "[2]"} {
		col := make([]float64, len(x))
		for i := range x {
			col[i] = x[i][d]
		}
		appendScalar(store, name+suffix, col)
	}
}

// DebugCrossCheckPotential recomputes the mutual gravitational potential of
// a batch of newly spawned stars with a Barnes-Hut tree instead of the
// patch-local finite-difference gradient, the same kind of independent
// cross-check the teacher's analysis scripts run against PotExt. It is
// meant to be called only under a debug flag: building the tree costs
// O(N log N) and duplicates work CreateStars already did locally.
func DebugCrossCheckPotential(stars []NewStar, gravConst, eps float64) ([]float64, error) {
	if len(stars) == 0 {
		return nil, nil
	}
	pos := make([][3]float64, len(stars))
	for i, s := range stars {
		pos[i] = [3]float64{s.Pos.X, s.Pos.Y, s.Pos.Z}
	}

	tree := gravitree.NewTree(pos)
	pot := make([]float64, len(stars))
	tree.Potential(eps, pot)
	for i := range pot {
		pot[i] *= gravConst * stars[i].Mass
	}
	return pot, nil
}

// MeanStarMass is a small diagnostic used by regression tests and debug
// logging to sanity-check a batch of newly spawned stars.
func MeanStarMass(stars []NewStar) float64 {
	if len(stars) == 0 {
		return 0
	}
	masses := make([]float64, len(stars))
	for i, s := range stars {
		masses[i] = s.Mass
	}
	return stat.Mean(masses, nil)
}
