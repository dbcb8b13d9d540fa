package starform

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Aabhash007/gamer/amr"
	"github.com/Aabhash007/gamer/amr/extgrav"
	"github.com/Aabhash007/gamer/amr/particle"
)

func newTestPatch(nVar int, dens float64) *amr.Patch {
	n := amr.PatchSize
	cells := n * n * n
	fluid := [2][][]float64{make([][]float64, nVar), make([][]float64, nVar)}
	for v := 0; v < nVar; v++ {
		fluid[0][v] = make([]float64, cells)
		fluid[1][v] = make([]float64, cells)
	}
	for i := 0; i < cells; i++ {
		fluid[0][0][i] = dens // density
	}
	return &amr.Patch{Fluid: fluid, Cur: 0}
}

func TestFreeFallTimeDecreasesWithDensity(t *testing.T) {
	tLow := FreeFallTime(1.0, 1.0)
	tHigh := FreeFallTime(100.0, 1.0)
	if tHigh >= tLow {
		t.Errorf("Expected higher density to give a shorter free-fall time: low=%f high=%f.", tLow, tHigh)
	}
	if !math.IsInf(FreeFallTime(0, 1.0), 1) {
		t.Errorf("Expected zero density to give an infinite free-fall time.")
	}
}

func TestPromotionProbabilityBounds(t *testing.T) {
	if p := PromotionProbability(0, 1.0); p != 0 {
		t.Errorf("Expected zero probability for zero star mass, got %f.", p)
	}
	if p := PromotionProbability(1.0, 1.0); p != 1 {
		t.Errorf("Expected certainty once star mass reaches the minimum, got %f.", p)
	}
	if p := PromotionProbability(0.25, 1.0); p != 0.25 {
		t.Errorf("Expected the probability to equal mStar/mMin below the minimum, got %f.", p)
	}
}

// TestCreateStarsMatchesMassFractionFormula pins down Testable Property
// scenario 4: seed=42, efficiency=0.01, dt=1, G=1 on dense cells converts
// StarMFrac = efficiency*dt*sqrt(32*G/(3*pi))*sqrt(rho) of each cell's gas
// mass to stars, i.e. 0.01*sqrt(320/(3*pi)) =~ 0.05827 for rho=10.
// MinStarMass is set below the per-cell star mass so every cell promotes
// deterministically and the sampled mass can be checked to 1e-6.
func TestCreateStarsMatchesMassFractionFormula(t *testing.T) {
	rho := 10.0
	p := newTestPatch(6, rho)
	opt := Options{Efficiency: 0.01, MinStarMass: 0.5, MinDens: 10, GravConst: 1}
	rng := NewRNG(42)

	cellVol := 1.0 // dh = 1
	wantFrac := opt.Efficiency * 1.0 * math.Sqrt(32*opt.GravConst/(3*math.Pi)) * math.Sqrt(rho)
	if math.Abs(wantFrac-0.05827) > 1e-5 {
		t.Fatalf("Test setup error: expected StarMFrac near 0.05827, computed %f.", wantFrac)
	}
	wantMass := wantFrac * rho * cellVol

	stars, err := CreateStars(p, 1.0, 1.0, opt, rng)
	if err != nil {
		t.Fatalf("CreateStars failed: %v", err)
	}
	n := amr.PatchSize
	if len(stars) != n*n*n {
		t.Fatalf("Expected every cell to promote deterministically, got %d of %d.", len(stars), n*n*n)
	}

	for i, s := range stars {
		if math.Abs(s.Mass-wantMass) > 1e-6*wantMass {
			t.Errorf("Star %d: expected mass %f (StarMFrac=%f), got %f.", i, wantMass, wantFrac, s.Mass)
		}
	}
}

func TestCreateStarsRemovesMassFromGas(t *testing.T) {
	p := newTestPatch(6, 1e6) // dense enough that promotion is near-certain
	opt := Options{Efficiency: 0.9, MinStarMass: 0, MinDens: 1, GravConst: 1}
	rng := NewRNG(42)

	before := 0.0
	for _, d := range p.CurFluid()[0] {
		before += d
	}

	stars, err := CreateStars(p, 1.0, 1e6, opt, rng)
	if err != nil {
		t.Fatalf("CreateStars failed: %v", err)
	}
	if len(stars) == 0 {
		t.Fatalf("Expected at least one star to form at this density and efficiency.")
	}

	after := 0.0
	for _, d := range p.CurFluid()[0] {
		after += d
	}
	if after >= before {
		t.Errorf("Expected gas mass to decrease after star formation: before=%f after=%f.", before, after)
	}

	var starMass float64
	for _, s := range stars {
		starMass += s.Mass
	}
	if math.Abs((before-after)-starMass) > 1e-6*before {
		t.Errorf("Expected removed gas mass (%f) to match spawned star mass (%f).", before-after, starMass)
	}
}

func TestCreateStarsSkipsLowDensityCells(t *testing.T) {
	p := newTestPatch(6, 0)
	opt := Options{Efficiency: 0.9, MinStarMass: 0, MinDens: 1, GravConst: 1}
	rng := NewRNG(7)

	stars, err := CreateStars(p, 1.0, 1.0, opt, rng)
	if err != nil {
		t.Fatalf("CreateStars failed: %v", err)
	}
	if len(stars) != 0 {
		t.Errorf("Expected no stars below MinDens, got %d.", len(stars))
	}
}

func TestCreateStarsRejectsTooFewVariables(t *testing.T) {
	p := newTestPatch(3, 1.0)
	opt := Options{Efficiency: 0.1, GravConst: 1}
	rng := NewRNG(1)
	if _, err := CreateStars(p, 1.0, 1.0, opt, rng); err == nil {
		t.Errorf("Expected an error for a patch without a metal-tracer slot.")
	}
}

func TestSelfGravityGradientPointsDownhill(t *testing.T) {
	side := amr.PatchSize + 2*amr.GhostWidth
	pot := make([]float64, side*side*side)
	at := func(x, y, z int) int { return x + side*y + side*side*z }
	for z := 0; z < side; z++ {
		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				pot[at(x, y, z)] = float64(x) // linear ramp along x
			}
		}
	}

	g, err := SelfGravityGradient(pot, 0, 0, 0, 1.0)
	if err != nil {
		t.Fatalf("SelfGravityGradient failed: %v", err)
	}
	if g.X >= 0 {
		t.Errorf("Expected acceleration to point toward decreasing potential (negative x), got %f.", g.X)
	}
	if g.Y != 0 || g.Z != 0 {
		t.Errorf("Expected zero transverse acceleration on a pure x-ramp, got (%f, %f).", g.Y, g.Z)
	}
}

func TestSelfGravityGradientRejectsWrongSize(t *testing.T) {
	if _, err := SelfGravityGradient(make([]float64, 3), 0, 0, 0, 1.0); err == nil {
		t.Errorf("Expected an error for a mis-sized PotExt buffer.")
	}
}

func TestExternalPotentialGradientMatchesPointMass(t *testing.T) {
	hook := &extgrav.PointMass{Softening: extgrav.Plummer}
	aux := extgrav.InitAuxArray(r3.Vec{}, 1.0, 0)

	g, err := ExternalPotentialGradient(hook, r3.Vec{X: 2}, 0, 1e-4, aux)
	if err != nil {
		t.Fatalf("ExternalPotentialGradient failed: %v", err)
	}
	want := -1.0 / 4.0
	if math.Abs(g.X-want) > 1e-3 {
		t.Errorf("Expected a_x close to %f, got %f.", want, g.X)
	}
}

func TestParticleAccelerationCombinesSources(t *testing.T) {
	p := newTestPatch(6, 0)
	hook := &extgrav.PointMass{Softening: extgrav.Plummer}
	aux := extgrav.InitAuxArray(r3.Vec{X: -5}, 1.0, 0)

	a, err := ParticleAcceleration(p, 0, 0, 0, 1.0, 0, hook, aux, nil, [extgrav.NAuxMax]float64{})
	if err != nil {
		t.Fatalf("ParticleAcceleration failed: %v", err)
	}
	if a.X >= 0 {
		t.Errorf("Expected negative x acceleration toward a mass at x=-5 from a particle near the origin, got %f.", a.X)
	}
}

func TestIntoStoreAppendsAllFields(t *testing.T) {
	store := particle.Store{}
	stars := []NewStar{
		{Pos: r3.Vec{X: 1, Y: 2, Z: 3}, Vel: r3.Vec{X: 0.1}, Mass: 10, MetalFrac: 0.02},
		{Pos: r3.Vec{X: 4, Y: 5, Z: 6}, Vel: r3.Vec{Y: 0.2}, Mass: 20, MetalFrac: 0.04},
	}

	IntoStore(store, stars)

	mass, ok := store["mass"]
	if !ok {
		t.Fatalf("Expected store to gain a 'mass' field.")
	}
	if mass.Len() != 2 {
		t.Errorf("Expected 2 stars in 'mass', got %d.", mass.Len())
	}

	posx, ok := store["pos[0]"]
	if !ok {
		t.Fatalf("Expected store to gain a 'pos[0]' field.")
	}
	data := posx.Data().([]float64)
	if data[0] != 1 || data[1] != 4 {
		t.Errorf("Expected pos[0] = [1, 4], got %v.", data)
	}

	IntoStore(store, stars)
	if store["mass"].Len() != 4 {
		t.Errorf("Expected a second IntoStore call to append, got length %d.", store["mass"].Len())
	}
}

func TestDebugCrossCheckPotentialIsNegative(t *testing.T) {
	stars := []NewStar{
		{Pos: r3.Vec{X: 0, Y: 0, Z: 0}, Mass: 10},
		{Pos: r3.Vec{X: 1, Y: 0, Z: 0}, Mass: 10},
		{Pos: r3.Vec{X: 0, Y: 1, Z: 0}, Mass: 10},
	}
	pot, err := DebugCrossCheckPotential(stars, 1.0, 0.01)
	if err != nil {
		t.Fatalf("DebugCrossCheckPotential failed: %v", err)
	}
	if len(pot) != len(stars) {
		t.Fatalf("Expected %d potentials, got %d.", len(stars), len(pot))
	}
	for i, p := range pot {
		if p >= 0 {
			t.Errorf("Star %d: expected a negative mutual potential, got %f.", i, p)
		}
	}
}

func TestDebugCrossCheckPotentialEmpty(t *testing.T) {
	pot, err := DebugCrossCheckPotential(nil, 1.0, 0.01)
	if err != nil {
		t.Fatalf("DebugCrossCheckPotential failed: %v", err)
	}
	if pot != nil {
		t.Errorf("Expected a nil result for no stars, got %v.", pot)
	}
}

func TestReduceCountLocal(t *testing.T) {
	stars := []NewStar{{Mass: 1}, {Mass: 2}, {Mass: 3}}
	n, err := ReduceCount(context.Background(), LocalReducer{}, stars)
	if err != nil {
		t.Fatalf("ReduceCount failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected a local reduce of 3 stars to return 3, got %d.", n)
	}
}
