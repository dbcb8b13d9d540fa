package extgrav

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestPlummerUnsoftenedMatchesNewtonian(t *testing.T) {
	p := &PointMass{Softening: Plummer}
	aux := InitAuxArray(r3.Vec{}, 1.0, 0) // eps<=0 disables softening

	pos := r3.Vec{X: 2, Y: 0, Z: 0}
	accel, err := p.Accel(pos, 0, aux)
	if err != nil {
		t.Fatalf("Accel failed: %v", err)
	}

	want := -1.0 / 4.0 // -GM/r^2
	if math.Abs(accel.X-want) > 1e-9 {
		t.Errorf("Expected a_x = %f, got %f.", want, accel.X)
	}
	if accel.Y != 0 || accel.Z != 0 {
		t.Errorf("Expected zero transverse acceleration, got (%f, %f).", accel.Y, accel.Z)
	}
}

func TestPlummerSofteningReducesPeakAcceleration(t *testing.T) {
	p := &PointMass{Softening: Plummer}
	unsoftened := InitAuxArray(r3.Vec{}, 1.0, 0)
	softened := InitAuxArray(r3.Vec{}, 1.0, 0.5)

	pos := r3.Vec{X: 0.1, Y: 0, Z: 0}
	aU, _ := p.Accel(pos, 0, unsoftened)
	aS, _ := p.Accel(pos, 0, softened)

	if math.Abs(aS.X) >= math.Abs(aU.X) {
		t.Errorf("Expected softened acceleration magnitude (%f) to be smaller "+
			"than unsoftened (%f) near the point mass.", aS.X, aU.X)
	}
}

func TestPotentialIsNegative(t *testing.T) {
	for _, s := range []Softening{Plummer, Ruffert} {
		p := &PointMass{Softening: s}
		aux := InitAuxArray(r3.Vec{}, 1.0, 0.2)
		pot, err := p.Potential(r3.Vec{X: 1, Y: 1, Z: 1}, 0, aux)
		if err != nil {
			t.Errorf("Potential failed for softening %d: %v.", s, err)
			continue
		}
		if pot >= 0 {
			t.Errorf("Expected a negative potential for softening %d, got %f.", s, pot)
		}
	}
}
