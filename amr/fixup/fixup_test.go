package fixup

import (
	"testing"

	"github.com/Aabhash007/gamer/amr"
	"github.com/Aabhash007/gamer/internal/eq"
)

func newPatch(h *amr.Hierarchy, level int) (*amr.Patch, amr.PatchID) {
	id, p, err := h.Allocate(level)
	if err != nil {
		panic(err)
	}
	return p, id
}

func TestCorrectFluxLowFaceSubtractsHighFaceAdds(t *testing.T) {
	h := amr.NewHierarchy(0, 5, 0)
	n := amr.PatchSize * amr.PatchSize

	lowFace, highFace := -1, -1
	for d := 0; d < 6; d++ {
		for _, c := range amr.SiblingOffset[d] {
			if c == -1 && lowFace == -1 {
				lowFace = d
			}
			if c == 1 && highFace == -1 {
				highFace = d
			}
		}
	}

	opt := Options{PositiveDensInFixUp: true, MinDens: 0}

	p, _ := newPatch(h, 0)
	for i := range p.CurFluid()[0] {
		p.CurFluid()[0][i] = 1
	}
	flux := make([]float64, 5*n)
	for i := range flux[:n] {
		flux[i] = 2 // only density flux is nonzero
	}

	if err := CorrectFlux(p, lowFace, flux, 1, 1, opt); err != nil {
		t.Fatalf("CorrectFlux failed: %v", err)
	}
	idx := faceCellIndex(lowFace, 0)
	if p.CurFluid()[0][idx] != 1 {
		t.Errorf("Expected the low-face density correction (1 - 2 = -1) to be "+
			"skipped under PositiveDensInFixUp, leaving 1, got %f.", p.CurFluid()[0][idx])
	}

	p2, _ := newPatch(h, 0)
	for i := range p2.CurFluid()[0] {
		p2.CurFluid()[0][i] = 1
	}
	if err := CorrectFlux(p2, highFace, flux, 1, 1, opt); err != nil {
		t.Fatalf("CorrectFlux failed: %v", err)
	}
	idx2 := faceCellIndex(highFace, 0)
	if p2.CurFluid()[0][idx2] != 3 {
		t.Errorf("Expected high-face correction to add flux (1 + 2 = 3), got %f.",
			p2.CurFluid()[0][idx2])
	}
}

func TestRestrictAverages(t *testing.T) {
	h := amr.NewHierarchy(1, 1, 0)
	father, _ := newPatch(h, 0)
	fine, _ := newPatch(h, 1)

	for i := range fine.CurFluid()[0] {
		fine.CurFluid()[0][i] = 8 // every fine cell the same, average must be 8
	}

	if err := Restrict(father, fine, 0); err != nil {
		t.Fatalf("Restrict failed: %v", err)
	}

	half := amr.PatchSize / 2
	for z := 0; z < half; z++ {
		for y := 0; y < half; y++ {
			for x := 0; x < half; x++ {
				idx := x + amr.PatchSize*y + amr.PatchSize*amr.PatchSize*z
				if father.CurFluid()[0][idx] != 8 {
					t.Errorf("Expected restricted value 8 at (%d,%d,%d), got %f.",
						x, y, z, father.CurFluid()[0][idx])
				}
			}
		}
	}
}

func TestCheckConservation(t *testing.T) {
	before := []float64{1, 2, 3}
	after := []float64{1, 2, 3}
	if err := CheckConservation(before, after, 1e-9, true); err != nil {
		t.Errorf("Expected matching totals to pass, got error %v.", err)
	}

	afterBad := []float64{10, 2, 3}
	if err := CheckConservation(before, afterBad, 1e-9, true); err == nil {
		t.Errorf("Expected a changed total to be flagged, but it passed.")
	}

	if err := CheckConservation(before, afterBad, 1e-9, false); err != nil {
		t.Errorf("Expected CheckConservation to be a no-op outside Debug, got error %v.", err)
	}

	if !eq.Float64s(before, []float64{1, 2, 3}) {
		t.Errorf("CheckConservation must not mutate its inputs.")
	}
}
