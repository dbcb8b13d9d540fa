package particle

import "testing"

func TestFloat64Transfer(t *testing.T) {
	data := []float64{4, 8, 15, 16, 23, 42}
	from := []int{5, 4, 3, 2, 1, 0}
	to := []int{0, 1, 2, 3, 4, 5}
	want := []float64{42, 23, 16, 15, 8, 4}

	x := NewFloat64("mass", data)
	if x.Len() != len(data) {
		t.Fatalf("Expected Len() = %d, got %d.", len(data), x.Len())
	}

	dest := Store{}
	x.CreateDestination(dest, len(want))
	if _, ok := dest["mass"]; !ok {
		t.Fatalf("Expected dest to gain field 'mass'.")
	}

	if err := x.Transfer(dest, from, to); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	got := dest["mass"].Data().([]float64)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Index %d: expected %f, got %f.", i, want[i], got[i])
		}
	}
}

func TestVec64Transfer(t *testing.T) {
	data := [][3]float64{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}
	from := []int{0, 1, 2}
	to := []int{2, 1, 0}

	x := NewVec64("pos", data)
	dest := Store{}
	x.CreateDestination(dest, 3)

	for d := 0; d < 3; d++ {
		name := "pos[0]"
		name = []string{"pos[0]", "pos[1]", "pos[2]"}[d]
		if _, ok := dest[name]; !ok {
			t.Fatalf("Expected dest to gain field %q.", name)
		}
	}

	if err := x.Transfer(dest, from, to); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	got := dest["pos[0]"].Data().([]float64)
	if got[2] != 1 || got[1] != 2 || got[0] != 3 {
		t.Errorf("Expected reversed transfer, got %v.", got)
	}
}

func TestTransferMissingDestinationField(t *testing.T) {
	x := NewFloat64("mass", []float64{1, 2, 3})
	dest := Store{}
	if err := x.Transfer(dest, []int{0}, []int{0}); err == nil {
		t.Errorf("Expected an error transferring into a store with no 'mass' field.")
	}
}
