package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Aabhash007/gamer/amr"
	"github.com/Aabhash007/gamer/amr/particle"
)

func newTestHierarchy(t *testing.T) (*amr.Hierarchy, *amr.GIDTable) {
	h := amr.NewHierarchy(1, 2, 0)

	_, root, err := h.Allocate(0)
	if err != nil {
		t.Fatalf("Allocate(0) failed: %v", err)
	}
	root.Corner = [3]int32{0, 0, 0}
	root.LBIdx = 7

	sonID, son, err := h.Allocate(1)
	if err != nil {
		t.Fatalf("Allocate(1) failed: %v", err)
	}
	son.Corner = [3]int32{0, 0, 0}
	son.LBIdx = 1
	son.Father = 0

	root.Son = sonID

	for v := range root.Fluid[0] {
		for i := range root.Fluid[0][v] {
			root.Fluid[0][v][i] = float64(v*1000 + i)
		}
	}

	gid := amr.NewGIDTable([][]int64{{1}, {1}})
	return h, gid
}

func TestCheckpointRoundTripTreeAndFluid(t *testing.T) {
	h, gid := newTestHierarchy(t)

	dir := t.TempDir()
	fname := filepath.Join(dir, "dump.chk")

	w := NewWriter(Info{MaxLevel: 1, NVar: 2, Rank: 0, Ranks: 1, Step: 42, Time: 1.5}, Zstd)
	if err := w.AddTree(h, gid, 0); err != nil {
		t.Fatalf("AddTree(0) failed: %v", err)
	}
	if err := w.AddTree(h, gid, 1); err != nil {
		t.Fatalf("AddTree(1) failed: %v", err)
	}
	if err := w.AddFluid(h, 0, 0); err != nil {
		t.Fatalf("AddFluid failed: %v", err)
	}
	if err := w.Flush(fname); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	rd, err := NewReader(fname)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	if rd.Info.Step != 42 {
		t.Errorf("Expected Step = 42, got %d.", rd.Info.Step)
	}
	if rd.Info.Time != 1.5 {
		t.Errorf("Expected Time = 1.5, got %f.", rd.Info.Time)
	}

	rootRec, err := rd.ReadTree(0)
	if err != nil {
		t.Fatalf("ReadTree(0) failed: %v", err)
	}
	if len(rootRec.GID) != 1 {
		t.Fatalf("Expected 1 patch at level 0, got %d.", len(rootRec.GID))
	}
	if rootRec.LBIdx[0] != 7 {
		t.Errorf("Expected LBIdx 7, got %d.", rootRec.LBIdx[0])
	}
	if rootRec.SonGID[0] != 1 {
		t.Errorf("Expected root's son GID to be 1, got %d.", rootRec.SonGID[0])
	}
	if rootRec.FatherGID[0] != noGID {
		t.Errorf("Expected root's father GID to be %d (no father), got %d.", noGID, rootRec.FatherGID[0])
	}

	sonRec, err := rd.ReadTree(1)
	if err != nil {
		t.Fatalf("ReadTree(1) failed: %v", err)
	}
	if sonRec.FatherGID[0] != 0 {
		t.Errorf("Expected son's father GID to be 0, got %d.", sonRec.FatherGID[0])
	}

	flat, err := rd.ReadFluid(0, 0, 1)
	if err != nil {
		t.Fatalf("ReadFluid failed: %v", err)
	}
	if len(flat) != amr.PatchSize*amr.PatchSize*amr.PatchSize {
		t.Fatalf("Expected %d cells, got %d.", amr.PatchSize*amr.PatchSize*amr.PatchSize, len(flat))
	}
	for i, v := range flat {
		if v != float64(i) {
			t.Errorf("Cell %d: expected %f, got %f.", i, float64(i), v)
			break
		}
	}
}

func TestCheckpointParticleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "particles.chk")

	store := particle.Store{
		"mass": particle.NewFloat64("mass", []float64{1, 2, 3}),
	}

	w := NewWriter(Info{}, Zlib)
	if err := w.AddParticles(store); err != nil {
		t.Fatalf("AddParticles failed: %v", err)
	}
	if err := w.Flush(fname); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	rd, err := NewReader(fname)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	field, err := rd.ReadParticleField("mass", "f64", 3)
	if err != nil {
		t.Fatalf("ReadParticleField failed: %v", err)
	}
	got := field.Data().([]float64)
	want := []float64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Index %d: expected %f, got %f.", i, want[i], got[i])
		}
	}
}

func TestCheckpointRejectsBadMagicNumber(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "garbage.chk")
	if err := os.WriteFile(fname, []byte("not a checkpoint file"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := NewReader(fname); err == nil {
		t.Errorf("Expected an error reading a non-checkpoint file.")
	}
}

func TestCheckpointGroupNames(t *testing.T) {
	h, gid := newTestHierarchy(t)
	dir := t.TempDir()
	fname := filepath.Join(dir, "names.chk")

	w := NewWriter(Info{}, Zstd)
	if err := w.AddTree(h, gid, 0); err != nil {
		t.Fatalf("AddTree failed: %v", err)
	}
	if err := w.Flush(fname); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	rd, err := NewReader(fname)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	names := rd.GroupNames()
	if len(names) != 1 || names[0] != "tree.level0" {
		t.Errorf("Expected group names [tree.level0], got %v.", names)
	}
}
