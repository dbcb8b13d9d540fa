package amr

import (
	"fmt"
	"sort"

	"github.com/Aabhash007/gamer/internal/errs"
)

// Hierarchy owns every patch on this rank, level by level, along with the
// free list needed to recycle PatchIDs after Free.
type Hierarchy struct {
	MaxLevel int
	NVar     int
	Rank     int
	Debug    bool

	levels []levelStore
	gid    *GIDTable
}

type levelStore struct {
	patches []*Patch
	live    []bool
	free    []PatchID
	real    []PatchID // ids of real patches owned by this rank
	buffer  []PatchID // ids of buffer (ghost) patches proxying remote neighbors
}

// NewHierarchy creates an empty hierarchy with levels 0..maxLevel, each
// patch allocated with nVar fluid variables (NComp + NPassive).
func NewHierarchy(maxLevel, nVar, rank int) *Hierarchy {
	h := &Hierarchy{
		MaxLevel: maxLevel,
		NVar:     nVar,
		Rank:     rank,
		levels:   make([]levelStore, maxLevel+1),
	}
	return h
}

func (h *Hierarchy) checkLevel(level int) error {
	if level < 0 || level > h.MaxLevel {
		return fmt.Errorf("level %d is out of range [0, %d]", level, h.MaxLevel)
	}
	return nil
}

// Allocate reserves a new real patch at the given level, recycling a freed
// slot when one is available, and returns its id and a pointer into the
// arena.
func (h *Hierarchy) Allocate(level int) (PatchID, *Patch, error) {
	return h.allocate(level, true)
}

// AllocateBuffer reserves a new buffer (ghost) patch at the given level: a
// local proxy for a patch owned by another rank. The exchange engine is
// the only writer to a buffer patch's cells, per spec; every other reader
// must treat it as read-only.
func (h *Hierarchy) AllocateBuffer(level int) (PatchID, *Patch, error) {
	return h.allocate(level, false)
}

func (h *Hierarchy) allocate(level int, real bool) (PatchID, *Patch, error) {
	if err := h.checkLevel(level); err != nil {
		return NoPatch, nil, err
	}
	ls := &h.levels[level]

	var id PatchID
	if n := len(ls.free); n > 0 {
		id = ls.free[n-1]
		ls.free = ls.free[:n-1]
	} else {
		id = PatchID(len(ls.patches))
		ls.patches = append(ls.patches, &Patch{})
		ls.live = append(ls.live, false)
	}

	p := ls.patches[id]
	*p = Patch{Level: level, Father: NoPatch, Son: NoPatch, real: real}
	for d := range p.Sibling {
		p.Sibling[d] = NoPatch
		p.SiblingRank[d] = -1
		p.SiblingGID[d] = -1
	}
	p.Fluid[0] = make([][]float64, h.NVar)
	p.Fluid[1] = make([][]float64, h.NVar)
	cells := PatchSize * PatchSize * PatchSize
	for v := 0; v < h.NVar; v++ {
		p.Fluid[0][v] = make([]float64, cells)
		p.Fluid[1][v] = make([]float64, cells)
	}

	ls.live[id] = true
	if real {
		ls.real = append(ls.real, id)
	} else {
		ls.buffer = append(ls.buffer, id)
	}
	return id, p, nil
}

// Free releases a patch and makes its id available for reuse. It does not
// touch the patch's own Father/Son/Sibling slots, the father's Son slot, or any
// sibling's Sibling slot; callers must do that before freeing, the same
// order GAMER's patch deallocation enforces.
func (h *Hierarchy) Free(level int, id PatchID) error {
	if err := h.checkLevel(level); err != nil {
		return err
	}
	ls := &h.levels[level]
	if int(id) < 0 || int(id) >= len(ls.patches) || !ls.live[id] {
		return fmt.Errorf("patch %d at level %d is not live", id, level)
	}

	real := ls.patches[id].real
	ls.live[id] = false
	ls.free = append(ls.free, id)
	if real {
		ls.real = removeID(ls.real, id)
	} else {
		ls.buffer = removeID(ls.buffer, id)
	}
	return nil
}

func removeID(ids []PatchID, id PatchID) []PatchID {
	for i, r := range ids {
		if r == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Patch returns a pointer to the patch with the given id, or an error if it
// does not exist or has been freed.
func (h *Hierarchy) Patch(level int, id PatchID) (*Patch, error) {
	if err := h.checkLevel(level); err != nil {
		return nil, err
	}
	ls := &h.levels[level]
	if int(id) < 0 || int(id) >= len(ls.patches) || !ls.live[id] {
		return nil, fmt.Errorf("patch %d at level %d does not exist", id, level)
	}
	return ls.patches[id], nil
}

// RealPatches returns the ids of every live real patch at a level, sorted
// by LBIdx (ties broken by PatchID) - the deterministic, space-filling-
// curve ordering the GID scheme depends on: two ranks with the same
// per-level patch counts must agree on this order without communicating.
func (h *Hierarchy) RealPatches(level int) ([]PatchID, error) {
	if err := h.checkLevel(level); err != nil {
		return nil, err
	}
	ls := &h.levels[level]
	out := make([]PatchID, len(ls.real))
	copy(out, ls.real)
	sort.Slice(out, func(a, b int) bool {
		pa, pb := ls.patches[out[a]], ls.patches[out[b]]
		if pa.LBIdx != pb.LBIdx {
			return pa.LBIdx < pb.LBIdx
		}
		return out[a] < out[b]
	})
	return out, nil
}

// BufferPatches returns the ids of every live buffer patch at a level, in
// no particular order; buffer patches are addressed by id, not by
// position.
func (h *Hierarchy) BufferPatches(level int) ([]PatchID, error) {
	if err := h.checkLevel(level); err != nil {
		return nil, err
	}
	out := make([]PatchID, len(h.levels[level].buffer))
	copy(out, h.levels[level].buffer)
	return out, nil
}

// SetGIDTable installs the cross-rank patch-count table GID uses to
// translate a rank-local real patch into its global id. Callers rebuild
// and install a fresh table whenever the per-rank patch counts change
// (after refinement, derefinement, or load rebalancing).
func (h *Hierarchy) SetGIDTable(t *GIDTable) {
	h.gid = t
}

// GID returns the global id of a real patch: its position in this rank's
// LBIdx-sorted RealPatches list at level, translated through the
// installed GIDTable. The function is pure given that table and the
// hierarchy's current patch set, matching spec's GID-purity requirement -
// any rank computes the same GID for the same (level, rank, LBIdx-rank)
// triple.
func (h *Hierarchy) GID(level int, id PatchID) (int64, error) {
	if h.gid == nil {
		return 0, fmt.Errorf("hierarchy: no GIDTable installed; call SetGIDTable first")
	}
	ids, err := h.RealPatches(level)
	if err != nil {
		return 0, err
	}
	for i, rid := range ids {
		if rid == id {
			return h.gid.GID(level, h.Rank, i)
		}
	}
	return 0, fmt.Errorf("hierarchy: patch %d at level %d is not a real patch on this rank", id, level)
}

// CheckReciprocity walks every sibling link at a level and confirms that if
// patch A calls patch B a neighbor in direction d, patch B calls patch A a
// neighbor in direction OppositeSibling(d). It is meant to run only under
// Hierarchy.Debug, mirroring GAMER_DEBUG's compile-time sibling checks:
// without Debug it returns nil without checking, and with Debug a violation
// is reported through errs.Internal, which exits the process.
func (h *Hierarchy) CheckReciprocity(level int) error {
	if !h.Debug {
		return nil
	}
	if err := h.checkLevel(level); err != nil {
		return err
	}
	ls := &h.levels[level]
	for _, id := range ls.real {
		p := ls.patches[id]
		for d := 0; d < 26; d++ {
			sib := p.Sibling[d]
			if sib == NoPatch || sib == SonOnOtherRank {
				continue
			}
			other, err := h.Patch(level, sib)
			if err != nil {
				errs.Internal("patch %d's sibling %d (direction %d) does not exist: %v",
					id, sib, d, err)
				return err
			}
			back := other.Sibling[OppositeSibling(d)]
			if back != id {
				errs.Internal(
					"reciprocity violated: patch %d sees patch %d as neighbor in "+
						"direction %d, but patch %d sees %d (not %d) in the opposite "+
						"direction %d", id, sib, d, sib, back, id, OppositeSibling(d))
				return fmt.Errorf("reciprocity violated between patches %d and %d", id, sib)
			}
		}
	}
	return nil
}

// PruneOrphanedFlux frees every real patch's coarse-fine Flux register at
// level whose same-level neighbor no longer has an active son, the point
// at which that register stops describing an actual coarse-fine boundary
// (its partner derefined, or was never refined to begin with). It mirrors
// the teacher's Flu_FixUp.cpp zeroing pass that runs over every patch
// adjacent to a changed refinement boundary, not just the ones with new
// sons. It returns the number of registers freed.
func (h *Hierarchy) PruneOrphanedFlux(level int) (int, error) {
	if err := h.checkLevel(level); err != nil {
		return 0, err
	}
	ls := &h.levels[level]

	freed := 0
	for _, id := range ls.real {
		p := ls.patches[id]
		for face := 0; face < 6; face++ {
			if p.Flux[face] == nil {
				continue
			}
			sib := p.Sibling[face]
			if sib == NoPatch || (p.SiblingRank[face] >= 0 && int(p.SiblingRank[face]) != h.Rank) {
				// No same-rank neighbor to check; a cross-rank neighbor's
				// refinement state arrives through the next exchange plan
				// rebuild, so leave the register alone until then.
				continue
			}
			neighbor, err := h.Patch(level, sib)
			if err != nil {
				return freed, err
			}
			if neighbor.Son == NoPatch {
				p.Flux[face] = nil
				freed++
			}
		}
	}
	return freed, nil
}

// GIDTable maps (level, rank, local index) triples to a single globally
// unique, level-major then rank-major patch id, matching GAMER's GID
// convention: all of level 0 is numbered before any of level 1, and within
// a level all of rank 0's patches are numbered before rank 1's.
type GIDTable struct {
	// counts[level][rank] is the number of real patches rank holds at level.
	counts [][]int64
	// levelOffset[level] is the total patch count in every level below it.
	levelOffset []int64
}

// NewGIDTable builds a lookup table from a level-by-rank patch count
// matrix, typically gathered from every rank with an MPI_Allgather before
// a checkpoint write or a buffer-exchange plan rebuild.
func NewGIDTable(counts [][]int64) *GIDTable {
	t := &GIDTable{counts: counts, levelOffset: make([]int64, len(counts)+1)}
	for lv := range counts {
		total := int64(0)
		for _, c := range counts[lv] {
			total += c
		}
		t.levelOffset[lv+1] = t.levelOffset[lv] + total
	}
	return t
}

// GID returns the global id of the localIdx'th real patch owned by rank at
// level.
func (t *GIDTable) GID(level, rank, localIdx int) (int64, error) {
	if level < 0 || level >= len(t.counts) {
		return 0, fmt.Errorf("level %d out of range", level)
	}
	if rank < 0 || rank >= len(t.counts[level]) {
		return 0, fmt.Errorf("rank %d out of range at level %d", rank, level)
	}
	offset := t.levelOffset[level]
	for r := 0; r < rank; r++ {
		offset += t.counts[level][r]
	}
	return offset + int64(localIdx), nil
}

// TotalPatches returns the total patch count across every level and rank.
func (t *GIDTable) TotalPatches() int64 {
	return t.levelOffset[len(t.levelOffset)-1]
}
