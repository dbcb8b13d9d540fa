package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Aabhash007/gamer/amr"
	"github.com/Aabhash007/gamer/internal/wire"
)

// noGID and sonOnOtherRankGID are the serialized stand-ins for
// amr.NoPatch and amr.SonOnOtherRank once a local PatchID has been turned
// into a global, cross-rank-addressable GID.
const (
	noGID            int64 = -1
	sonOnOtherRankGID int64 = -2
)

// treeRecord is the GID-ordered, flattened form of one level's real
// patches: everything a reader needs to rebuild Hierarchy connectivity
// without touching any fluid data.
type treeRecord struct {
	GID         []int64
	Level       []int32
	CornerX     []int32
	CornerY     []int32
	CornerZ     []int32
	LBIdx       []uint64
	FatherGID   []int64
	SonGID      []int64
	SiblingGID  []int64 // flattened [n][26]
	SiblingRank []int32 // flattened [n][26]
}

// buildTreeRecord gathers level's real patches into GID order and
// translates Father/Son local PatchIDs into GIDs using localIndex, the
// same LBIdx-sorted convention Hierarchy.RealPatches and GIDTable.GID
// assume.
func buildTreeRecord(h *amr.Hierarchy, gidTable *amr.GIDTable, level int) (*treeRecord, error) {
	ids, err := h.RealPatches(level)
	if err != nil {
		return nil, err
	}

	var fatherIndex map[amr.PatchID]int
	if level > 0 {
		fatherIds, err := h.RealPatches(level - 1)
		if err != nil {
			return nil, err
		}
		fatherIndex = indexOf(fatherIds)
	}
	var sonIndex map[amr.PatchID]int
	if level < h.MaxLevel {
		sonIds, err := h.RealPatches(level + 1)
		if err != nil {
			return nil, err
		}
		sonIndex = indexOf(sonIds)
	}

	n := len(ids)
	rec := &treeRecord{
		GID:         make([]int64, n),
		Level:       make([]int32, n),
		CornerX:     make([]int32, n),
		CornerY:     make([]int32, n),
		CornerZ:     make([]int32, n),
		LBIdx:       make([]uint64, n),
		FatherGID:   make([]int64, n),
		SonGID:      make([]int64, n),
		SiblingGID:  make([]int64, n*26),
		SiblingRank: make([]int32, n*26),
	}

	for i, id := range ids {
		p, err := h.Patch(level, id)
		if err != nil {
			return nil, err
		}

		gid, err := gidTable.GID(level, h.Rank, i)
		if err != nil {
			return nil, err
		}
		rec.GID[i] = gid
		rec.Level[i] = int32(p.Level)
		rec.CornerX[i], rec.CornerY[i], rec.CornerZ[i] = p.Corner[0], p.Corner[1], p.Corner[2]
		rec.LBIdx[i] = p.LBIdx

		rec.FatherGID[i], err = resolveGID(gidTable, level-1, h.Rank, p.Father, fatherIndex)
		if err != nil {
			return nil, err
		}
		rec.SonGID[i], err = resolveGID(gidTable, level+1, h.Rank, p.Son, sonIndex)
		if err != nil {
			return nil, err
		}

		for d := 0; d < 26; d++ {
			rec.SiblingRank[i*26+d] = p.SiblingRank[d]
			if p.SiblingRank[d] < 0 {
				rec.SiblingGID[i*26+d] = noGID
			} else {
				rec.SiblingGID[i*26+d] = p.SiblingGID[d]
			}
		}
	}

	return rec, nil
}

func indexOf(ids []amr.PatchID) map[amr.PatchID]int {
	m := make(map[amr.PatchID]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

func resolveGID(
	gidTable *amr.GIDTable, level, rank int, id amr.PatchID, localIndex map[amr.PatchID]int,
) (int64, error) {
	switch id {
	case amr.NoPatch:
		return noGID, nil
	case amr.SonOnOtherRank:
		return sonOnOtherRankGID, nil
	}
	idx, ok := localIndex[id]
	if !ok {
		return 0, fmt.Errorf("checkpoint: patch id %d at level %d has no local index", id, level)
	}
	return gidTable.GID(level, rank, idx)
}

func (rec *treeRecord) marshal() ([]byte, error) {
	var buf bytes.Buffer
	order := wire.SystemByteOrder()

	if err := binary.Write(&buf, order, int64(len(rec.GID))); err != nil {
		return nil, err
	}

	fields := []interface{}{
		rec.GID, rec.Level, rec.CornerX, rec.CornerY, rec.CornerZ,
		rec.LBIdx, rec.FatherGID, rec.SonGID, rec.SiblingGID, rec.SiblingRank,
	}
	for _, f := range fields {
		if err := wire.WriteSlice(&buf, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func unmarshalTreeRecord(raw []byte) (*treeRecord, error) {
	r := bytes.NewReader(raw)
	order := wire.SystemByteOrder()

	var n int64
	if err := binary.Read(r, order, &n); err != nil {
		return nil, err
	}

	rec := &treeRecord{
		GID:         make([]int64, n),
		Level:       make([]int32, n),
		CornerX:     make([]int32, n),
		CornerY:     make([]int32, n),
		CornerZ:     make([]int32, n),
		LBIdx:       make([]uint64, n),
		FatherGID:   make([]int64, n),
		SonGID:      make([]int64, n),
		SiblingGID:  make([]int64, n*26),
		SiblingRank: make([]int32, n*26),
	}

	fields := []interface{}{
		rec.GID, rec.Level, rec.CornerX, rec.CornerY, rec.CornerZ,
		rec.LBIdx, rec.FatherGID, rec.SonGID, rec.SiblingGID, rec.SiblingRank,
	}
	for _, f := range fields {
		if err := wire.ReadSlice(r, f); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// ReadTree returns the GID-ordered tree record for a level, for a reader
// that wants to rebuild connectivity (a restart) or just inspect it (a
// diagnostic tool).
func (rd *Reader) ReadTree(level int) (*treeRecord, error) {
	raw, err := rd.ReadGroup(fmt.Sprintf("tree.level%d", level))
	if err != nil {
		return nil, err
	}
	return unmarshalTreeRecord(raw)
}
