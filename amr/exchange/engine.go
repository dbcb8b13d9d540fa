package exchange

import (
	"context"
	"fmt"

	"github.com/Aabhash007/gamer/amr"
	"github.com/Aabhash007/gamer/amr/fixup"
)

// GhostCache holds the ghost-zone and flux data an Engine has written this
// pass, keyed by the buffer (or, for CoarseFineFlux, coarse-receiver)
// patch that data landed on. It exists mainly for tests and diagnostics;
// the authoritative copy of the data is always the buffer patch's own
// Fluid/Pot/Flux arrays, since Exchange writes those in place.
type GhostCache struct {
	data map[ghostKey][]float64
}

type ghostKey struct {
	Level int
	ID    amr.PatchID
	Dir   int
}

// NewGhostCache returns an empty cache.
func NewGhostCache() *GhostCache {
	return &GhostCache{data: map[ghostKey][]float64{}}
}

// Get returns the slab written to a patch's direction-d ghost zone, if any.
func (g *GhostCache) Get(level int, id amr.PatchID, dir int) ([]float64, bool) {
	v, ok := g.data[ghostKey{level, id, dir}]
	return v, ok
}

func (g *GhostCache) set(level int, id amr.PatchID, dir int, slab []float64) {
	g.data[ghostKey{level, id, dir}] = slab
}

// Request bundles every input the buffer-exchange contract names besides
// the Plan itself: which sandglass buffer to read, which variables to
// move, how many ghost layers, and whether the caller is running
// load-balanced (informational only - the Plan already reflects it).
type Request struct {
	FluidSg        int // 0 or 1; ignored unless VarMask selects fluid/passive
	PotSg          int // 0 or 1; ignored unless VarMask selects potential
	VarMask        VariableMask
	GhostWidth     int // 0..PatchSize; unused for CoarseFineFlux
	UseLoadBalance bool
}

// validate checks a Request against mode's preconditions, returning the
// same error values named in spec.md's error taxonomy.
func (r Request) validate(mode Mode) error {
	if mode < General || mode > CoarseFineFlux {
		return ErrBadMode
	}
	if !r.VarMask.valid(mode) {
		return ErrBadVariableMask
	}
	if mode != CoarseFineFlux {
		if r.GhostWidth < 0 || r.GhostWidth > amr.PatchSize {
			return ErrBadGhostWidth
		}
	}
	if r.VarMask.Intersects(VarFluid|VarPassive) && r.FluidSg != 0 && r.FluidSg != 1 {
		return ErrBadSandglass
	}
	if r.VarMask.Intersects(VarPotential) && r.PotSg != 0 && r.PotSg != 1 {
		return ErrBadSandglass
	}
	return nil
}

// Engine executes a Plan: for every remote neighbor relationship it packs
// the boundary (or flux) slab from the sending real patch, exchanges it
// over a Transport, and unpacks the result in place into the receiving
// buffer patch - the only writer to buffer-patch cells, per spec. In
// CoarseFineFlux mode the unpack step accumulates into the coarse
// receiver's flux register instead of overwriting it, since several fine
// faces can share one coarse face. Same-rank neighbors never reach the
// engine at all - those are handled by the caller with a direct array
// copy, since no network round trip is needed.
type Engine struct {
	Transport Transport
}

// Exchange runs every direction of a Plan, writes the resulting ghost (or
// accumulated flux) data directly into the hierarchy's buffer patches, and
// also returns a GhostCache recording what was written, for diagnostics.
func (e *Engine) Exchange(ctx context.Context, h *amr.Hierarchy, plan *Plan, req Request) (*GhostCache, error) {
	if err := req.validate(plan.Mode); err != nil {
		return nil, err
	}

	cache := NewGhostCache()
	nd := plan.Mode.NDirections()

	for d := 0; d < nd; d++ {
		recvP := plan.RecvP[d]
		for i, id := range plan.SendP[d] {
			rank := plan.SendRank[d][i]
			p, err := h.Patch(plan.Level, id)
			if err != nil {
				return nil, fmt.Errorf("exchange: %w", err)
			}

			slab, err := packPatch(p, d, plan.Mode, req)
			if err != nil {
				return nil, fmt.Errorf("exchange: %w", err)
			}

			recv, err := e.Transport.Sendrecv(ctx, rank, slab, rank, len(slab))
			if err != nil {
				return nil, fmt.Errorf(
					"exchange: level %d, direction %d, patch %d <-> rank %d: %w",
					plan.Level, d, id, rank, err)
			}

			if i >= len(recvP) {
				return nil, fmt.Errorf(
					"exchange: level %d, direction %d: no receiving buffer patch planned for sender %d",
					plan.Level, d, id)
			}
			bufID := recvP[i]
			buf, err := h.Patch(plan.Level, bufID)
			if err != nil {
				return nil, fmt.Errorf("exchange: %w", err)
			}

			if err := unpackPatch(buf, d, plan.Mode, req, recv); err != nil {
				return nil, fmt.Errorf("exchange: %w", err)
			}
			cache.set(plan.Level, bufID, d, recv)
		}
	}
	return cache, nil
}

// selectedFluidVars returns the slice of per-variable fluid arrays that
// req.VarMask selects, in declared index order: core fluid variables
// first (if VarFluid is set), then passive scalars (if VarPassive is
// set).
func selectedFluidVars(p *amr.Patch, sg int, mask VariableMask) [][]float64 {
	all := p.Fluid[sg]
	passiveStart := fixup.PassiveStart
	if passiveStart > len(all) {
		passiveStart = len(all)
	}

	var out [][]float64
	if mask.Intersects(VarFluid) {
		out = append(out, all[:passiveStart]...)
	}
	if mask.Intersects(VarPassive) {
		out = append(out, all[passiveStart:]...)
	}
	return out
}

// packPatch extracts the boundary slab a patch must send in direction d:
// one face/edge/corner slab per selected fluid variable (in declared
// order), then the potential last if selected. CoarseFineFlux packs the
// flux register on the mirror direction, since the flux a coarse neighbor
// needs from this patch lives on the face pointing back at it.
func packPatch(p *amr.Patch, d int, mode Mode, req Request) ([]float64, error) {
	if mode == CoarseFineFlux {
		mirror := amr.OppositeFace(d)
		if p.Flux[mirror] == nil {
			return nil, fmt.Errorf("patch has no flux register on face %d", mirror)
		}
		out := make([]float64, len(p.Flux[mirror]))
		copy(out, p.Flux[mirror])
		return out, nil
	}

	var out []float64
	if req.VarMask.Intersects(VarFluid | VarPassive) {
		for _, cells := range selectedFluidVars(p, req.FluidSg, req.VarMask) {
			out = append(out, amr.PackFace(cells, d)...)
		}
	}
	if req.VarMask.Intersects(VarPotential) {
		if p.Pot == nil {
			return nil, fmt.Errorf("patch has no potential buffer")
		}
		out = append(out, amr.PackFace(p.Pot, d)...)
	}
	return out, nil
}

// unpackPatch writes a slab received for direction d into buf, the buffer
// patch that owns this exchange relationship's receiving side. For every
// mode but CoarseFineFlux this assigns into buf's selected ghost cells;
// CoarseFineFlux instead accumulates into buf's direction-d flux register,
// since several fine faces can contribute to the same coarse face.
func unpackPatch(buf *amr.Patch, d int, mode Mode, req Request, slab []float64) error {
	if mode == CoarseFineFlux {
		if buf.Flux[d] == nil {
			return fmt.Errorf("receiving patch has no flux register on face %d", d)
		}
		if len(slab) != len(buf.Flux[d]) {
			return fmt.Errorf("flux slab has %d entries, receiver expects %d", len(slab), len(buf.Flux[d]))
		}
		for i, v := range slab {
			buf.Flux[d][i] += v
		}
		return nil
	}

	offset := 0
	if req.VarMask.Intersects(VarFluid | VarPassive) {
		for _, cells := range selectedFluidVars(buf, req.FluidSg, req.VarMask) {
			n := amr.FaceCount(d)
			amr.UnpackFace(cells, slab[offset:offset+n], d)
			offset += n
		}
	}
	if req.VarMask.Intersects(VarPotential) {
		if buf.Pot == nil {
			return fmt.Errorf("receiving patch has no potential buffer")
		}
		n := amr.FaceCount(d)
		amr.UnpackFace(buf.Pot, slab[offset:offset+n], d)
		offset += n
	}
	return nil
}
