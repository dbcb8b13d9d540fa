package exchange

import (
	"fmt"

	"github.com/Aabhash007/gamer/amr"
)

// Plan is the set of per-direction send/receive lists needed to execute one
// exchange pass at a single level. SendP[d][i] is the real patch that owns
// and sends its own d-face boundary data; RecvP[d][i] is the distinct
// buffer (ghost) patch that the matching incoming data is unpacked into -
// spec's real/buffer partition, not a round trip back to the sender.
type Plan struct {
	Level int
	Mode  Mode

	SendP    [26][]amr.PatchID
	SendRank [26][]int
	RecvP    [26][]amr.PatchID
	RecvRank [26][]int
}

// Planner builds an exchange Plan for one level and mode.
type Planner interface {
	Plan(h *amr.Hierarchy, level int, mode Mode) (*Plan, error)
}

// StaticPlanner derives a Plan directly from each real patch's
// SiblingRank table, the way a fixed (non-load-balanced) domain
// decomposition would.
type StaticPlanner struct {
	Rank int
}

// Plan implements Planner. For every remote neighbor relationship it finds,
// it reuses the buffer patch already linked through the real patch's
// Sibling[d] slot, allocating one on first use and caching it there so
// repeated planning calls (and the two halves of an opposite-direction
// pair) agree on the same buffer patch and message plan.
func (sp *StaticPlanner) Plan(h *amr.Hierarchy, level int, mode Mode) (*Plan, error) {
	if mode < General || mode > CoarseFineFlux {
		return nil, ErrBadMode
	}
	nd := mode.NDirections()

	real, err := h.RealPatches(level)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}

	plan := &Plan{Level: level, Mode: mode}
	for _, id := range real {
		p, err := h.Patch(level, id)
		if err != nil {
			return nil, fmt.Errorf("exchange: %w", err)
		}
		for d := 0; d < nd; d++ {
			rank := p.SiblingRank[d]
			if rank < 0 || int(rank) == sp.Rank {
				continue
			}

			bufID := p.Sibling[d]
			if bufID == amr.NoPatch {
				bufID, _, err = h.AllocateBuffer(level)
				if err != nil {
					return nil, fmt.Errorf("exchange: %w", err)
				}
				p.Sibling[d] = bufID
			}

			plan.SendP[d] = append(plan.SendP[d], id)
			plan.SendRank[d] = append(plan.SendRank[d], int(rank))
			plan.RecvP[d] = append(plan.RecvP[d], bufID)
			plan.RecvRank[d] = append(plan.RecvRank[d], int(rank))
		}
	}
	return plan, nil
}
