package exchange

import (
	"sort"

	"github.com/Aabhash007/gamer/amr"
)

// LoadBalancePlanner is the LB_GetBufferData variant of StaticPlanner: it
// plans the same per-direction send/receive lists, but additionally sorts
// each direction's patch list by LBIdx so that two ranks building a Plan
// independently (as happens once patches move between ranks during
// refinement) still agree on pairing order.
type LoadBalancePlanner struct {
	Rank int
}

// Plan implements Planner.
func (lp *LoadBalancePlanner) Plan(h *amr.Hierarchy, level int, mode Mode) (*Plan, error) {
	sp := &StaticPlanner{Rank: lp.Rank}
	plan, err := sp.Plan(h, level, mode)
	if err != nil {
		return nil, err
	}

	nd := mode.NDirections()
	for d := 0; d < nd; d++ {
		ids := plan.SendP[d]
		ranks := plan.SendRank[d]
		recvIDs := plan.RecvP[d]
		recvRanks := plan.RecvRank[d]
		order := make([]int, len(ids))
		for i := range order {
			order[i] = i
		}

		lbIdx := make([]uint64, len(ids))
		for i, id := range ids {
			p, err := h.Patch(level, id)
			if err != nil {
				return nil, err
			}
			lbIdx[i] = p.LBIdx
		}

		sort.Slice(order, func(a, b int) bool {
			if lbIdx[order[a]] != lbIdx[order[b]] {
				return lbIdx[order[a]] < lbIdx[order[b]]
			}
			return ids[order[a]] < ids[order[b]]
		})

		sortedSendIDs := make([]amr.PatchID, len(ids))
		sortedSendRanks := make([]int, len(ids))
		sortedRecvIDs := make([]amr.PatchID, len(ids))
		sortedRecvRanks := make([]int, len(ids))
		for i, o := range order {
			sortedSendIDs[i] = ids[o]
			sortedSendRanks[i] = ranks[o]
			sortedRecvIDs[i] = recvIDs[o]
			sortedRecvRanks[i] = recvRanks[o]
		}
		plan.SendP[d], plan.SendRank[d] = sortedSendIDs, sortedSendRanks
		plan.RecvP[d], plan.RecvRank[d] = sortedRecvIDs, sortedRecvRanks
	}
	return plan, nil
}
