package exchange

import (
	"context"
	"fmt"
)

// LocalTransport is the same-process fallback used whenever a run has only
// one rank: guppy's own CLI modes (read/convert/confirm) never touch MPI
// either, so a trivial loopback is the idiomatic single-rank default rather
// than an invented abstraction.
type LocalTransport struct{}

// NewLocalTransport returns a single-rank Transport.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{}
}

// Rank always returns 0; there is only one rank.
func (t *LocalTransport) Rank() int { return 0 }

// Ranks always returns 1.
func (t *LocalTransport) Ranks() int { return 1 }

// Sendrecv loops the send buffer back as the receive buffer. Any plan that
// reaches a LocalTransport with toRank or fromRank other than 0 is a
// planning bug: a single-rank run should never have produced a remote
// neighbor in the first place.
func (t *LocalTransport) Sendrecv(
	ctx context.Context, toRank int, send []float64, fromRank int, recvLen int,
) ([]float64, error) {
	if toRank != 0 || fromRank != 0 {
		return nil, fmt.Errorf(
			"localtransport: single-rank run has no rank %d or %d", toRank, fromRank)
	}
	if recvLen != len(send) {
		return nil, fmt.Errorf(
			"localtransport: loopback length mismatch: sent %d elements, wanted %d back",
			len(send), recvLen)
	}
	out := make([]float64, len(send))
	copy(out, send)
	return out, nil
}
