package exchange

import "context"

// Transport moves one packed boundary slab to a destination rank and
// simultaneously receives the matching slab a source rank sends back, the
// same single-round-trip shape as MPI_Sendrecv.
type Transport interface {
	Sendrecv(ctx context.Context, toRank int, send []float64,
		fromRank int, recvLen int) ([]float64, error)
	Rank() int
	Ranks() int
}
