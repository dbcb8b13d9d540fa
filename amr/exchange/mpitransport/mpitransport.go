/*Package mpitransport implements exchange.Transport over MPI via cgo. It is
kept in its own package so that single-rank builds (and the unit tests for
everything above it) never need an MPI toolchain installed.

The cgo header and build flags below are lifted from the teacher's MPI
wrapper almost verbatim; they assume OpenMPI's standard Debian package
layout. Point CGO_CFLAGS/CGO_LDFLAGS at a different install if needed.
*/
package mpitransport

/*
#cgo LDFLAGS: -pthread -L/usr/lib/x86_64-linux-gnu/openmpi/lib -lmpi
#cgo CFLAGS: -std=gnu99 -Wall -I/usr/lib/x86_64-linux-gnu/openmpi/include/openmpi -I/usr/lib/x86_64-linux-gnu/openmpi/include -pthread
#include <mpi.h>
#include <stdlib.h>

MPI_Comm get_MPI_COMM_WORLD() {
    return (MPI_Comm)(MPI_COMM_WORLD);
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

var (
	initOnce sync.Once
	commWorld C.MPI_Comm
)

// Transport is an MPI_Comm-backed exchange.Transport.
type Transport struct {
	comm C.MPI_Comm
}

// Init calls MPI_Init once per process and returns a Transport bound to
// MPI_COMM_WORLD. Every rank in a distributed run must call this before
// touching the hierarchy's exchange engine.
func Init() (*Transport, error) {
	var initErr error
	initOnce.Do(func() {
		if errno := C.MPI_Init(nil, nil); errno != 0 {
			initErr = mpiError(errno)
			return
		}
		commWorld = C.get_MPI_COMM_WORLD()
	})
	if initErr != nil {
		return nil, initErr
	}
	return &Transport{comm: commWorld}, nil
}

// Finalize calls MPI_Finalize. Call it once, after every rank has finished
// touching the hierarchy.
func Finalize() error {
	if errno := C.MPI_Finalize(); errno != 0 {
		return mpiError(errno)
	}
	return nil
}

// Rank returns this process's MPI rank.
func (t *Transport) Rank() int {
	var n C.int
	C.MPI_Comm_rank(t.comm, &n)
	return int(n)
}

// Ranks returns the size of MPI_COMM_WORLD.
func (t *Transport) Ranks() int {
	var n C.int
	C.MPI_Comm_size(t.comm, &n)
	return int(n)
}

// Sendrecv wraps MPI_Sendrecv: it sends send to toRank and simultaneously
// receives recvLen float64s from fromRank, both tagged 0, both over the
// same communicator.
func (t *Transport) Sendrecv(
	ctx context.Context, toRank int, send []float64, fromRank int, recvLen int,
) ([]float64, error) {
	if len(send) == 0 {
		send = []float64{0}
	}
	recv := make([]float64, recvLen)
	recvPtr := &recv
	if recvLen == 0 {
		*recvPtr = []float64{0}
	}

	var status C.MPI_Status
	errno := C.MPI_Sendrecv(
		unsafe.Pointer(&send[0]), C.int(len(send)), C.MPI_DOUBLE,
		C.int(toRank), 0,
		unsafe.Pointer(&(*recvPtr)[0]), C.int(len(*recvPtr)), C.MPI_DOUBLE,
		C.int(fromRank), 0,
		t.comm, &status,
	)
	if errno != 0 {
		return nil, mpiError(errno)
	}
	return recv[:recvLen], nil
}

func mpiError(errno C.int) error {
	buf := make([]C.char, C.MPI_MAX_ERROR_STRING)
	var n C.int
	C.MPI_Error_string(errno, &buf[0], &n)
	return fmt.Errorf("mpi: %s", C.GoString(&buf[0]))
}
