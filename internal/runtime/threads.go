/*Package runtime configures the worker-thread count used by the exchange
engine and the star-formation pass.*/
package runtime

import (
	"runtime"

	"github.com/Aabhash007/gamer/internal/errs"
)

// SetThreads sets GOMAXPROCS. A value of -1 requests every available core;
// a value above the host's core count exits through errs.External.
func SetThreads(n int) {
	if n == -1 {
		n = runtime.NumCPU()
	}
	if n > runtime.NumCPU() {
		errs.External(
			"%d threads requested, but this node only has %d cores. Set "+
				"Threads = -1 to use every available core.", n, runtime.NumCPU(),
		)
	}
	runtime.GOMAXPROCS(n)
}
