// Package worker assembles blocks in the background for the blockchain.
package worker

import (
	"sync"
	"time"

	"github.com/ardanlabs/statechain/foundation/blockchain/state"
)

// =============================================================================

// Worker assembles the pending transfers of a state into blocks.
type Worker struct {
	state         *state.State
	wg            sync.WaitGroup
	ticker        *time.Ticker
	shut          chan struct{}
	startAssembly chan bool
	evHandler     state.EventHandler
}

// Run constructs a worker, registers it as the worker of the state and
// starts assembling. Pending transfers are assembled into a block whenever
// the state signals and at every interval.
func Run(st *state.State, interval time.Duration, evHandler state.EventHandler) *Worker {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	w := Worker{
		state:         st,
		ticker:        time.NewTicker(interval),
		shut:          make(chan struct{}),
		startAssembly: make(chan bool, 1),
		evHandler:     evHandler,
	}

	st.Worker = &w

	// Run does not return until the assembly goroutine is running.
	started := make(chan struct{})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		close(started)
		w.assemblyOperations()
	}()

	<-started

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown stops the ticker and waits for an assembly in progress to finish.
func (w *Worker) Shutdown() {
	w.evHandler("worker: Shutdown: started")
	defer w.evHandler("worker: Shutdown: completed")

	w.ticker.Stop()
	close(w.shut)
	w.wg.Wait()
}

// SignalStartAssembly asks for an assembly. A signal that is already pending
// covers this one.
func (w *Worker) SignalStartAssembly() {
	select {
	case w.startAssembly <- true:
	default:
	}
	w.evHandler("worker: SignalStartAssembly: assembly signaled")
}

// =============================================================================

// isShutdown reports whether Shutdown has been called.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
