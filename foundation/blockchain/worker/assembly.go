package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/statechain/foundation/blockchain/state"
)

// assemblyTimeout bounds the store work of a single assembly.
const assemblyTimeout = 30 * time.Second

// assemblyOperations handles block assembly.
func (w *Worker) assemblyOperations() {
	w.evHandler("worker: assemblyOperations: G started")
	defer w.evHandler("worker: assemblyOperations: G completed")

	for {
		select {
		case <-w.startAssembly:
			if !w.isShutdown() {
				w.runAssemblyOperation()
			}
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runAssemblyOperation()
			}
		case <-w.shut:
			w.evHandler("worker: assemblyOperations: received shut signal")
			return
		}
	}
}

// runAssemblyOperation takes all the transfers from the mempool and writes
// a new block to the database.
func (w *Worker) runAssemblyOperation() {
	length := w.state.QueryMempoolLength()
	if length == 0 {
		return
	}

	w.evHandler("worker: runAssemblyOperation: ASSEMBLY: started: Txs[%d]", length)
	defer w.evHandler("worker: runAssemblyOperation: ASSEMBLY: completed")

	ctx, cancel := context.WithTimeout(context.Background(), assemblyTimeout)
	defer cancel()

	t := time.Now()
	block, number, err := w.state.AssembleBlock(ctx)
	duration := time.Since(t)

	w.evHandler("worker: runAssemblyOperation: ASSEMBLY: duration[%v]", duration)

	if err != nil {
		switch {
		case errors.Is(err, state.ErrNoTransactions):
			w.evHandler("worker: runAssemblyOperation: ASSEMBLY: WARNING: no transactions in mempool")
		default:
			w.evHandler("worker: runAssemblyOperation: ASSEMBLY: ERROR: %s", err)
		}
		return
	}

	w.evHandler("worker: runAssemblyOperation: ASSEMBLY: block[%d] identity[%s]", number, block.Hash())
}
