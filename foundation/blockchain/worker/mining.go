package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/statechain/foundation/blockchain/state"
)

// miningOperations waits for mining signals. Another run is only started
// on its own after a block was sealed and transactions are still waiting.
// A run that sealed nothing leaves the rest of the pool to the next
// submission or the next block from a peer, since both signal.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if w.isShutdown() {
				continue
			}

			if !w.runMiningOperation() {
				continue
			}

			if length := w.state.QueryMempoolLength(); length > 0 && !w.isShutdown() {
				w.evHandler("worker: miningOperations: signal new mining operation: Txs[%d]", length)
				w.SignalStartMining()
			}

		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation seals one block on top of the head with the best
// transactions from the mempool. It reports whether a block was added.
func (w *Worker) runMiningOperation() bool {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	if length := w.state.QueryMempoolLength(); length == 0 {
		w.evHandler("worker: runMiningOperation: MINING: no transactions to mine")
		return false
	}

	// A cancel carries the channel the canceller closes once its state
	// change is done. This G can't return before that.
	var wait chan struct{}
	defer func() {
		if wait != nil {
			w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
			<-wait
			w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
		}
	}()

	// A cancel left over from before this run belongs to nobody.
	select {
	case stale := <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
		<-stale
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		select {
		case wait = <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	sealed := w.mine(ctx)

	cancel()
	wg.Wait()

	return sealed
}

// mine asks the state for a new block and logs the outcome.
func (w *Worker) mine(ctx context.Context) bool {
	t := time.Now()
	block, err := w.state.MineNewBlock(ctx)
	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", time.Since(t))

	switch {
	case err == nil:
		w.evHandler("worker: runMiningOperation: MINING: blk[%d]: hash[%s]: txs[%d]", block.Number(), block.Hash(), len(block.Transactions))
		return true

	case errors.Is(err, state.ErrNoTransactions):
		w.evHandler("worker: runMiningOperation: MINING: nothing minable: Txs[%d]", w.state.QueryMempoolLength())

	case ctx.Err() != nil:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")

	default:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
	}

	return false
}
