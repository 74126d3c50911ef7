package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/state"
)

// miningOperations handles mining. A mining operation runs on every tick
// of the block time or when one is forced.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		var force bool

		select {
		case <-w.mineTicker.C:
		case <-w.startMining:
			force = true
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}

		if w.isShutdown() {
			continue
		}

		if err := w.runMiningOperation(force); errors.Is(err, state.ErrChainFull) {
			w.evHandler("worker: miningOperations: chain is full, mining stopped")
			return
		}
	}
}

// runMiningOperation takes the next set of transactions from the mempool
// and writes a new block to the database.
func (w *Worker) runMiningOperation(force bool) error {

	// Only one mining operation can be in flight.
	if !w.mining.CompareAndSwap(false, true) {
		w.evHandler("worker: runMiningOperation: MINING: already in flight")
		return nil
	}
	defer w.mining.Store(false)

	// Respect the block time since the last block this node mined.
	if last := w.lastMined.Load(); !force && last != 0 {
		if elapsed := time.Since(time.Unix(0, last)); elapsed < w.blockTime {
			w.evHandler("worker: runMiningOperation: MINING: skipped: elapsed[%v]", elapsed)
			return nil
		}
	}

	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()

	// Can't return from this function until these G's are complete.
	var wg sync.WaitGroup
	wg.Add(2)

	// This G exists to cancel the mining operation.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		case <-ctx.Done():
		}
	}()

	// This G is performing the mining.
	var mineErr error
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		t := time.Now()
		block, err := w.state.MineNewBlock(ctx)
		duration := time.Since(t)

		w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

		if err != nil {
			mineErr = err

			switch {
			case errors.Is(err, state.ErrChainFull):
				w.evHandler("worker: runMiningOperation: MINING: WARNING: %s", err)
			case errors.Is(err, state.ErrStaleBlock), ctx.Err() != nil:
				w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
			default:
				w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
			}
			return
		}

		w.lastMined.Store(time.Now().UnixNano())

		// WOW, we mined a block. Propose the new block to the network and
		// then check the peers didn't get further along.
		w.state.NetSendBlockToPeers(w.ctx, block)

		if _, err := w.state.Reconcile(w.ctx); err != nil {
			w.evHandler("worker: runMiningOperation: MINING: reconcile: ERROR: %s", err)
		}
	}()

	// Wait for both G's to terminate.
	wg.Wait()

	return mineErr
}
