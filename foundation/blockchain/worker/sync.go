package worker

// Sync reconciles the local chain with the chains of the known peers.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	replaced, err := w.state.Reconcile(w.ctx)
	if err != nil {
		w.evHandler("worker: sync: ERROR: %s", err)
		return
	}

	if replaced {
		latest := w.state.RetrieveLatestBlock()
		w.evHandler("worker: sync: chain replaced: latestBlockNumber[%d]", latest.Header.Number)
	}
}

// peerOperations handles the periodic and signaled reconciliation with
// the known peers.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.peerTicker.C:
			if !w.isShutdown() {
				w.Sync()
			}
		case <-w.sync:
			if !w.isShutdown() {
				w.Sync()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}
