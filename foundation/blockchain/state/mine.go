package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/metrics"
)

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain. The block is built even when there are no
// transactions waiting so the miner still collects the reward.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	started := time.Now()

	block, err := s.mineNewBlock(ctx)

	status := metrics.StatusSuccess
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = metrics.StatusCancelled
	case errors.Is(err, ErrStaleBlock):
		status = metrics.StatusStale
	default:
		status = metrics.StatusError
	}
	s.metrics.ObserveMine(status, started)

	return block, err
}

func (s *State) mineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: pick transactions")

	tip, trans, err := s.pickTransactions()
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: trans[%d]", len(trans))

	// The reward is the last transaction in the block.
	reward := database.NewRewardTx(s.minerID, s.genesis.MiningReward, time.Now().UTC().UnixMilli())

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		MinerID:    s.minerID,
		Difficulty: s.genesis.Difficulty,
		PrevBlock:  tip,
		Trans:      append(trans, reward),
		EvHandler:  s.evHandler,
	})
	if err != nil {
		s.requeue(trans)
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		s.requeue(trans)
		return database.Block{}, ctx.Err()
	}

	block, err = block.Sign(s.minerKey)
	if err != nil {
		s.requeue(trans)
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	if err := s.appendMinedBlock(block); err != nil {
		s.requeue(trans)
		return database.Block{}, err
	}

	return block, nil
}

// pickTransactions drains the next set of transactions from the mempool
// and keeps the ones that can be applied on top of the current tip. The
// rest are dropped. The ones kept stay reserved until the block is added
// or they are requeued.
func (s *State) pickTransactions() (database.Block, []database.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uint64(len(s.chain)) >= s.genesis.MaxBlocks {
		return database.Block{}, nil, ErrChainFull
	}

	tip := s.chain[len(s.chain)-1]
	ledger := s.accounts.Clone()

	drained := s.mempool.Drain(int(s.genesis.TransPerBlock))
	trans := make([]database.Tx, 0, len(drained))

	for _, tx := range drained {
		if _, exists := s.txIndex[tx.HashHex()]; exists {
			s.evHandler("state: MineNewBlock: MINING: tx[%s]: WARNING: already in the chain", tx)
			continue
		}

		if err := ledger.ApplyTransaction(tx); err != nil {
			s.evHandler("state: MineNewBlock: MINING: tx[%s]: WARNING: dropped: %s", tx, err)
			continue
		}

		trans = append(trans, tx)
		s.inflight[tx.HashHex()] = tx
	}

	if dropped := len(drained) - len(trans); dropped > 0 {
		s.metrics.ObserveDropped(dropped)
	}
	s.metrics.ObserveMempool(s.mempool.Count())

	return tip, trans, nil
}

// appendMinedBlock adds a block mined by this node to the chain as long as
// the chain tip didn't change while mining.
func (s *State) appendMinedBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip := s.chain[len(s.chain)-1]
	if block.Header.PrevBlockHash != tip.Hash() {
		return fmt.Errorf("%w: mined on %s, tip is %s", ErrStaleBlock, block.Header.PrevBlockHash, tip.Hash())
	}

	return s.commitBlock(block)
}

// requeue releases the transactions reserved for a block that was never
// added and puts them back at the front of the mempool.
func (s *State) requeue(trans []database.Tx) {
	if len(trans) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range trans {
		delete(s.inflight, tx.HashHex())
	}

	s.requeueLocked(trans)
}

// requeueLocked puts transactions back at the front of the mempool, minus
// the ones the chain already includes and the ones the ledger can no longer
// cover. They are checked in order ahead of what is already waiting, which
// is the order the next block picks them. The caller must hold the lock.
func (s *State) requeueLocked(trans []database.Tx) {
	ledger := s.accounts.Clone()

	requeue := make([]database.Tx, 0, len(trans))
	for _, tx := range trans {
		if tx.IsReward() {
			continue
		}

		if _, exists := s.txIndex[tx.HashHex()]; exists {
			continue
		}

		if err := ledger.ApplyTransaction(tx); err != nil {
			s.evHandler("state: requeue: tx[%s]: WARNING: dropped: %s", tx, err)
			s.metrics.ObserveDropped(1)
			continue
		}

		requeue = append(requeue, tx)
	}

	s.mempool.Requeue(requeue)
	s.metrics.ObserveMempool(s.mempool.Count())

	s.evHandler("state: requeue: trans[%d]", len(requeue))
}
