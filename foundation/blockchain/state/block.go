package state

import (
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain.
func (s *State) ProcessProposedBlock(blockData database.BlockData) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", blockData.Header.PrevBlockHash, blockData.Hash, len(blockData.Trans))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", blockData.Hash)

	err := s.processProposedBlock(blockData)
	s.metrics.ObserveProposedBlock(err)

	return err
}

func (s *State) processProposedBlock(blockData database.BlockData) error {
	block, err := database.ToBlock(blockData)
	if err != nil {
		return fmt.Errorf("%w: %s", database.ErrInvalidBlock, err)
	}

	ahead, err := s.appendProposedBlock(block)
	if err != nil {
		// The peer is further along than we are, so ask the worker to
		// reconcile with the known peers.
		if ahead {
			s.evHandler("state: ProcessProposedBlock: blk[%d]: peer is ahead, signal sync", block.Header.Number)
			s.Worker.SignalSync()
		}
		return err
	}

	// If a mining operation is running it needs to stop immediately since
	// it's now working against a stale tip.
	s.evHandler("state: ProcessProposedBlock: signal mining to terminate")
	s.Worker.SignalCancelMining()

	return nil
}

func (s *State) appendProposedBlock(block database.Block) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uint64(len(s.chain)) >= s.genesis.MaxBlocks {
		return false, ErrChainFull
	}

	tip := s.chain[len(s.chain)-1]
	if block.Header.Number > tip.Header.Number+1 {
		return true, fmt.Errorf("%w: got %d, exp %d", database.ErrNotNextBlock, block.Header.Number, tip.Header.Number+1)
	}

	return false, s.commitBlock(block)
}

// =============================================================================

// commitBlock validates the block against the tip of the chain and applies
// it to a copy of the ledger. If that passes, the block is written to
// storage and becomes the new tip. The caller must hold the write lock.
func (s *State) commitBlock(block database.Block) error {
	s.evHandler("state: commitBlock: validate block")

	tip := s.chain[len(s.chain)-1]

	ledger := s.accounts.Clone()
	if err := s.applyBlock(tip, block, ledger, s.txIndex); err != nil {
		return err
	}

	s.evHandler("state: commitBlock: write to disk")

	if err := s.db.Write(block); err != nil {
		return err
	}

	s.evHandler("state: commitBlock: update accounts and remove from mempool")

	s.chain = append(s.chain, block)
	s.accounts.Replace(ledger)

	for _, tx := range block.Transactions() {
		if tx.IsReward() {
			continue
		}

		s.txIndex[tx.HashHex()] = struct{}{}
		s.mempool.Delete(tx)
		delete(s.inflight, tx.HashHex())
	}

	s.metrics.ObserveHeight(block.Header.Number)
	s.metrics.ObserveMempool(s.mempool.Count())

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// applyBlock validates the block against the previous block and applies
// every transaction to the ledger. A block whose transactions can't all be
// applied is invalid. Transactions already in the chain are rejected. The
// transaction index is only read.
func (s *State) applyBlock(prev database.Block, block database.Block, ledger *accounts.Accounts, txIndex map[string]struct{}) error {
	if err := block.ValidateBlock(prev, s.genesis, s.evHandler); err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for _, tx := range block.Transactions() {
		if !tx.IsReward() {
			hash := tx.HashHex()

			if _, exists := txIndex[hash]; exists {
				return fmt.Errorf("%w: tx[%s]: already in the chain", database.ErrBadTransaction, tx)
			}

			if _, exists := seen[hash]; exists {
				return fmt.Errorf("%w: tx[%s]: included twice", database.ErrBadTransaction, tx)
			}
			seen[hash] = struct{}{}
		}

		if err := ledger.ApplyTransaction(tx); err != nil {
			return fmt.Errorf("%w: tx[%s]: %w", database.ErrBadTransaction, tx, err)
		}
	}

	return nil
}

// validateChain validates a full chain starting with the genesis block and
// returns the ledger and transaction index it produces.
func (s *State) validateChain(blocks []database.Block) (*accounts.Accounts, map[string]struct{}, error) {
	if len(blocks) == 0 || !blocks[0].IsGenesis() {
		return nil, nil, &ChainError{Height: 0, Err: ErrGenesisMismatch}
	}

	if uint64(len(blocks)) > s.genesis.MaxBlocks {
		return nil, nil, &ChainError{Height: s.genesis.MaxBlocks, Err: ErrChainFull}
	}

	ledger := accounts.New()
	txIndex := make(map[string]struct{})

	for i := 1; i < len(blocks); i++ {
		if err := s.applyBlock(blocks[i-1], blocks[i], ledger, txIndex); err != nil {
			return nil, nil, &ChainError{Height: uint64(i), Err: err}
		}

		for _, tx := range blocks[i].Transactions() {
			if !tx.IsReward() {
				txIndex[tx.HashHex()] = struct{}{}
			}
		}
	}

	return ledger, txIndex, nil
}

// =============================================================================

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockHeaderJSON, err := json.Marshal(block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockTransJSON, err := json.Marshal(block.Transactions())
	if err != nil {
		blockTransJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`block: {"hash":%q,"header":%s,"trans":%s}`, block.Hash(), string(blockHeaderJSON), string(blockTransJSON))
}
