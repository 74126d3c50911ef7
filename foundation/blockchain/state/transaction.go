package state

import (
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/mempool"
)

// SubmitTransaction accepts a signed transaction from a wallet for
// inclusion in a future block. The sender must be able to cover the value
// of this transaction on top of what it is already spending in the mempool
// and in the block being mined.
func (s *State) SubmitTransaction(tx database.Tx) error {
	err := s.submitTransaction(tx)
	s.metrics.ObserveSubmit(err)

	if err != nil {
		s.evHandler("state: SubmitTransaction: tx[%s]: WARNING: %s", tx, err)
		return err
	}

	s.evHandler("state: SubmitTransaction: tx[%s]: accepted", tx)

	return nil
}

func (s *State) submitTransaction(tx database.Tx) error {
	if tx.Value == 0 {
		return ErrInvalidAmount
	}

	if tx.FromID.IsGenesis() {
		return ErrReservedSender
	}

	if !tx.FromID.IsAccountID() {
		return fmt.Errorf("%w: from: %w", ErrInvalidTransaction, database.ErrInvalidAccount)
	}

	if !tx.ToID.IsAccountID() {
		return fmt.Errorf("%w: to: %w", ErrInvalidTransaction, database.ErrInvalidAccount)
	}

	if err := tx.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash := tx.HashHex()

	if _, exists := s.txIndex[hash]; exists {
		return fmt.Errorf("%w: already in the chain", mempool.ErrDuplicate)
	}

	if _, exists := s.inflight[hash]; exists || s.mempool.Contains(hash) {
		return mempool.ErrDuplicate
	}

	balance := s.accounts.Balance(tx.FromID)
	pending := s.mempool.PendingSpend(tx.FromID) + s.inflightSpend(tx.FromID)
	if pending > balance || tx.Value > balance-pending {
		return fmt.Errorf("%w: bal %d, pending %d, needed %d", ErrInsufficientFunds, balance, pending, tx.Value)
	}

	n, err := s.mempool.Add(tx)
	if err != nil {
		return err
	}
	s.metrics.ObserveMempool(n)

	return nil
}

// inflightSpend returns the total value the account is sending in the
// block being mined. The caller must hold the lock.
func (s *State) inflightSpend(accountID database.AccountID) uint64 {
	var total uint64
	for hash, tx := range s.inflight {
		if tx.FromID != accountID {
			continue
		}

		// A replacement chain can already hold the transaction.
		if _, exists := s.txIndex[hash]; exists {
			continue
		}

		total += tx.Value
	}

	return total
}
