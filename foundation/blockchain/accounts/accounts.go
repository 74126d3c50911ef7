// Package accounts maintains the account balances derived from the
// transactions applied in chain order.
package accounts

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// Set of error variables for applying transactions.
var (
	ErrUnknownSender     = errors.New("sender account does not exist")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// Info represents information stored for an individual account.
type Info struct {
	AccountID database.AccountID `json:"account"`
	Balance   uint64             `json:"balance"`
}

// Accounts manages data related to accounts who have transacted on
// the blockchain. Accounts are created on first credit and never removed.
type Accounts struct {
	info map[database.AccountID]Info
	mu   sync.RWMutex
}

// New constructs an empty set of accounts.
func New() *Accounts {
	return &Accounts{
		info: make(map[database.AccountID]Info),
	}
}

// Replace updates the accounts based on the specified accounts.
func (act *Accounts) Replace(accounts *Accounts) {
	clone := accounts.Clone()

	act.mu.Lock()
	defer act.mu.Unlock()

	act.info = clone.info
}

// Clone makes a copy of the current accounts.
func (act *Accounts) Clone() *Accounts {
	act.mu.RLock()
	defer act.mu.RUnlock()

	accounts := New()
	for accountID, info := range act.info {
		accounts.info[accountID] = info
	}
	return accounts
}

// Copy makes a copy of the current information for all accounts.
func (act *Accounts) Copy() map[database.AccountID]Info {
	act.mu.RLock()
	defer act.mu.RUnlock()

	accounts := make(map[database.AccountID]Info, len(act.info))
	for accountID, info := range act.info {
		accounts[accountID] = info
	}
	return accounts
}

// Balance returns the balance for the account or 0 for an account that has
// never been credited.
func (act *Accounts) Balance(accountID database.AccountID) uint64 {
	act.mu.RLock()
	defer act.mu.RUnlock()

	return act.info[accountID].Balance
}

// ApplyTransaction performs the business logic for applying a transaction
// to the accounts information. A reward transaction credits the receiver.
// Any other transaction moves the value from the sender to the receiver.
// The fee is not moved. The signature is not checked here.
func (act *Accounts) ApplyTransaction(tx database.Tx) error {
	act.mu.Lock()
	defer act.mu.Unlock()

	if tx.IsReward() {
		return act.credit(tx.ToID, tx.Value)
	}

	from, exists := act.info[tx.FromID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownSender, tx.FromID)
	}

	if tx.Value > from.Balance {
		return fmt.Errorf("%w: bal %d, needed %d", ErrInsufficientFunds, from.Balance, tx.Value)
	}

	if tx.FromID != tx.ToID {
		if to := act.info[tx.ToID]; to.Balance > math.MaxUint64-tx.Value {
			return fmt.Errorf("%w: %s", ErrBalanceOverflow, tx.ToID)
		}
	}

	from.Balance -= tx.Value
	act.info[tx.FromID] = from

	return act.credit(tx.ToID, tx.Value)
}

// credit adds the value to the account, creating it if needed. The lock
// must be held by the caller.
func (act *Accounts) credit(accountID database.AccountID, value uint64) error {
	info := act.info[accountID]
	if info.Balance > math.MaxUint64-value {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, accountID)
	}

	info.AccountID = accountID
	info.Balance += value
	act.info[accountID] = info

	return nil
}
