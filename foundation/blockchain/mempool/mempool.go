// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// ErrDuplicate is returned when a transaction with the same hash is
// already in the pool.
var ErrDuplicate = errors.New("transaction already in the mempool")

// Mempool represents a cache of transactions waiting to be mined, kept in
// the order they were received and keyed by the transaction hash.
type Mempool struct {
	mu    sync.RWMutex
	pool  map[string]database.Tx
	order []string
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]database.Tx),
	}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Add appends a transaction to the end of the pool and returns the number
// of transactions in the pool.
func (mp *Mempool) Add(tx database.Tx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := tx.HashHex()
	if _, exists := mp.pool[key]; exists {
		return len(mp.pool), ErrDuplicate
	}

	mp.pool[key] = tx
	mp.order = append(mp.order, key)

	return len(mp.pool), nil
}

// Contains reports whether a transaction with the hash is in the pool.
func (mp *Mempool) Contains(hash string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[hash]
	return exists
}

// Drain removes and returns up to howMany transactions from the front of
// the pool. Pass -1 for all the transactions.
func (mp *Mempool) Drain(howMany int) []database.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if howMany < 0 || howMany > len(mp.order) {
		howMany = len(mp.order)
	}

	txs := make([]database.Tx, 0, howMany)
	for _, key := range mp.order[:howMany] {
		txs = append(txs, mp.pool[key])
		delete(mp.pool, key)
	}
	mp.order = append([]string{}, mp.order[howMany:]...)

	return txs
}

// Requeue puts previously drained transactions back at the front of the
// pool in their original order. Transactions already in the pool are
// skipped.
func (mp *Mempool) Requeue(txs []database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	front := make([]string, 0, len(txs)+len(mp.order))
	for _, tx := range txs {
		key := tx.HashHex()
		if _, exists := mp.pool[key]; exists {
			continue
		}

		mp.pool[key] = tx
		front = append(front, key)
	}

	mp.order = append(front, mp.order...)
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := tx.HashHex()
	if _, exists := mp.pool[key]; !exists {
		return
	}

	delete(mp.pool, key)
	for i, k := range mp.order {
		if k == key {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}

// Copy returns the transactions in the pool in order.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.Tx, 0, len(mp.order))
	for _, key := range mp.order {
		txs = append(txs, mp.pool[key])
	}

	return txs
}

// PendingSpend returns the total value the account is sending in the
// transactions waiting in the pool.
func (mp *Mempool) PendingSpend(accountID database.AccountID) uint64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	var total uint64
	for _, tx := range mp.pool {
		if tx.FromID == accountID {
			total += tx.Value
		}
	}

	return total
}
