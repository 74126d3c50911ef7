package state

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// Balance returns the balance of the account. An account that has never
// been credited has a balance of 0.
func (s *State) Balance(accountID database.AccountID) uint64 {
	return s.accounts.Balance(accountID)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryBlocksByAccount returns the set of blocks with a transaction sent or
// received by the account. If the account is empty, all blocks are returned.
func (s *State) QueryBlocksByAccount(accountID database.AccountID) []database.Block {
	var out []database.Block

	for _, block := range s.Chain() {
		if accountID == "" {
			out = append(out, block)
			continue
		}

		for _, tx := range block.Transactions() {
			if tx.FromID == accountID || tx.ToID == accountID {
				out = append(out, block)
				break
			}
		}
	}

	return out
}
