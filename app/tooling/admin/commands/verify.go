package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
)

// Verify replays the stored chain from the genesis block, validating every
// block, and prints the resulting balances.
func Verify(w io.Writer, cfg Config) error {
	st, err := open(cfg)
	if err != nil {
		return err
	}
	defer st.Shutdown()

	tip := st.RetrieveLatestBlock()
	fmt.Fprintf(w, "Chain valid: height %d  LatestBlockHash: %s\n\n", tip.Header.Number, tip.Hash())

	printBalances(w, st, "")

	return nil
}

// Balances prints the balance of every account, or only the one specified.
func Balances(w io.Writer, cfg Config, accountID database.AccountID) error {
	st, err := open(cfg)
	if err != nil {
		return err
	}
	defer st.Shutdown()

	fmt.Fprintf(w, "LatestBlockHash: %s\n\n", st.RetrieveLatestBlock().Hash())

	printBalances(w, st, accountID)

	return nil
}

// Transactions prints every transaction in the chain, or only the ones
// sent or received by the account specified.
func Transactions(w io.Writer, cfg Config, accountID database.AccountID) error {
	st, err := open(cfg)
	if err != nil {
		return err
	}
	defer st.Shutdown()

	for _, block := range st.QueryBlocksByAccount(accountID) {
		for _, tx := range block.Transactions() {
			if accountID != "" && tx.FromID != accountID && tx.ToID != accountID {
				continue
			}

			fmt.Fprintf(w, "Block: %d  Hash: %s  From: %s  To: %s  Value: %d  Fee: %d\n",
				block.Header.Number, tx.HashHex(), tx.FromID, tx.ToID, tx.Value, tx.Fee)
		}
	}

	return nil
}

func printBalances(w io.Writer, st *state.State, accountID database.AccountID) {
	infos := st.RetrieveAccounts()

	ids := make([]database.AccountID, 0, len(infos))
	for id := range infos {
		if accountID != "" && id != accountID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		fmt.Fprintf(w, "Account: %s  Balance: %d\n", id, infos[id].Balance)
	}
}
