package public

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// submitTx is the payload a wallet posts to submit a signed transaction.
type submitTx struct {
	FromID    string `json:"from" validate:"required,account"`
	ToID      string `json:"to" validate:"required,account"`
	Value     uint64 `json:"value" validate:"required,gt=0"`
	Fee       uint64 `json:"fee"`
	TimeStamp int64  `json:"timestamp" validate:"required,gt=0"`
	Sig       string `json:"sig" validate:"required,hexadecimal"`
}

func toDBTx(stx submitTx) database.Tx {
	return database.Tx{
		FromID:    database.AccountID(stx.FromID),
		ToID:      database.AccountID(stx.ToID),
		Value:     stx.Value,
		Fee:       stx.Fee,
		TimeStamp: stx.TimeStamp,
		Sig:       stx.Sig,
	}
}

type account struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance uint64             `json:"balance"`
}

type accounts struct {
	LatestBlock string    `json:"latest_block"`
	Uncommitted int       `json:"uncommitted"`
	Accounts    []account `json:"accounts"`
}

type tx struct {
	Hash      string             `json:"hash"`
	FromID    database.AccountID `json:"from"`
	FromName  string             `json:"from_name"`
	ToID      database.AccountID `json:"to"`
	ToName    string             `json:"to_name"`
	Value     uint64             `json:"value"`
	Fee       uint64             `json:"fee"`
	TimeStamp int64              `json:"timestamp"`
	Sig       string             `json:"sig,omitempty"`
	Proof     []string           `json:"proof,omitempty"`
	ProofIdx  []int64            `json:"proof_idx,omitempty"`
}

type block struct {
	Number        uint64             `json:"number"`
	PrevBlockHash string             `json:"prev_block_hash"`
	TimeStamp     int64              `json:"timestamp"`
	MinerID       database.AccountID `json:"miner"`
	MinerName     string             `json:"miner_name"`
	Difficulty    uint8              `json:"difficulty"`
	Nonce         uint64             `json:"nonce"`
	TransRoot     string             `json:"trans_root"`
	Hash          string             `json:"hash"`
	Transactions  []tx               `json:"txs"`
}
