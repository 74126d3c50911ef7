package database

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
)

// Set of error variables for transaction handling.
var (
	ErrMissingSignature = errors.New("transaction is not signed")
	ErrZeroValue        = errors.New("transaction value must be greater than zero")
)

// Tx is the transactional information between two parties. The signature
// is not part of the hash.
type Tx struct {
	FromID    AccountID `json:"from"`      // Account sending the value, or Genesis for a reward.
	ToID      AccountID `json:"to"`        // Account receiving the value.
	Value     uint64    `json:"value"`     // Monetary value moved by this transaction.
	Fee       uint64    `json:"fee"`       // Recorded with the transaction, never paid out.
	TimeStamp int64     `json:"timestamp"` // Unix milliseconds when the transaction was created.
	Sig       string    `json:"sig,omitempty"`
}

// NewTx constructs a new unsigned transaction stamped with the current time.
func NewTx(fromID AccountID, toID AccountID, value uint64, fee uint64) (Tx, error) {
	if !fromID.IsAccountID() {
		return Tx{}, fmt.Errorf("from account: %w", ErrInvalidAccount)
	}

	if !toID.IsAccountID() {
		return Tx{}, fmt.Errorf("to account: %w", ErrInvalidAccount)
	}

	if value == 0 {
		return Tx{}, ErrZeroValue
	}

	tx := Tx{
		FromID:    fromID,
		ToID:      toID,
		Value:     value,
		Fee:       fee,
		TimeStamp: time.Now().UTC().UnixMilli(),
	}

	return tx, nil
}

// NewRewardTx constructs the protocol generated transaction that pays the
// miner of a block.
func NewRewardTx(minerID AccountID, reward uint64, timeStamp int64) Tx {
	return Tx{
		FromID:    GenesisID,
		ToID:      minerID,
		Value:     reward,
		TimeStamp: timeStamp,
	}
}

// HashHex returns the hex encoded hash of the semantic fields of the
// transaction.
func (tx Tx) HashHex() string {
	return signature.Hash(tx.FromID, tx.ToID, tx.Value, tx.Fee, tx.TimeStamp)
}

// Hash implements the merkle Hashable interface for providing a hash
// of a transaction.
func (tx Tx) Hash() ([]byte, error) {
	return hex.DecodeString(tx.HashHex())
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two transactions. If the hash and signatures are the same,
// the two transactions are the same.
func (tx Tx) Equals(otherTx Tx) bool {
	return tx.HashHex() == otherTx.HashHex() && tx.Sig == otherTx.Sig
}

// Sign uses the specified private key to sign the transaction. Signing
// again replaces the previous signature.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (Tx, error) {
	if tx.FromID.IsGenesis() {
		return Tx{}, errors.New("reward transactions are not signed")
	}

	if PublicKeyToAccountID(privateKey.PublicKey) != tx.FromID {
		return Tx{}, errors.New("private key does not belong to the from account")
	}

	sig, err := signature.Sign(tx.HashHex(), privateKey)
	if err != nil {
		return Tx{}, err
	}

	tx.Sig = sig

	return tx, nil
}

// Verify checks the transaction carries a signature produced by the from
// account over the transaction hash. Reward transactions are not signed
// and always verify.
func (tx Tx) Verify() error {
	if tx.FromID.IsGenesis() {
		return nil
	}

	if tx.Sig == "" {
		return ErrMissingSignature
	}

	return signature.Verify(tx.HashHex(), tx.Sig, string(tx.FromID))
}

// IsReward reports whether this is a protocol generated reward.
func (tx Tx) IsReward() bool {
	return tx.FromID.IsGenesis()
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%s->%s:%d", tx.HashHex()[:8], short(string(tx.FromID)), short(string(tx.ToID)), tx.Value)
}

// short trims long account ids for log output.
func short(s string) string {
	if len(s) <= 12 {
		return s
	}

	return s[:12]
}
