package database

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
)

// GenesisID is the distinguished sender used by the protocol generated
// reward transaction. It is never a valid account and never signs.
const GenesisID AccountID = "Genesis"

// ErrInvalidAccount is returned when a value is not a properly formatted
// account id.
var ErrInvalidAccount = errors.New("invalid account format")

// AccountID represents an account id that is used to sign transactions and is
// associated with transactions on the blockchain. The id is the hex encoding
// of the uncompressed secp256k1 public key.
type AccountID string

// ToAccountID converts a hex-encoded string to an account and validates the
// hex-encoded string is formatted correctly.
func ToAccountID(hex string) (AccountID, error) {
	a := AccountID(hex)
	if !a.IsAccountID() {
		return "", ErrInvalidAccount
	}

	return a, nil
}

// PublicKeyToAccountID converts the public key to an account value.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(signature.PublicKeyHex(pk))
}

// IsAccountID verifies whether the underlying data represents a valid
// hex-encoded uncompressed public key. Only lowercase hex is accepted so
// one key has exactly one account id.
func (a AccountID) IsAccountID() bool {
	const keyLength = 65

	if len(a) != 2*keyLength || a[:2] != "04" {
		return false
	}

	return isHex(a)
}

// IsGenesis reports whether the account is the reward sender.
func (a AccountID) IsGenesis() bool {
	return a == GenesisID
}

// =============================================================================

// isHex validates whether each byte is valid hexadecimal string.
func isHex(a AccountID) bool {
	if len(a)%2 != 0 {
		return false
	}

	for _, c := range []byte(a) {
		if !isHexCharacter(c) {
			return false
		}
	}

	return true
}

// isHexCharacter returns bool of c being a valid lowercase hexadecimal.
func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f')
}
