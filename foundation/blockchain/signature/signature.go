// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// separator is written between the fields of a hash so adjacent values
// of variable length can't be shifted into each other.
const separator = "|"

// Set of error variables for signature handling.
var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrInvalidHash      = errors.New("invalid hash")
)

// =============================================================================

// Hash returns the hex-encoded sha256 digest of the canonical form of the
// specified fields. Every field is written using its default format.
func Hash(fields ...any) string {
	h := sha256.New()
	for i, field := range fields {
		if i > 0 {
			h.Write([]byte(separator))
		}
		fmt.Fprint(h, field)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Sign uses the specified private key to sign the hex-encoded digest. The
// signature is returned hex encoded in the [R|S|V] format.
func Sign(digest string, privateKey *ecdsa.PrivateKey) (string, error) {
	data, err := toDigestBytes(digest)
	if err != nil {
		return "", err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	// Check the public key extracted from the data and signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return "", ErrInvalidSignature
	}

	return hexutil.Encode(sig), nil
}

// Verify checks the signature was produced over the digest by the private
// key belonging to the specified hex-encoded public key.
func Verify(digest string, sig string, publicKey string) error {
	data, err := toDigestBytes(digest)
	if err != nil {
		return err
	}

	pk, err := ToPublicKey(publicKey)
	if err != nil {
		return err
	}

	sigBytes, err := hexutil.Decode(sig)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	if len(sigBytes) != crypto.SignatureLength {
		return fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sigBytes))
	}

	// VerifySignature only accepts the [R|S] part and rejects malleable
	// high S values.
	if !crypto.VerifySignature(crypto.FromECDSAPub(pk), data, sigBytes[:crypto.RecoveryIDOffset]) {
		return ErrInvalidSignature
	}

	return nil
}

// PublicKeyHex converts the public key to its uncompressed hex encoding.
func PublicKeyHex(pk ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.FromECDSAPub(&pk))
}

// ToPublicKey converts an uncompressed hex-encoded public key into an
// ecdsa public key.
func ToPublicKey(publicKey string) (*ecdsa.PublicKey, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(publicKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}

	pk, err := crypto.UnmarshalPubkey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}

	return pk, nil
}

// =============================================================================

// toDigestBytes converts a hex-encoded 32 byte digest into its bytes.
func toDigestBytes(digest string) ([]byte, error) {
	data, err := hex.DecodeString(digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHash, err)
	}

	if len(data) != crypto.DigestLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidHash, len(data))
	}

	return data, nil
}
