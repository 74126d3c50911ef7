// Package pow implements the proof of work puzzle used to mine blocks. The
// puzzle binds the new nonce to the previous block's proof and hash and to
// the account of the miner doing the work.
package pow

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
)

// MaxDifficulty is the largest difficulty that can be matched against a
// hex encoded sha256 hash.
const MaxDifficulty = 64

// CheckInterval is the number of attempts made between checks of the
// context for cancellation.
const CheckInterval = 1024

// ErrDifficulty is returned when the difficulty can't be solved.
var ErrDifficulty = errors.New("difficulty out of range")

// Puzzle represents the inputs to the proof of work search.
type Puzzle struct {
	PrevProof  uint64
	PrevHash   string
	Miner      string
	Difficulty uint8
}

// Solve scans nonces starting at zero until the digest for the puzzle has
// the required number of leading zeros. For the same puzzle the same
// minimal nonce is always found. The context is checked every CheckInterval
// attempts so the search can be abandoned.
func Solve(ctx context.Context, p Puzzle, ev func(v string, args ...any)) (uint64, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	if p.Difficulty > MaxDifficulty {
		return 0, fmt.Errorf("%w: %d", ErrDifficulty, p.Difficulty)
	}

	ev("pow: Solve: MINING: started: difficulty[%d]", p.Difficulty)
	defer ev("pow: Solve: MINING: completed")

	var nonce uint64
	for {
		if nonce%CheckInterval == 0 {
			if ctx.Err() != nil {
				ev("pow: Solve: MINING: CANCELLED: attempts[%d]", nonce)
				return 0, ctx.Err()
			}

			if nonce > 0 && nonce%(CheckInterval*1024) == 0 {
				ev("pow: Solve: MINING: attempts[%d]", nonce)
			}
		}

		hash := Digest(p, nonce)
		if IsHashSolved(p.Difficulty, hash) {
			ev("pow: Solve: MINING: SOLVED: prevHash[%s]: nonce[%d]: hash[%s]", p.PrevHash, nonce, hash)
			return nonce, nil
		}

		nonce++
	}
}

// Digest returns the proof of work hash for the puzzle and nonce.
func Digest(p Puzzle, nonce uint64) string {
	return signature.Hash(p.PrevProof, p.PrevHash, nonce, p.Miner)
}

// Validate reports whether the nonce solves the puzzle.
func Validate(p Puzzle, nonce uint64) bool {
	return IsHashSolved(p.Difficulty, Digest(p, nonce))
}

// IsHashSolved checks the hash to make sure it complies with the POW
// rules. We need to match a difficulty number of 0's.
func IsHashSolved(difficulty uint8, hash string) bool {
	const match = "0000000000000000000000000000000000000000000000000000000000000000"

	if len(hash) != 64 || difficulty > MaxDifficulty {
		return false
	}

	return hash[:difficulty] == match[:difficulty]
}
