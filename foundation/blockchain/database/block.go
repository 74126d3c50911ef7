package database

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/powledger/foundation/blockchain/pow"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
)

// Set of values that make up the genesis block.
const (
	GenesisPrevHash  = "0"
	GenesisSignature = "Genesis"
)

// Set of error variables for block validation.
var (
	ErrInvalidBlock   = errors.New("invalid block")
	ErrNotNextBlock   = errors.New("block is not the next block")
	ErrBadSignature   = errors.New("block signature invalid")
	ErrBadTransaction = errors.New("block transaction invalid")
)

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64    `json:"number"`          // Height of the block in the chain, genesis is 0.
	TimeStamp     int64     `json:"timestamp"`       // Unix milliseconds when the block was mined.
	TransRoot     string    `json:"trans_root"`      // Merkle tree root hash for the transactions in this block.
	PrevBlockHash string    `json:"prev_block_hash"` // Hash of the previous block in the chain.
	MinerID       AccountID `json:"miner"`           // The account who mined the block and receives the reward.
	Nonce         uint64    `json:"nonce"`           // Value identified to solve the proof of work puzzle.
	Difficulty    uint8     `json:"difficulty"`      // Number of 0's needed to solve the proof of work puzzle.
}

// Block represents a group of transactions batched together. Once sealed
// the hash and signature are carried with the block so they can be checked
// against the recomputed values.
type Block struct {
	Header    BlockHeader
	Trans     *merkle.Tree[Tx]
	hash      string
	signature string
}

// NewBlock constructs an unsigned block for the header and transactions.
// The merkle root is computed from the transactions and the block is
// hashed.
func NewBlock(header BlockHeader, trans []Tx) (Block, error) {
	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, err
	}

	header.TransRoot = tree.RootHex()

	b := Block{
		Header: header,
		Trans:  tree,
	}
	b.hash = b.CalculateHash()

	return b, nil
}

// GenesisBlock returns the fixed first block of every chain. It carries no
// transactions and requires no proof of work.
func GenesisBlock() Block {
	b, _ := NewBlock(BlockHeader{PrevBlockHash: GenesisPrevHash, MinerID: GenesisID}, nil)
	b.signature = GenesisSignature

	return b
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	MinerID    AccountID
	Difficulty uint8
	PrevBlock  Block
	Trans      []Tx
	EvHandler  func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle against the previous block.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	puzzle := pow.Puzzle{
		PrevProof:  args.PrevBlock.Header.Nonce,
		PrevHash:   args.PrevBlock.Hash(),
		Miner:      string(args.MinerID),
		Difficulty: args.Difficulty,
	}

	nonce, err := pow.Solve(ctx, puzzle, args.EvHandler)
	if err != nil {
		return Block{}, err
	}

	header := BlockHeader{
		Number:        args.PrevBlock.Header.Number + 1,
		TimeStamp:     time.Now().UTC().UnixMilli(),
		PrevBlockHash: args.PrevBlock.Hash(),
		MinerID:       args.MinerID,
		Nonce:         nonce,
		Difficulty:    args.Difficulty,
	}

	return NewBlock(header, args.Trans)
}

// Hash returns the sealed hash of the block.
func (b Block) Hash() string {
	return b.hash
}

// Signature returns the miner's signature over the block hash.
func (b Block) Signature() string {
	return b.signature
}

// CalculateHash recomputes the hash of the block from the header.
func (b Block) CalculateHash() string {
	h := b.Header
	return signature.Hash(h.TransRoot, h.Number, h.Nonce, h.PrevBlockHash, h.MinerID, h.TimeStamp)
}

// Sign uses the miner's private key to sign the block hash.
func (b Block) Sign(privateKey *ecdsa.PrivateKey) (Block, error) {
	if PublicKeyToAccountID(privateKey.PublicKey) != b.Header.MinerID {
		return Block{}, errors.New("private key does not belong to the miner")
	}

	sig, err := signature.Sign(b.hash, privateKey)
	if err != nil {
		return Block{}, err
	}

	b.signature = sig

	return b, nil
}

// Transactions returns the transactions in the block in order.
func (b Block) Transactions() []Tx {
	if b.Trans == nil {
		return nil
	}

	return b.Trans.Values()
}

// IsGenesis reports whether the block is identical to the genesis block.
func (b Block) IsGenesis() bool {
	g := GenesisBlock()
	return b.Header == g.Header && b.hash == g.hash && b.signature == g.signature && len(b.Transactions()) == 0
}

// ValidateBlock takes a block and validates it to be included into the
// blockchain after the specified previous block.
func (b Block) ValidateBlock(previousBlock Block, gen genesis.Genesis, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("%w: got %d, exp %d", ErrNotNextBlock, b.Header.Number, nextNumber)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash() {
		return fmt.Errorf("%w: parent block hash doesn't match our known parent, got %s, exp %s", ErrNotNextBlock, b.Header.PrevBlockHash, previousBlock.Hash())
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block difficulty is the same or greater than required", b.Header.Number)

	if b.Header.Difficulty < gen.Difficulty {
		return fmt.Errorf("%w: block difficulty is less than required, got %d, exp %d", ErrInvalidBlock, b.Header.Difficulty, gen.Difficulty)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: proof of work has been solved", b.Header.Number)

	puzzle := pow.Puzzle{
		PrevProof:  previousBlock.Header.Nonce,
		PrevHash:   previousBlock.Hash(),
		Miner:      string(b.Header.MinerID),
		Difficulty: b.Header.Difficulty,
	}
	if !pow.Validate(puzzle, b.Header.Nonce) {
		return fmt.Errorf("%w: nonce %d does not solve the puzzle", ErrInvalidBlock, b.Header.Nonce)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash matches the header", b.Header.Number)

	if hash := b.CalculateHash(); hash != b.hash {
		return fmt.Errorf("%w: block hash doesn't match the header, got %s, exp %s", ErrInvalidBlock, b.hash, hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: merkle root does match transactions", b.Header.Number)

	if b.Header.TransRoot != b.Trans.RootHex() {
		return fmt.Errorf("%w: merkle root does not match transactions, got %s, exp %s", ErrInvalidBlock, b.Trans.RootHex(), b.Header.TransRoot)
	}

	if err := b.Trans.Verify(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBlock, err)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: miner signature is valid", b.Header.Number)

	if err := signature.Verify(b.hash, b.signature, string(b.Header.MinerID)); err != nil {
		return fmt.Errorf("%w: %s", ErrBadSignature, err)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: transactions are valid", b.Header.Number)

	trans := b.Transactions()
	if len(trans) > int(gen.TransPerBlock)+1 {
		return fmt.Errorf("%w: too many transactions, got %d, max %d", ErrInvalidBlock, len(trans), int(gen.TransPerBlock)+1)
	}

	var rewards int
	for _, tx := range trans {
		if tx.Value == 0 {
			return fmt.Errorf("%w: tx[%s]: %s", ErrBadTransaction, tx, ErrZeroValue)
		}

		if tx.IsReward() {
			rewards++

			switch {
			case rewards > 1:
				return fmt.Errorf("%w: more than one reward transaction", ErrBadTransaction)
			case tx.ToID != b.Header.MinerID:
				return fmt.Errorf("%w: reward paid to %s, not the miner", ErrBadTransaction, tx.ToID)
			case tx.Value != gen.MiningReward:
				return fmt.Errorf("%w: reward of %d, exp %d", ErrBadTransaction, tx.Value, gen.MiningReward)
			}

			continue
		}

		if err := tx.Verify(); err != nil {
			return fmt.Errorf("%w: tx[%s]: %s", ErrBadTransaction, tx, err)
		}
	}

	return nil
}

// =============================================================================

// BlockData represents what can be serialized to disk and over the network.
type BlockData struct {
	Hash      string      `json:"hash"`
	Signature string      `json:"signature"`
	Header    BlockHeader `json:"block"`
	Trans     []Tx        `json:"trans"`
}

// NewBlockData constructs block data from a block.
func NewBlockData(block Block) BlockData {
	blockData := BlockData{
		Hash:      block.Hash(),
		Signature: block.Signature(),
		Header:    block.Header,
		Trans:     block.Transactions(),
	}

	return blockData
}

// ToBlock converts a storage block into a database block. The stored hash
// and signature are kept so validation can detect tampering.
func ToBlock(blockData BlockData) (Block, error) {
	tree, err := merkle.NewTree(blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	block := Block{
		Header:    blockData.Header,
		Trans:     tree,
		hash:      blockData.Hash,
		signature: blockData.Signature,
	}

	return block, nil
}
