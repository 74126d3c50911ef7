// Package database handles all the lower level support for the blocks and
// transactions of the blockchain and the access to their durable storage.
package database

import (
	"errors"
	"sync"
)

// ErrEndOfChain is returned by an iterator once every block has been read.
var ErrEndOfChain = errors.New("end of chain")

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain. The
// genesis block is never stored.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	WriteChain(blocks []BlockData) error
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks in ascending order.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// DatabaseIterator converts the stored blocks read by an iterator into
// database blocks.
type DatabaseIterator struct {
	iterator Iterator
}

// Next retrieves the next block from storage.
func (di *DatabaseIterator) Next() (Block, error) {
	blockData, err := di.iterator.Next()
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// Done returns the end of chain value.
func (di *DatabaseIterator) Done() bool {
	return di.iterator.Done()
}

// =============================================================================

// Database manages access to the durable storage of the chain.
type Database struct {
	mu      sync.Mutex
	storage Storage
}

// New constructs a new database over the specified storage.
func New(storage Storage) *Database {
	return &Database{
		storage: storage,
	}
}

// Close closes the storage.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.storage.Close()
}

// Reset removes every stored block.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.storage.Reset()
}

// Write adds a new block to the chain.
func (db *Database) Write(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.storage.Write(NewBlockData(block))
}

// WriteChain replaces the stored chain with the specified blocks. The
// genesis block is skipped.
func (db *Database) WriteChain(blocks []Block) error {
	blockData := make([]BlockData, 0, len(blocks))
	for _, block := range blocks {
		if block.Header.Number == 0 {
			continue
		}
		blockData = append(blockData, NewBlockData(block))
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	return db.storage.WriteChain(blockData)
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (db *Database) ForEach() DatabaseIterator {
	return DatabaseIterator{iterator: db.storage.ForEach()}
}

// GetBlock searches the blockchain on disk to locate and return the
// contents of the specified block by number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	blockData, err := db.storage.GetBlock(num)
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}
