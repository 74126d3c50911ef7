// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/metrics"
)

// DefaultPeerTimeout is used when the configuration doesn't provide a
// timeout for peer requests.
const DefaultPeerTimeout = 5 * time.Second

// Set of error variables for chain processing.
var (
	ErrCorruptChain       = errors.New("stored chain is corrupt")
	ErrGenesisMismatch    = errors.New("chain does not start with the genesis block")
	ErrChainFull          = errors.New("chain has reached the maximum number of blocks")
	ErrStaleBlock         = errors.New("chain tip changed while mining")
	ErrInvalidAmount      = errors.New("transaction amount must be greater than zero")
	ErrReservedSender     = errors.New("sender is reserved for protocol rewards")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInsufficientFunds  = accounts.ErrInsufficientFunds
)

// ChainError reports the height of the first block in a chain that failed
// validation.
type ChainError struct {
	Height uint64
	Err    error
}

// Error implements the error interface.
func (ce *ChainError) Error() string {
	return fmt.Sprintf("block[%d]: %s", ce.Height, ce.Err)
}

// Unwrap provides access to the validation error.
func (ce *ChainError) Unwrap() error {
	return ce.Err
}

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and peer synchronization.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
	SignalSync()
}

// PeerClient interface represents the behavior required to talk to the
// known peers of the node.
type PeerClient interface {
	SendBlock(ctx context.Context, pr peer.Peer, blockData database.BlockData) error
	RequestChain(ctx context.Context, pr peer.Peer) ([]database.BlockData, error)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerKey    *ecdsa.PrivateKey
	Host        string
	Storage     database.Storage
	Genesis     genesis.Genesis
	KnownPeers  *peer.PeerSet
	PeerClient  PeerClient
	PeerTimeout time.Duration
	EvHandler   EventHandler
}

// State manages the blockchain database.
type State struct {
	mu sync.RWMutex

	minerKey    *ecdsa.PrivateKey
	minerID     database.AccountID
	host        string
	evHandler   EventHandler
	genesis     genesis.Genesis
	knownPeers  *peer.PeerSet
	peerClient  PeerClient
	peerTimeout time.Duration

	chain    []database.Block
	txIndex  map[string]struct{}
	mempool  *mempool.Mempool
	inflight map[string]database.Tx
	db       *database.Database
	accounts *accounts.Accounts
	metrics  metrics.Chain

	Worker Worker
}

// New constructs a new blockchain for data management. The blocks found in
// storage are replayed on top of the genesis block and every one of them
// must be valid.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	if cfg.MinerKey == nil {
		return nil, errors.New("miner key is required")
	}

	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	peerTimeout := cfg.PeerTimeout
	if peerTimeout <= 0 {
		peerTimeout = DefaultPeerTimeout
	}

	state := State{
		minerKey:    cfg.MinerKey,
		minerID:     database.PublicKeyToAccountID(cfg.MinerKey.PublicKey),
		host:        cfg.Host,
		evHandler:   ev,
		genesis:     cfg.Genesis,
		knownPeers:  knownPeers,
		peerClient:  cfg.PeerClient,
		peerTimeout: peerTimeout,

		mempool:  mempool.New(),
		inflight: make(map[string]database.Tx),
		db:       database.New(cfg.Storage),
		accounts: accounts.New(),

		// The worker.Run call will replace this and start everything up
		// and running for the node.
		Worker: idleWorker{},
	}

	if err := state.replay(); err != nil {
		return nil, err
	}

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: Shutdown: started")
	defer s.evHandler("state: Shutdown: completed")

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	return s.db.Close()
}

// replay loads the stored blocks and rebuilds the chain, the account
// ledger and the transaction index from them.
func (s *State) replay() error {
	s.evHandler("state: replay: started")

	blocks := []database.Block{database.GenesisBlock()}

	iter := s.db.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptChain, &ChainError{Height: uint64(len(blocks)), Err: err})
		}
		blocks = append(blocks, block)
	}

	ledger, txIndex, err := s.validateChain(blocks)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptChain, err)
	}

	s.chain = blocks
	s.txIndex = txIndex
	s.accounts.Replace(ledger)

	s.metrics.ObserveHeight(s.chain[len(s.chain)-1].Header.Number)
	s.evHandler("state: replay: completed: blocks[%d]", len(blocks)-1)

	return nil
}

// =============================================================================

// idleWorker is in place until a worker registers itself with the state.
type idleWorker struct{}

func (idleWorker) Shutdown()           {}
func (idleWorker) SignalStartMining()  {}
func (idleWorker) SignalCancelMining() {}
func (idleWorker) SignalSync()         {}
