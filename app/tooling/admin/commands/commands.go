// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/disk"
	"github.com/ethereum/go-ethereum/crypto"
)

// Config represents where the chain and its genesis file can be found.
type Config struct {
	DBPath      string
	GenesisPath string
}

// LoadGenesis reads the genesis file, falling back to the defaults when
// the file does not exist.
func LoadGenesis(path string) (genesis.Genesis, error) {
	gen, err := genesis.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return genesis.Default(), nil
	case err != nil:
		return genesis.Genesis{}, err
	}

	return gen, nil
}

// open replays the stored chain offline. Nothing is mined, so the miner
// key is a throwaway.
func open(cfg Config) (*state.State, error) {
	gen, err := LoadGenesis(cfg.GenesisPath)
	if err != nil {
		return nil, fmt.Errorf("loading genesis: %w", err)
	}

	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("db path: %w", err)
	}

	storage, err := disk.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		storage.Close()
		return nil, err
	}

	st, err := state.New(state.Config{
		MinerKey: key,
		Storage:  storage,
		Genesis:  gen,
	})
	if err != nil {
		storage.Close()
		return nil, err
	}

	return st, nil
}
