package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/disk"
)

// Block prints the stored block at the specified height as it sits on disk.
func Block(w io.Writer, cfg Config, number uint64) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	block, err := db.GetBlock(number)
	if err != nil {
		return fmt.Errorf("block[%d]: %w", number, err)
	}

	data, err := json.MarshalIndent(database.NewBlockData(block), "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(w, string(data))

	return nil
}

// Reset removes every stored block so the node starts over from the
// genesis block.
func Reset(w io.Writer, cfg Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Reset(); err != nil {
		return err
	}

	fmt.Fprintf(w, "chain at %s reset\n", cfg.DBPath)

	return nil
}

// openDatabase opens the stored blocks without replaying them.
func openDatabase(cfg Config) (*database.Database, error) {
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("db path: %w", err)
	}

	storage, err := disk.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	return database.New(storage), nil
}
