package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// Genesis writes a genesis file with the default protocol parameters. An
// existing file is never overwritten.
func Genesis(w io.Writer, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("genesis file %s already exists", path)
	}

	data, err := json.MarshalIndent(genesis.Default(), "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	fmt.Fprintf(w, "genesis written to %s\n", path)

	return nil
}
