// Package genesis maintains access to the genesis file and the protocol
// parameters it carries.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time `json:"date"`
	TransPerBlock uint16    `json:"trans_per_block"` // The maximum number of transactions that can be in a block.
	Difficulty    uint8     `json:"difficulty"`      // How difficult it needs to be to solve the work problem.
	MiningReward  uint64    `json:"mining_reward"`   // Reward for mining a block.
	Fee           uint64    `json:"fee"`             // Fee recorded on transactions built by the wallet.
	MaxBlocks     uint64    `json:"max_blocks"`      // Length of the chain at which mining stops.
	BlockTime     Duration  `json:"block_time"`      // Minimum time between two mined blocks.
}

// Default returns the protocol parameters used when no genesis file is
// provided.
func Default() Genesis {
	return Genesis{
		TransPerBlock: 10,
		Difficulty:    5,
		MiningReward:  100,
		Fee:           10,
		MaxBlocks:     200_000,
		BlockTime:     Duration{10 * time.Second},
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Values missing from the file
// keep their defaults.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	return genesis, nil
}

// Validate checks the parameters can be used to run a chain.
func (g Genesis) Validate() error {
	switch {
	case g.Difficulty > 64:
		return errors.New("difficulty must be between 0 and 64")
	case g.TransPerBlock == 0:
		return errors.New("trans_per_block must be greater than zero")
	case g.MiningReward == 0:
		return errors.New("mining_reward must be greater than zero")
	case g.MaxBlocks == 0:
		return errors.New("max_blocks must be greater than zero")
	case g.BlockTime.Duration <= 0:
		return errors.New("block_time must be greater than zero")
	}

	return nil
}

// =============================================================================

// Duration provides json support for time.Duration values written as
// strings like "10s".
type Duration struct {
	time.Duration
}

// MarshalJSON implements the json.Marshaler interface.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v

	return nil
}
