package cmd

import (
	"fmt"

	"github.com/ardanlabs/powledger/app/services/node/handlers/rpcgrp"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the chain held by the node",
	RunE:  chainRun,
}

func init() {
	rootCmd.AddCommand(chainCmd)
}

func chainRun(cmd *cobra.Command, args []string) error {
	var chain []database.BlockData
	if err := call(cmd.Context(), &chain, rpcgrp.MethodGetChain); err != nil {
		return err
	}

	for _, blockData := range chain {
		fmt.Printf("Block: %d  Hash: %s  Prev: %s  Txs: %d\n",
			blockData.Header.Number, blockData.Hash, blockData.Header.PrevBlockHash, len(blockData.Trans))
	}

	return nil
}
