// This program performs administrative tasks against the chain stored by
// a node.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ardanlabs/powledger/app/tooling/admin/commands"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	var cfg commands.Config

	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Administrative tasks for a ledger node",
		Version:       build,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DBPath, "db-path", "zblock/miner1/", "Path to the stored chain.")
	rootCmd.PersistentFlags().StringVar(&cfg.GenesisPath, "genesis", "zblock/genesis.json", "Path to the genesis file.")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "verify",
			Short: "Replay and validate the stored chain, then print the balances",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				log.Infow("verify", "dbpath", cfg.DBPath, "genesis", cfg.GenesisPath)
				return commands.Verify(cmd.OutOrStdout(), cfg)
			},
		},
		&cobra.Command{
			Use:   "bals [account]",
			Short: "Print the balances of the stored chain",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return commands.Balances(cmd.OutOrStdout(), cfg, accountArg(args))
			},
		},
		&cobra.Command{
			Use:   "trans [account]",
			Short: "Print the transactions of the stored chain",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return commands.Transactions(cmd.OutOrStdout(), cfg, accountArg(args))
			},
		},
		&cobra.Command{
			Use:   "block <number>",
			Short: "Print a stored block",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				number, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("block number: %w", err)
				}
				return commands.Block(cmd.OutOrStdout(), cfg, number)
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Remove every stored block",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				log.Infow("reset", "dbpath", cfg.DBPath)
				return commands.Reset(cmd.OutOrStdout(), cfg)
			},
		},
		&cobra.Command{
			Use:   "genesis",
			Short: "Write a genesis file with the default parameters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return commands.Genesis(cmd.OutOrStdout(), cfg.GenesisPath)
			},
		},
	)

	return rootCmd.Execute()
}

func accountArg(args []string) database.AccountID {
	if len(args) == 0 {
		return ""
	}
	return database.AccountID(args[0])
}
