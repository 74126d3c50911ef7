// Package cmd contains the wallet commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ardanlabs/powledger/foundation/rpc"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	nodeAddr    string
	timeout     time.Duration
)

const keyExtension = ".ecdsa"

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&nodeAddr, "node", "n", "localhost:8000", "Address of the node rpc server.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Time to wait on the node.")
}

var rootCmd = &cobra.Command{
	Use:          "wallet",
	Short:        "Simple wallet for the ledger",
	SilenceUsage: true,
}

// Execute runs the command named on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	name := accountName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(accountPath, name)
}

// resolveAccount accepts either an account id or the name of a key file
// in the account path.
func resolveAccount(nameOrID string) (database.AccountID, error) {
	if accountID, err := database.ToAccountID(nameOrID); err == nil {
		return accountID, nil
	}

	ns, err := nameservice.New(accountPath)
	if err != nil {
		return "", err
	}

	accountID, exists := ns.Account(strings.TrimSuffix(nameOrID, keyExtension))
	if !exists {
		return "", fmt.Errorf("%q is not an account or a known account name", nameOrID)
	}

	return accountID, nil
}

func call(ctx context.Context, result any, method string, params ...any) error {
	client := rpc.NewClient(nodeAddr, timeout)
	return client.Call(ctx, result, method, params...)
}
