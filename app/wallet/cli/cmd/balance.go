package cmd

import (
	"fmt"

	"github.com/ardanlabs/powledger/app/services/node/handlers/rpcgrp"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [account]",
	Short: "Print the balance of your account or the one specified.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	var accountID database.AccountID

	switch len(args) {
	case 0:
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			return err
		}
		accountID = database.PublicKeyToAccountID(privateKey.PublicKey)

	default:
		var err error
		if accountID, err = resolveAccount(args[0]); err != nil {
			return err
		}
	}

	var balance uint64
	if err := call(cmd.Context(), &balance, rpcgrp.MethodGetBalance, accountID); err != nil {
		return err
	}

	fmt.Println("For Account:", accountID)
	fmt.Println(balance)

	return nil
}
