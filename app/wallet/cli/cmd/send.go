package cmd

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powledger/app/services/node/handlers/rpcgrp"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	to    string
	value uint64
	fee   uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and send a transaction",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account or account name to send to.")
	sendCmd.Flags().Uint64VarP(&value, "value", "v", 0, "Value to send.")
	sendCmd.Flags().Uint64VarP(&fee, "fee", "f", 0, "Fee recorded with the transaction.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("value")
}

func sendRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	toID, err := resolveAccount(to)
	if err != nil {
		return err
	}

	tx, err := database.NewTx(database.PublicKeyToAccountID(privateKey.PublicKey), toID, value, fee)
	if err != nil {
		return err
	}

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		return err
	}

	var accepted bool
	if err := call(cmd.Context(), &accepted, rpcgrp.MethodAddTransaction, signedTx); err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	if !accepted {
		return errors.New("transaction failed")
	}

	fmt.Println("Transaction created successfully:", signedTx.HashHex())

	return nil
}
