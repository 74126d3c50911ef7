// Package rpcgrp binds the node operations to the line rpc server.
package rpcgrp

import (
	"context"
	"encoding/json"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/rpc"
	"go.uber.org/zap"
)

// Set of method names the node answers on the rpc server.
const (
	MethodAddTransaction = "addTransaction"
	MethodGetBalance     = "getBalance"
	MethodGetChain       = "getChain"
)

// Handlers manages the set of rpc methods.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Register binds every method to the server.
func Register(srv *rpc.Server, log *zap.SugaredLogger, st *state.State) {
	h := Handlers{
		Log:   log,
		State: st,
	}

	srv.Register(MethodAddTransaction, h.AddTransaction)
	srv.Register(MethodGetBalance, h.GetBalance)
	srv.Register(MethodGetChain, h.GetChain)
}

// AddTransaction submits the signed transaction in the first param. The
// result reports whether the transaction was accepted into the mempool.
func (h Handlers) AddTransaction(ctx context.Context, params []json.RawMessage) (any, error) {
	var tx database.Tx
	if err := rpc.Param(params, 0, &tx); err != nil {
		return false, err
	}

	if err := h.State.SubmitTransaction(tx); err != nil {
		h.Log.Infow("rpc", "method", MethodAddTransaction, "tx", tx, "ERROR", err)
		return false, err
	}

	return true, nil
}

// GetBalance returns the balance of the account in the first param.
func (h Handlers) GetBalance(ctx context.Context, params []json.RawMessage) (any, error) {
	var accountID database.AccountID
	if err := rpc.Param(params, 0, &accountID); err != nil {
		return nil, err
	}

	if !accountID.IsAccountID() {
		return nil, database.ErrInvalidAccount
	}

	return h.State.Balance(accountID), nil
}

// GetChain returns the full chain, genesis block included.
func (h Handlers) GetChain(ctx context.Context, params []json.RawMessage) (any, error) {
	return h.State.ChainData(), nil
}
