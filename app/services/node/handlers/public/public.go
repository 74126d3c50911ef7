// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/powledger/business/sys/validate"
	"github.com/ardanlabs/powledger/business/web/errs"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ardanlabs/powledger/foundation/web"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// The kind query parameter can be repeated to limit the stream to
	// those kinds of events.
	ch := h.Evts.Acquire(v.TraceID, r.URL.Query()["kind"]...)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(ev); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction adds a signed wallet transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var stx submitTx
	if err := web.Decode(r, &stx); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(stx); err != nil {
		return err
	}

	tx := toDBTx(stx)

	h.Log.Infow("submit tran", "traceid", v.TraceID, "tx", tx, "value", tx.Value, "fee", tx.Fee)
	if err := h.State.SubmitTransaction(tx); err != nil {
		return submitError(err)
	}

	resp := struct {
		Status string `json:"status"`
		Hash   string `json:"hash"`
	}{
		Status: "transaction added to mempool",
		Hash:   tx.HashHex(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SignalMining asks the node to mine a block now.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Log.Infow("signal mining", "traceid", web.GetTraceID(ctx))
	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signalled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions, optionally only the
// ones sent or received by an account.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	acct := database.AccountID(web.Param(r, "account"))

	mempool := h.State.RetrieveMempool()

	trans := make([]tx, 0, len(mempool))
	for _, tran := range mempool {
		if acct != "" && acct != tran.FromID && acct != tran.ToID {
			continue
		}

		trans = append(trans, h.toTx(tran))
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Accounts returns the current balances for all accounts or the one that
// is specified. An account that never received value has a balance of 0.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID := database.AccountID(web.Param(r, "account"))

	var acts []account
	switch accountID {
	case "":
		for _, info := range h.State.RetrieveAccounts() {
			acts = append(acts, account{
				Account: info.AccountID,
				Name:    h.NS.Lookup(info.AccountID),
				Balance: info.Balance,
			})
		}

	default:
		if !accountID.IsAccountID() {
			return errs.NewTrusted(database.ErrInvalidAccount, http.StatusBadRequest)
		}

		acts = append(acts, account{
			Account: accountID,
			Name:    h.NS.Lookup(accountID),
			Balance: h.State.Balance(accountID),
		})
	}

	ai := accounts{
		LatestBlock: h.State.RetrieveLatestBlock().Hash(),
		Uncommitted: h.State.QueryMempoolLength(),
		Accounts:    acts,
	}

	return web.Respond(ctx, w, ai, http.StatusOK)
}

// BlocksByAccount returns all the blocks and their details, optionally only
// the ones with a transaction for the account. Every transaction carries
// its merkle proof.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID := database.AccountID(web.Param(r, "account"))
	if accountID != "" && !accountID.IsAccountID() {
		return errs.NewTrusted(database.ErrInvalidAccount, http.StatusBadRequest)
	}

	dbBlocks := h.State.QueryBlocksByAccount(accountID)
	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(dbBlocks))
	for j, blk := range dbBlocks {
		values := blk.Transactions()

		trans := make([]tx, len(values))
		for i, tran := range values {
			trans[i] = h.toTx(tran)

			proof, order, err := blk.Trans.Proof(tran)
			if err != nil {
				return fmt.Errorf("block[%d]: proof: %w", blk.Header.Number, err)
			}

			trans[i].Proof = make([]string, len(proof))
			for k, p := range proof {
				trans[i].Proof[k] = hexutil.Encode(p)
			}
			trans[i].ProofIdx = order
		}

		blocks[j] = block{
			Number:        blk.Header.Number,
			PrevBlockHash: blk.Header.PrevBlockHash,
			TimeStamp:     blk.Header.TimeStamp,
			MinerID:       blk.Header.MinerID,
			MinerName:     h.NS.Lookup(blk.Header.MinerID),
			Difficulty:    blk.Header.Difficulty,
			Nonce:         blk.Header.Nonce,
			TransRoot:     blk.Header.TransRoot,
			Hash:          blk.Hash(),
			Transactions:  trans,
		}
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// =============================================================================

func (h Handlers) toTx(tran database.Tx) tx {
	return tx{
		Hash:      tran.HashHex(),
		FromID:    tran.FromID,
		FromName:  h.NS.Lookup(tran.FromID),
		ToID:      tran.ToID,
		ToName:    h.NS.Lookup(tran.ToID),
		Value:     tran.Value,
		Fee:       tran.Fee,
		TimeStamp: tran.TimeStamp,
		Sig:       tran.Sig,
	}
}

// submitError maps the errors a rejected transaction produces to the
// status the client receives.
func submitError(err error) error {
	switch {
	case errors.Is(err, mempool.ErrDuplicate):
		return errs.NewTrusted(err, http.StatusConflict)

	case errors.Is(err, state.ErrInvalidAmount),
		errors.Is(err, state.ErrReservedSender),
		errors.Is(err, state.ErrInvalidTransaction),
		errors.Is(err, state.ErrInsufficientFunds):
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return err
}
