package rpcgrp_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/app/services/node/handlers/rpcgrp"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/powledger/foundation/rpc"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	minerHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	userHexKey  = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
)

func Test_Methods(t *testing.T) {
	minerKey, err := crypto.HexToECDSA(minerHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the miner key: %s", err)
	}
	userKey, err := crypto.HexToECDSA(userHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the user key: %s", err)
	}

	minerID := database.PublicKeyToAccountID(minerKey.PublicKey)
	userID := database.PublicKeyToAccountID(userKey.PublicKey)

	st, err := state.New(state.Config{
		MinerKey: minerKey,
		Storage:  memory.New(),
		Genesis: genesis.Genesis{
			TransPerBlock: 10,
			Difficulty:    1,
			MiningReward:  100,
			MaxBlocks:     100,
			BlockTime:     genesis.Duration{Duration: time.Second},
		},
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %s", err)
	}
	defer st.Shutdown()

	if _, err := st.MineNewBlock(context.Background()); err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	srv := rpc.NewServer(nil)
	rpcgrp.Register(srv, zap.NewNop().Sugar(), st)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Should be able to listen: %s", err)
	}
	go srv.Serve(l)
	defer srv.Shutdown(context.Background())

	client := rpc.NewClient(l.Addr().String(), 2*time.Second)
	ctx := context.Background()

	t.Log("Given the need to use the node over rpc.")
	{
		var balance uint64
		if err := client.Call(ctx, &balance, rpcgrp.MethodGetBalance, minerID); err != nil {
			t.Fatalf("\t%s\tShould be able to get a balance: %s", failed, err)
		}
		if balance != 100 {
			t.Fatalf("\t%s\tShould get the miner balance: got %d, exp 100", failed, balance)
		}
		t.Logf("\t%s\tShould get the miner balance.", success)

		tx, err := database.NewTx(minerID, userID, 30, 0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a transaction: %s", failed, err)
		}
		tx, err = tx.Sign(minerKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %s", failed, err)
		}

		var accepted bool
		if err := client.Call(ctx, &accepted, rpcgrp.MethodAddTransaction, tx); err != nil || !accepted {
			t.Fatalf("\t%s\tShould accept the transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the transaction.", success)

		if err := client.Call(ctx, &accepted, rpcgrp.MethodAddTransaction, tx); err == nil {
			t.Fatalf("\t%s\tShould reject a duplicate transaction.", failed)
		}
		t.Logf("\t%s\tShould reject a duplicate transaction.", success)

		if _, err := st.MineNewBlock(ctx); err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %s", failed, err)
		}

		if err := client.Call(ctx, &balance, rpcgrp.MethodGetBalance, userID); err != nil || balance != 30 {
			t.Fatalf("\t%s\tShould get the user balance: got %d, err %v", failed, balance, err)
		}
		t.Logf("\t%s\tShould get the user balance.", success)

		var chain []database.BlockData
		if err := client.Call(ctx, &chain, rpcgrp.MethodGetChain); err != nil {
			t.Fatalf("\t%s\tShould be able to get the chain: %s", failed, err)
		}
		if len(chain) != 3 || chain[2].Hash != st.RetrieveLatestBlock().Hash() {
			t.Fatalf("\t%s\tShould get the full chain: got %d blocks", failed, len(chain))
		}
		t.Logf("\t%s\tShould get the full chain.", success)
	}
}
