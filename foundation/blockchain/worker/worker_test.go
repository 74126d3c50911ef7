package worker_test

import (
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/powledger/foundation/blockchain/worker"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const minerHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

func newState(t *testing.T, maxBlocks uint64, blockTime time.Duration) *state.State {
	t.Helper()

	pk, err := crypto.HexToECDSA(minerHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %s", err)
	}

	gen := genesis.Genesis{
		TransPerBlock: 10,
		Difficulty:    1,
		MiningReward:  100,
		MaxBlocks:     maxBlocks,
		BlockTime:     genesis.Duration{Duration: blockTime},
	}

	st, err := state.New(state.Config{
		MinerKey: pk,
		Host:     "localhost:9080",
		Storage:  memory.New(),
		Genesis:  gen,
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %s", err)
	}

	return st
}

func waitForHeight(st *state.State, height uint64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if st.RetrieveLatestBlock().Header.Number >= height {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func Test_MiningLoop(t *testing.T) {
	st := newState(t, 100, 20*time.Millisecond)

	w := worker.Run(st, nil)
	defer w.Shutdown()

	if !waitForHeight(st, 2, 5*time.Second) {
		t.Fatalf("\t%s\tShould mine blocks on every block time, height %d.", failed, st.RetrieveLatestBlock().Header.Number)
	}
	t.Logf("\t%s\tShould mine blocks on every block time.", success)
}

func Test_SignalStartMining(t *testing.T) {
	st := newState(t, 100, time.Hour)

	w := worker.Run(st, nil)
	defer w.Shutdown()

	w.SignalStartMining()

	if !waitForHeight(st, 1, 5*time.Second) {
		t.Fatalf("\t%s\tShould mine a block when signaled.", failed)
	}
	t.Logf("\t%s\tShould mine a block when signaled.", success)
}

func Test_ChainFull(t *testing.T) {
	st := newState(t, 3, 10*time.Millisecond)

	w := worker.Run(st, nil)

	if !waitForHeight(st, 2, 5*time.Second) {
		t.Fatalf("\t%s\tShould mine until the chain is full.", failed)
	}

	time.Sleep(100 * time.Millisecond)

	if n := st.RetrieveLatestBlock().Header.Number; n != 2 {
		t.Fatalf("\t%s\tShould stop mining once the chain is full, height %d.", failed, n)
	}
	t.Logf("\t%s\tShould stop mining once the chain is full.", success)

	done := make(chan struct{})
	go func() {
		w.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Logf("\t%s\tShould shutdown after mining stopped.", success)
	case <-time.After(5 * time.Second):
		t.Fatalf("\t%s\tShould shutdown after mining stopped.", failed)
	}
}
