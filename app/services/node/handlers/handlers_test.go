package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/app/services/node/handlers"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
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

type node struct {
	state   *state.State
	public  http.Handler
	private http.Handler
	debug   http.Handler
	evts    *events.Events
	minerID database.AccountID
	userID  database.AccountID
}

func newNode(t *testing.T) node {
	t.Helper()

	minerKey, err := crypto.HexToECDSA(minerHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the miner key: %s", err)
	}

	userKey, err := crypto.HexToECDSA(userHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the user key: %s", err)
	}

	st, err := state.New(state.Config{
		MinerKey: minerKey,
		Host:     "localhost:9080",
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
	t.Cleanup(func() { st.Shutdown() })

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("Should be able to construct the name service: %s", err)
	}

	evts := events.New()
	t.Cleanup(evts.Shutdown)

	log := zap.NewNop().Sugar()
	cfg := handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		State:    st,
		NS:       ns,
		Evts:     evts,
	}

	return node{
		state:   st,
		public:  handlers.PublicMux(cfg),
		private: handlers.PrivateMux(cfg),
		debug:   handlers.DebugMux("test", log, st),
		evts:    evts,
		minerID: database.PublicKeyToAccountID(minerKey.PublicKey),
		userID:  database.PublicKeyToAccountID(userKey.PublicKey),
	}
}

func (n node) signedTx(t *testing.T, value uint64) database.Tx {
	t.Helper()

	minerKey, err := crypto.HexToECDSA(minerHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the miner key: %s", err)
	}

	tx, err := database.NewTx(n.minerID, n.userID, value, 0)
	if err != nil {
		t.Fatalf("Should be able to construct the transaction: %s", err)
	}

	signedTx, err := tx.Sign(minerKey)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	return signedTx
}

func do(h http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	return w
}

func Test_SubmitTransaction(t *testing.T) {
	n := newNode(t)

	if _, err := n.state.MineNewBlock(context.Background()); err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	good := n.signedTx(t, 40)
	tooMuch := n.signedTx(t, 1000)
	badSig := n.signedTx(t, 10)
	badSig.Value = 11

	type table struct {
		name   string
		body   any
		status int
	}

	tt := []table{
		{name: "accepted", body: good, status: http.StatusOK},
		{name: "duplicate", body: good, status: http.StatusConflict},
		{name: "insufficient", body: tooMuch, status: http.StatusBadRequest},
		{name: "signature", body: badSig, status: http.StatusBadRequest},
		{name: "missing fields", body: map[string]any{"value": 5}, status: http.StatusBadRequest},
	}

	t.Log("Given the need to submit transactions over the public api.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				w := do(n.public, http.MethodPost, "/v1/tx/submit", tst.body)
				if w.Code != tst.status {
					t.Fatalf("\t%s\tTest %d:\tShould get status %d: got %d: %s", failed, testID, tst.status, w.Code, w.Body.String())
				}
				t.Logf("\t%s\tTest %d:\tShould get status %d.", success, testID, tst.status)
			}

			t.Run(tst.name, f)
		}

		if l := n.state.QueryMempoolLength(); l != 1 {
			t.Fatalf("\t%s\tShould have one transaction in the mempool: got %d", failed, l)
		}
		t.Logf("\t%s\tShould have one transaction in the mempool.", success)
	}
}

func Test_Queries(t *testing.T) {
	n := newNode(t)

	if _, err := n.state.MineNewBlock(context.Background()); err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	t.Log("Given the need to query the node over the public api.")
	{
		w := do(n.public, http.MethodGet, "/v1/accounts/list/"+string(n.minerID), nil)
		var acts struct {
			Accounts []struct {
				Account string `json:"account"`
				Balance uint64 `json:"balance"`
			} `json:"accounts"`
		}
		if err := json.NewDecoder(w.Body).Decode(&acts); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the accounts: %s", failed, err)
		}
		if len(acts.Accounts) != 1 || acts.Accounts[0].Balance != 100 {
			t.Fatalf("\t%s\tShould get the miner balance: %+v", failed, acts)
		}
		t.Logf("\t%s\tShould get the miner balance.", success)

		w = do(n.public, http.MethodGet, "/v1/accounts/list/"+string(n.userID), nil)
		acts.Accounts = nil
		if err := json.NewDecoder(w.Body).Decode(&acts); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the accounts: %s", failed, err)
		}
		if len(acts.Accounts) != 1 || acts.Accounts[0].Balance != 0 {
			t.Fatalf("\t%s\tShould get a zero balance for an unknown account: %+v", failed, acts)
		}
		t.Logf("\t%s\tShould get a zero balance for an unknown account.", success)

		w = do(n.public, http.MethodGet, "/v1/accounts/list/nope", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject a malformed account: got %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould reject a malformed account.", success)

		w = do(n.public, http.MethodGet, "/v1/blocks/list/"+string(n.minerID), nil)
		var blocks []struct {
			Number uint64 `json:"number"`
			Txs    []struct {
				Proof []string `json:"proof"`
			} `json:"txs"`
		}
		if err := json.NewDecoder(w.Body).Decode(&blocks); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the blocks: %s", failed, err)
		}
		if len(blocks) != 1 || blocks[0].Number != 1 || len(blocks[0].Txs) != 1 {
			t.Fatalf("\t%s\tShould get the block paying the miner: %+v", failed, blocks)
		}
		t.Logf("\t%s\tShould get the block paying the miner.", success)

		w = do(n.public, http.MethodGet, "/v1/blocks/list/"+string(n.userID), nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("\t%s\tShould get no content for an account without blocks: got %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould get no content for an account without blocks.", success)

		w = do(n.private, http.MethodGet, "/v1/node/status", nil)
		var status peer.PeerStatus
		if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the status: %s", failed, err)
		}
		if status.LatestBlockNumber != 1 || status.LatestBlockHash != n.state.RetrieveLatestBlock().Hash() {
			t.Fatalf("\t%s\tShould get the tip in the status: %+v", failed, status)
		}
		t.Logf("\t%s\tShould get the tip in the status.", success)

		w = do(n.private, http.MethodGet, "/v1/node/chain", nil)
		var chain []database.BlockData
		if err := json.NewDecoder(w.Body).Decode(&chain); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the chain: %s", failed, err)
		}
		if len(chain) != 2 {
			t.Fatalf("\t%s\tShould get the chain with the genesis block: got %d", failed, len(chain))
		}
		t.Logf("\t%s\tShould get the chain with the genesis block.", success)

		w = do(n.debug, http.MethodGet, "/debug/readiness", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("\t%s\tShould be ready: got %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould be ready.", success)

		w = do(n.debug, http.MethodGet, "/metrics", nil)
		if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("powledger_chain_height")) {
			t.Fatalf("\t%s\tShould expose the chain metrics: got %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould expose the chain metrics.", success)
	}
}

func Test_PeerProtocol(t *testing.T) {
	n := newNode(t)

	if _, err := n.state.MineNewBlock(context.Background()); err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	srv := httptest.NewServer(n.private)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("Should be able to parse the server url: %s", err)
	}

	client := peer.NewClient(2 * time.Second)

	t.Log("Given the need to serve the peer protocol on the private api.")
	{
		chain, err := client.RequestChain(context.Background(), peer.New(u.Host))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to request the chain: %s", failed, err)
		}
		if len(chain) != 2 || chain[1].Hash != n.state.RetrieveLatestBlock().Hash() {
			t.Fatalf("\t%s\tShould get the node chain: got %d blocks", failed, len(chain))
		}
		t.Logf("\t%s\tShould get the node chain.", success)
	}
}

func Test_Events(t *testing.T) {
	n := newNode(t)

	srv := httptest.NewServer(n.public)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events?kind=block"

	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("Should be able to connect to the event stream: %s", err)
	}
	defer c.Close()

	// The subscription is registered after the upgrade completes, so keep
	// sending until the client sees an event.
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				n.evts.Send(events.NewEvent("state: Reconcile: started"))
				n.evts.Send(events.NewEvent(`block: {"hash":"00ab"}`))
			}
		}
	}()

	t.Log("Given the need to stream node events over a websocket.")
	{
		c.SetReadDeadline(time.Now().Add(5 * time.Second))

		var ev events.Event
		if err := c.ReadJSON(&ev); err != nil {
			t.Fatalf("\t%s\tShould receive an event: %s", failed, err)
		}
		t.Logf("\t%s\tShould receive an event.", success)

		if ev.Kind != "block" || ev.Message != `{"hash":"00ab"}` {
			t.Fatalf("\t%s\tShould only receive the requested kind, got %+v.", failed, ev)
		}
		t.Logf("\t%s\tShould only receive the requested kind.", success)
	}
}
