package database_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
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

var gen = genesis.Genesis{
	Difficulty:    1,
	MiningReward:  100,
	TransPerBlock: 10,
}

func key(t *testing.T, hexKey string) (*ecdsa.PrivateKey, database.AccountID) {
	t.Helper()

	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %s", err)
	}

	return pk, database.PublicKeyToAccountID(pk.PublicKey)
}

func mine(t *testing.T, prev database.Block, minerPK *ecdsa.PrivateKey, trans []database.Tx) database.Block {
	t.Helper()

	args := database.POWArgs{
		MinerID:    database.PublicKeyToAccountID(minerPK.PublicKey),
		Difficulty: gen.Difficulty,
		PrevBlock:  prev,
		Trans:      trans,
	}

	b, err := database.POW(context.Background(), args)
	if err != nil {
		t.Fatalf("Should be able to mine the block: %s", err)
	}

	b, err = b.Sign(minerPK)
	if err != nil {
		t.Fatalf("Should be able to sign the block: %s", err)
	}

	return b
}

// =============================================================================

func Test_AccountID(t *testing.T) {
	_, id := key(t, minerHexKey)

	type table struct {
		name  string
		hex   string
		valid bool
	}

	tt := []table{
		{name: "key", hex: string(id), valid: true},
		{name: "uppercase", hex: strings.ToUpper(string(id))},
		{name: "mixed", hex: "04" + strings.Repeat("Ab", 64)},
		{name: "prefix", hex: "05" + string(id[2:])},
		{name: "short", hex: string(id[:128])},
		{name: "genesis", hex: string(database.GenesisID)},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			accountID, err := database.ToAccountID(tst.hex)

			switch {
			case tst.valid && (err != nil || accountID != id):
				t.Fatalf("\t%s\tTest %s:\tShould accept the account: %v", failed, tst.name, err)
			case !tst.valid && !errors.Is(err, database.ErrInvalidAccount):
				t.Fatalf("\t%s\tTest %s:\tShould reject the account: %v", failed, tst.name, err)
			}
			t.Logf("\t%s\tTest %s:\tShould get the expected result.", success, tst.name)
		}

		t.Run(tst.name, f)
	}
}

func Test_Transaction(t *testing.T) {
	userPK, userID := key(t, userHexKey)
	_, minerID := key(t, minerHexKey)

	tx, err := database.NewTx(userID, minerID, 10, 1)
	if err != nil {
		t.Fatalf("Should be able to create a transaction: %s", err)
	}

	if err := tx.Verify(); !errors.Is(err, database.ErrMissingSignature) {
		t.Fatalf("Should not verify an unsigned transaction, got %v.", err)
	}

	signed, err := tx.Sign(userPK)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	if err := signed.Verify(); err != nil {
		t.Fatalf("Should be able to verify the transaction: %s", err)
	}

	if signed.HashHex() != tx.HashHex() {
		t.Fatalf("Should not change the hash by signing.")
	}

	type table struct {
		name   string
		change func(tx database.Tx) database.Tx
	}

	tt := []table{
		{name: "from", change: func(tx database.Tx) database.Tx { tx.FromID = minerID; return tx }},
		{name: "to", change: func(tx database.Tx) database.Tx { tx.ToID = userID; return tx }},
		{name: "value", change: func(tx database.Tx) database.Tx { tx.Value++; return tx }},
		{name: "fee", change: func(tx database.Tx) database.Tx { tx.Fee++; return tx }},
		{name: "timestamp", change: func(tx database.Tx) database.Tx { tx.TimeStamp++; return tx }},
	}

	t.Log("Given the need to detect a changed transaction.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen changing the %s field.", testID, tst.name)
			{
				f := func(t *testing.T) {
					if err := tst.change(signed).Verify(); err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould fail verification.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould fail verification.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_TransactionRules(t *testing.T) {
	userPK, userID := key(t, userHexKey)
	minerPK, minerID := key(t, minerHexKey)

	if _, err := database.NewTx(userID, minerID, 0, 1); !errors.Is(err, database.ErrZeroValue) {
		t.Fatalf("Should not create a transaction with zero value, got %v.", err)
	}

	if _, err := database.NewTx(database.GenesisID, minerID, 1, 1); !errors.Is(err, database.ErrInvalidAccount) {
		t.Fatalf("Should not create a transaction from Genesis, got %v.", err)
	}

	tx, err := database.NewTx(userID, minerID, 10, 1)
	if err != nil {
		t.Fatalf("Should be able to create a transaction: %s", err)
	}

	if _, err := tx.Sign(minerPK); err == nil {
		t.Fatalf("Should not sign with a key that doesn't own the from account.")
	}

	reward := database.NewRewardTx(minerID, 100, 1)
	if err := reward.Verify(); err != nil {
		t.Fatalf("Should always verify a reward transaction: %s", err)
	}

	if _, err := reward.Sign(userPK); err == nil {
		t.Fatalf("Should not sign a reward transaction.")
	}
}

func Test_Genesis(t *testing.T) {
	g := database.GenesisBlock()

	if g.Header.Number != 0 || g.Header.PrevBlockHash != "0" || g.Header.MinerID != database.GenesisID {
		t.Fatalf("Should have the fixed genesis header, got %+v", g.Header)
	}

	if g.Header.Nonce != 0 || g.Header.TimeStamp != 0 || len(g.Transactions()) != 0 {
		t.Fatalf("Should have no proof, time or transactions, got %+v", g.Header)
	}

	if g.Hash() != g.CalculateHash() || len(g.Hash()) != 64 {
		t.Fatalf("Should have a recomputable hash, got %s", g.Hash())
	}

	if !g.IsGenesis() || g.Hash() != database.GenesisBlock().Hash() {
		t.Fatalf("Should be deterministic.")
	}
}

func Test_ValidateBlock(t *testing.T) {
	minerPK, minerID := key(t, minerHexKey)
	userPK, userID := key(t, userHexKey)

	genesisBlock := database.GenesisBlock()
	reward := database.NewRewardTx(minerID, gen.MiningReward, 1)

	block1 := mine(t, genesisBlock, minerPK, []database.Tx{reward})
	if err := block1.ValidateBlock(genesisBlock, gen, nil); err != nil {
		t.Fatalf("Should be able to validate the first block: %s", err)
	}

	tx, err := database.NewTx(minerID, userID, 10, 1)
	if err != nil {
		t.Fatalf("Should be able to create a transaction: %s", err)
	}

	tx, err = tx.Sign(minerPK)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	block2 := mine(t, block1, minerPK, []database.Tx{tx, database.NewRewardTx(minerID, gen.MiningReward, 2)})
	if err := block2.ValidateBlock(block1, gen, nil); err != nil {
		t.Fatalf("Should be able to validate the second block: %s", err)
	}

	type table struct {
		name  string
		block func() database.Block
		prev  database.Block
		err   error
	}

	tamper := func(change func(bd *database.BlockData)) func() database.Block {
		return func() database.Block {
			bd := database.NewBlockData(block2)
			change(&bd)

			b, err := database.ToBlock(bd)
			if err != nil {
				t.Fatalf("Should be able to convert the block: %s", err)
			}
			return b
		}
	}

	unsigned := tx
	unsigned.Sig = ""

	tt := []table{
		{
			name:  "wrongparent",
			block: func() database.Block { return block2 },
			prev:  genesisBlock,
			err:   database.ErrNotNextBlock,
		},
		{
			name:  "prevhash",
			block: tamper(func(bd *database.BlockData) { bd.Header.PrevBlockHash = signature.ZeroHash }),
			prev:  block1,
			err:   database.ErrNotNextBlock,
		},
		{
			name:  "number",
			block: tamper(func(bd *database.BlockData) { bd.Header.Number = 3 }),
			prev:  block1,
			err:   database.ErrNotNextBlock,
		},
		{
			name:  "difficulty",
			block: tamper(func(bd *database.BlockData) { bd.Header.Difficulty = 0 }),
			prev:  block1,
			err:   database.ErrInvalidBlock,
		},
		{
			name:  "hash",
			block: tamper(func(bd *database.BlockData) { bd.Hash = signature.ZeroHash }),
			prev:  block1,
			err:   database.ErrInvalidBlock,
		},
		{
			name:  "timestamp",
			block: tamper(func(bd *database.BlockData) { bd.Header.TimeStamp++ }),
			prev:  block1,
			err:   database.ErrInvalidBlock,
		},
		{
			name:  "trans",
			block: tamper(func(bd *database.BlockData) { bd.Trans[0].Value = 11 }),
			prev:  block1,
			err:   database.ErrInvalidBlock,
		},
		{
			name:  "signature",
			block: tamper(func(bd *database.BlockData) { bd.Signature = block1.Signature() }),
			prev:  block1,
			err:   database.ErrBadSignature,
		},
		{
			name: "unsignedtx",
			block: func() database.Block {
				return mine(t, block1, minerPK, []database.Tx{unsigned, database.NewRewardTx(minerID, gen.MiningReward, 2)})
			},
			prev: block1,
			err:  database.ErrBadTransaction,
		},
		{
			name: "rewardvalue",
			block: func() database.Block {
				return mine(t, block1, minerPK, []database.Tx{database.NewRewardTx(minerID, gen.MiningReward+1, 2)})
			},
			prev: block1,
			err:  database.ErrBadTransaction,
		},
		{
			name: "rewardtwice",
			block: func() database.Block {
				return mine(t, block1, minerPK, []database.Tx{reward, database.NewRewardTx(minerID, gen.MiningReward, 2)})
			},
			prev: block1,
			err:  database.ErrBadTransaction,
		},
		{
			name: "rewardother",
			block: func() database.Block {
				return mine(t, block1, minerPK, []database.Tx{database.NewRewardTx(userID, gen.MiningReward, 2)})
			},
			prev: block1,
			err:  database.ErrBadTransaction,
		},
		{
			name: "othersigner",
			block: func() database.Block {
				b := mine(t, block1, minerPK, []database.Tx{reward})
				bd := database.NewBlockData(b)
				bd.Signature, _ = signature.Sign(b.Hash(), userPK)
				b, _ = database.ToBlock(bd)
				return b
			},
			prev: block1,
			err:  database.ErrBadSignature,
		},
	}

	t.Log("Given the need to reject invalid blocks.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s block.", testID, tst.name)
			{
				f := func(t *testing.T) {
					err := tst.block().ValidateBlock(tst.prev, gen, nil)
					if !errors.Is(err, tst.err) {
						t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
						t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.err)
						t.Fatalf("\t%s\tTest %d:\tShould reject the block.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the block.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_BlockData(t *testing.T) {
	minerPK, minerID := key(t, minerHexKey)

	genesisBlock := database.GenesisBlock()
	block := mine(t, genesisBlock, minerPK, []database.Tx{database.NewRewardTx(minerID, gen.MiningReward, 1)})

	back, err := database.ToBlock(database.NewBlockData(block))
	if err != nil {
		t.Fatalf("Should be able to convert the block back: %s", err)
	}

	if back.Hash() != block.Hash() || back.CalculateHash() != block.Hash() || back.Signature() != block.Signature() {
		t.Fatalf("Should reproduce the identical hash and signature.")
	}

	if err := back.ValidateBlock(genesisBlock, gen, nil); err != nil {
		t.Fatalf("Should be able to validate the converted block: %s", err)
	}
}
