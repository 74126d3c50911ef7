package disk_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/disk"
)

func blockData(num uint64) database.BlockData {
	return database.BlockData{
		Hash:   "hash",
		Header: database.BlockHeader{Number: num, PrevBlockHash: "prev"},
		Trans: []database.Tx{
			{FromID: database.GenesisID, ToID: "miner", Value: 100, TimeStamp: int64(num)},
		},
	}
}

func readAll(t *testing.T, d *disk.Disk) []database.BlockData {
	t.Helper()

	var blocks []database.BlockData

	iter := d.ForEach()
	for bd, err := iter.Next(); !iter.Done(); bd, err = iter.Next() {
		if err != nil {
			t.Fatalf("Should be able to read the next block: %s", err)
		}
		blocks = append(blocks, bd)
	}

	return blocks
}

func Test_WriteRead(t *testing.T) {
	root := t.TempDir()

	d, err := disk.New(root)
	if err != nil {
		t.Fatalf("Should be able to open storage: %s", err)
	}

	// Written out of order and past ten so a lexical sort would fail.
	for _, num := range []uint64{2, 1, 3, 4, 5, 6, 7, 8, 9, 10, 11} {
		if err := d.Write(blockData(num)); err != nil {
			t.Fatalf("Should be able to write block %d: %s", num, err)
		}
	}

	if _, err := os.Stat(filepath.Join(root, "blocks", "11.json")); err != nil {
		t.Fatalf("Should have a file named by height: %s", err)
	}

	blocks := readAll(t, d)
	if len(blocks) != 11 {
		t.Fatalf("Should read back 11 blocks, got %d.", len(blocks))
	}

	for i, bd := range blocks {
		if bd.Header.Number != uint64(i+1) {
			t.Fatalf("Should read blocks in height order, got %d at %d.", bd.Header.Number, i)
		}
	}

	bd, err := d.GetBlock(7)
	if err != nil {
		t.Fatalf("Should be able to get block 7: %s", err)
	}

	if bd.Header.Number != 7 || bd.Trans[0].TimeStamp != 7 {
		t.Fatalf("Should get back block 7, got %+v", bd)
	}

	if _, err := d.GetBlock(12); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Should not find block 12, got %v.", err)
	}
}

func Test_Overwrite(t *testing.T) {
	d, err := disk.New(t.TempDir())
	if err != nil {
		t.Fatalf("Should be able to open storage: %s", err)
	}

	big := blockData(1)
	for range 20 {
		big.Trans = append(big.Trans, big.Trans[0])
	}

	if err := d.Write(big); err != nil {
		t.Fatalf("Should be able to write the block: %s", err)
	}

	if err := d.Write(blockData(1)); err != nil {
		t.Fatalf("Should be able to write the block again: %s", err)
	}

	bd, err := d.GetBlock(1)
	if err != nil {
		t.Fatalf("Should be able to read a smaller block over a larger one: %s", err)
	}

	if len(bd.Trans) != 1 {
		t.Fatalf("Should get the last written block, got %d trans.", len(bd.Trans))
	}
}

func Test_WriteChain(t *testing.T) {
	root := t.TempDir()

	d, err := disk.New(root)
	if err != nil {
		t.Fatalf("Should be able to open storage: %s", err)
	}

	for num := uint64(1); num <= 5; num++ {
		if err := d.Write(blockData(num)); err != nil {
			t.Fatalf("Should be able to write block %d: %s", num, err)
		}
	}

	chain := []database.BlockData{blockData(1), blockData(2), blockData(3)}
	chain[2].Hash = "replaced"

	if err := d.WriteChain(chain); err != nil {
		t.Fatalf("Should be able to write the chain: %s", err)
	}

	blocks := readAll(t, d)
	if len(blocks) != 3 || blocks[2].Hash != "replaced" {
		t.Fatalf("Should only have the replacement chain on disk, got %d blocks.", len(blocks))
	}

	data, err := os.ReadFile(filepath.Join(root, "chain", "chain.json"))
	if err != nil {
		t.Fatalf("Should have written the chain snapshot: %s", err)
	}

	var snapshot []database.BlockData
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("Should be able to decode the snapshot: %s", err)
	}

	if len(snapshot) != 3 {
		t.Fatalf("Should have 3 blocks in the snapshot, got %d.", len(snapshot))
	}

	for _, dir := range []string{"blocks", "chain"} {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		if err != nil {
			t.Fatalf("Should be able to read the %s directory: %s", dir, err)
		}

		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), ".tmp") {
				t.Fatalf("Should not leave temp files behind, found %s/%s.", dir, entry.Name())
			}
		}
	}

	info, err := os.Stat(filepath.Join(root, "blocks", "3.json"))
	if err != nil || info.Mode().Perm() != 0600 {
		t.Fatalf("Should write block files readable by the owner only: %v", err)
	}

	if err := d.Reset(); err != nil {
		t.Fatalf("Should be able to reset the storage: %s", err)
	}

	if blocks := readAll(t, d); len(blocks) != 0 {
		t.Fatalf("Should have no blocks after a reset, got %d.", len(blocks))
	}
}

func Test_Reopen(t *testing.T) {
	root := t.TempDir()

	d, err := disk.New(root)
	if err != nil {
		t.Fatalf("Should be able to open storage: %s", err)
	}

	if err := d.Write(blockData(1)); err != nil {
		t.Fatalf("Should be able to write the block: %s", err)
	}

	if err := os.WriteFile(filepath.Join(root, "blocks", "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatalf("Should be able to write a stray file: %s", err)
	}

	d2, err := disk.New(root)
	if err != nil {
		t.Fatalf("Should be able to reopen storage: %s", err)
	}

	if blocks := readAll(t, d2); len(blocks) != 1 {
		t.Fatalf("Should read the block back after reopening, got %d.", len(blocks))
	}
}
