package memory_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/memory"
)

func Test_Memory(t *testing.T) {
	m := memory.New()

	for num := uint64(1); num <= 3; num++ {
		if err := m.Write(database.BlockData{Header: database.BlockHeader{Number: num}}); err != nil {
			t.Fatalf("Should be able to write block %d: %s", num, err)
		}
	}

	if err := m.Write(database.BlockData{Header: database.BlockHeader{Number: 5}}); err == nil {
		t.Fatalf("Should not write a block out of order.")
	}

	var count int
	iter := m.ForEach()
	for bd, err := iter.Next(); !iter.Done(); bd, err = iter.Next() {
		if err != nil {
			t.Fatalf("Should be able to read the next block: %s", err)
		}

		count++
		if bd.Header.Number != uint64(count) {
			t.Fatalf("Should read blocks in order, got %d exp %d.", bd.Header.Number, count)
		}
	}

	if count != 3 {
		t.Fatalf("Should read 3 blocks, got %d.", count)
	}

	if err := m.Write(database.BlockData{Hash: "new", Header: database.BlockHeader{Number: 2}}); err != nil {
		t.Fatalf("Should be able to replace block 2: %s", err)
	}

	if _, err := m.GetBlock(3); !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("Should drop the blocks after a replaced block, got %v.", err)
	}

	if err := m.WriteChain([]database.BlockData{{Header: database.BlockHeader{Number: 1}}}); err != nil {
		t.Fatalf("Should be able to write the chain: %s", err)
	}

	if _, err := m.GetBlock(2); !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("Should only have the written chain, got %v.", err)
	}
}
