// Package disk implements the ability to read and write blocks to disk
// writing each block to a separate file named by its height.
package disk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// Set of directories and files that make up the layout on disk.
const (
	blocksDir = "blocks"
	chainDir  = "chain"
	chainFile = "chain.json"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// database.Storage interface.
type Disk struct {
	mu     sync.RWMutex
	dbPath string
}

// New constructs a Disk value for use rooted at the specified path.
func New(dbPath string) (*Disk, error) {
	d := Disk{dbPath: dbPath}

	if err := d.mkdirs(); err != nil {
		return nil, err
	}

	return &d, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each new block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified database block and stores it on disk in a
// file labeled with the block number.
func (d *Disk) Write(blockData database.BlockData) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.write(blockData)
}

// WriteChain replaces every block on disk with the specified blocks and
// writes a snapshot of the whole chain.
func (d *Disk) WriteChain(blocks []database.BlockData) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	heights, err := d.heights()
	if err != nil {
		return err
	}

	keep := make(map[uint64]bool, len(blocks))
	for _, blockData := range blocks {
		if err := d.write(blockData); err != nil {
			return err
		}
		keep[blockData.Header.Number] = true
	}

	// Blocks from the replaced chain past the end of the new chain.
	for _, height := range heights {
		if keep[height] {
			continue
		}

		if err := os.Remove(d.blockPath(height)); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(blocks, "", "  ")
	if err != nil {
		return err
	}

	return writeFile(filepath.Join(d.dbPath, chainDir, chainFile), data)
}

// GetBlock searches the blockchain on disk to locate and return the
// contents of the specified block by number.
func (d *Disk) GetBlock(num uint64) (database.BlockData, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.read(num)
}

// ForEach returns an iterator to walk through all the blocks on disk in
// ascending order of height.
func (d *Disk) ForEach() database.Iterator {
	d.mu.RLock()
	defer d.mu.RUnlock()

	heights, err := d.heights()

	return &diskIterator{
		disk:    d,
		heights: heights,
		err:     err,
	}
}

// Reset will clear out the blockchain on disk.
func (d *Disk) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(d.dbPath, blocksDir)); err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Join(d.dbPath, chainDir)); err != nil {
		return err
	}

	return d.mkdirs()
}

// =============================================================================

func (d *Disk) mkdirs() error {
	for _, dir := range []string{blocksDir, chainDir} {
		if err := os.MkdirAll(filepath.Join(d.dbPath, dir), 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *Disk) write(blockData database.BlockData) error {

	// Marshal the block for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(blockData, "", "  ")
	if err != nil {
		return err
	}

	return writeFile(d.blockPath(blockData.Header.Number), data)
}

func (d *Disk) read(num uint64) (database.BlockData, error) {
	f, err := os.Open(d.blockPath(num))
	if err != nil {
		return database.BlockData{}, err
	}
	defer f.Close()

	var blockData database.BlockData
	if err := json.NewDecoder(f).Decode(&blockData); err != nil {
		return database.BlockData{}, fmt.Errorf("block %d: %w", num, err)
	}

	return blockData, nil
}

// heights returns the heights of the block files on disk in ascending
// order. Files not named after a height are ignored.
func (d *Disk) heights() ([]uint64, error) {
	entries, err := os.ReadDir(filepath.Join(d.dbPath, blocksDir))
	if err != nil {
		return nil, err
	}

	var heights []uint64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		height, err := strconv.ParseUint(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		heights = append(heights, height)
	}

	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	return heights, nil
}

// writeFile writes the data to a temp file next to the path and renames it
// into place, so a reader never sees a partially written file.
func writeFile(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

// blockPath forms the path to the specified block.
func (d *Disk) blockPath(blockNum uint64) string {
	name := strconv.FormatUint(blockNum, 10)
	return filepath.Join(d.dbPath, blocksDir, name+".json")
}

// =============================================================================

// diskIterator represents the iteration implementation for walking
// through and reading blocks on disk. This implements the database
// Iterator interface.
type diskIterator struct {
	disk    *Disk    // Access to the storage API.
	heights []uint64 // Heights found on disk when the iterator was created.
	current int      // Index of the next height to read.
	err     error    // Error reading the directory.
	eoc     bool     // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from disk.
func (di *diskIterator) Next() (database.BlockData, error) {
	if di.err != nil {
		err := di.err
		di.err = nil
		return database.BlockData{}, err
	}

	if di.eoc || di.current >= len(di.heights) {
		di.eoc = true
		return database.BlockData{}, database.ErrEndOfChain
	}

	height := di.heights[di.current]
	di.current++

	return di.disk.GetBlock(height)
}

// Done returns the end of chain value.
func (di *diskIterator) Done() bool {
	return di.eoc
}
