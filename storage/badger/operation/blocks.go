package operation

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/dposnet/bft-core/model/chain"
)

// InsertBlock stores the block under its ID.
// Expected errors during normal operations:
//   - storage.ErrAlreadyExists if a block with the same ID is stored
func InsertBlock(block *chain.Block) func(*badger.Txn) error {
	return insert(makePrefix(codeBlock, block.ID()), block)
}

// RetrieveBlock retrieves the block with the given ID.
// Expected errors during normal operations:
//   - storage.ErrNotFound if no block with the ID is stored
func RetrieveBlock(blockID chain.Identifier, block *chain.Block) func(*badger.Txn) error {
	return retrieve(makePrefix(codeBlock, blockID), block)
}

// RemoveBlock deletes the block with the given ID.
// Expected errors during normal operations:
//   - storage.ErrNotFound if no block with the ID is stored
func RemoveBlock(blockID chain.Identifier) func(*badger.Txn) error {
	return remove(makePrefix(codeBlock, blockID))
}

// IndexBlockHeight indexes the block ID by height.
// Expected errors during normal operations:
//   - storage.ErrAlreadyExists if the height is already indexed
func IndexBlockHeight(height uint64, blockID chain.Identifier) func(*badger.Txn) error {
	return insert(makePrefix(codeHeightIndex, height), blockID)
}

// LookupBlockHeight retrieves the ID of the block at the given height.
// Expected errors during normal operations:
//   - storage.ErrNotFound if the height is not indexed
func LookupBlockHeight(height uint64, blockID *chain.Identifier) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHeightIndex, height), blockID)
}

// RemoveBlockHeight removes the height index entry.
// Expected errors during normal operations:
//   - storage.ErrNotFound if the height is not indexed
func RemoveBlockHeight(height uint64) func(*badger.Txn) error {
	return remove(makePrefix(codeHeightIndex, height))
}

// FindHighestBlock retrieves the height and ID of the highest indexed block.
// found is set to false if the index is empty.
func FindHighestBlock(height *uint64, blockID *chain.Identifier, found *bool) func(*badger.Txn) error {
	*found = false
	return traverse(makePrefix(codeHeightIndex), true, func() (createFunc, handleFunc) {
		var id chain.Identifier
		create := func() interface{} {
			return &id
		}
		handle := func(key []byte) error {
			h, err := heightFromKey(key)
			if err != nil {
				return err
			}
			*height = h
			*blockID = id
			*found = true
			return errStopIteration
		}
		return create, handle
	})
}

// LookupBlockHeightRange retrieves the IDs of all indexed blocks with heights
// in [from, to], in ascending order.
func LookupBlockHeightRange(from uint64, to uint64, blockIDs *[]chain.Identifier) func(*badger.Txn) error {
	*blockIDs = (*blockIDs)[:0]
	return func(tx *badger.Txn) error {
		for height := from; height <= to; height++ {
			var blockID chain.Identifier
			item, err := tx.Get(makePrefix(codeHeightIndex, height))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("could not look up height %d: %w", height, err)
			}
			err = item.Value(func(val []byte) error {
				return decodeValue(val, &blockID)
			})
			if err != nil {
				return fmt.Errorf("could not decode block ID at height %d: %w", height, err)
			}
			*blockIDs = append(*blockIDs, blockID)
			if height == to {
				break
			}
		}
		return nil
	}
}

func heightFromKey(key []byte) (uint64, error) {
	if len(key) < 9 {
		return 0, fmt.Errorf("key too short for height index: %x", key)
	}
	return binary.BigEndian.Uint64(key[1:9]), nil
}
