package operation

import (
	"errors"

	"github.com/dgraph-io/badger/v2"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/storage"
)

// InsertTempBlock adds the block to the temporary block buffer. The key
// starts with the height, so iteration yields blocks in height order.
// Saving the same block twice is a no-op.
func InsertTempBlock(block *chain.Block) func(*badger.Txn) error {
	op := insert(makePrefix(codeTempBlock, block.Height(), block.ID()), block)
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return err
	}
}

// RemoveTempBlock removes the block from the temporary block buffer.
// Removing a block that is not buffered is a no-op.
func RemoveTempBlock(block *chain.Block) func(*badger.Txn) error {
	op := remove(makePrefix(codeTempBlock, block.Height(), block.ID()))
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
}

// RetrieveTempBlocks retrieves all buffered blocks in ascending height order.
func RetrieveTempBlocks(blocks *[]*chain.Block) func(*badger.Txn) error {
	*blocks = (*blocks)[:0]
	return traverse(makePrefix(codeTempBlock), false, func() (createFunc, handleFunc) {
		block := &chain.Block{}
		create := func() interface{} {
			return block
		}
		handle := func([]byte) error {
			*blocks = append(*blocks, block)
			return nil
		}
		return create, handle
	})
}

// TruncateTempBlocks removes every block from the temporary block buffer.
func TruncateTempBlocks() func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var keys [][]byte
		err := keysWithPrefix(makePrefix(codeTempBlock), &keys)(tx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			err = tx.Delete(key)
			if err != nil {
				return err
			}
		}
		return nil
	}
}
