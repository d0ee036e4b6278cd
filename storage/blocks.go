package storage

import (
	"github.com/dposnet/bft-core/model/chain"
)

// Blocks represents persistent storage for the blocks of the local chain.
// The chain is indexed by height; there is at most one block per height.
type Blocks interface {

	// Store appends the block to the chain. If removeFromTemp is set, the
	// block is removed from the temporary block buffer in the same
	// transaction.
	// Expected errors during normal operations:
	//   - storage.ErrAlreadyExists if a block with the same ID or height exists
	Store(block *chain.Block, removeFromTemp bool) error

	// ByID returns the block with the given ID.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no such block exists
	ByID(blockID chain.Identifier) (*chain.Block, error)

	// ByHeight returns the block at the given height.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no such block exists
	ByHeight(height uint64) (*chain.Block, error)

	// ByHeightRange returns the blocks from height `from` to `to`, both
	// included, in ascending order. Heights without a block are skipped.
	ByHeightRange(from uint64, to uint64) ([]*chain.Block, error)

	// Last returns the block with the highest height.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if the chain is empty
	Last() (*chain.Block, error)

	// RemoveByID deletes the block and its height index. If saveTemp is set,
	// the block is moved to the temporary block buffer in the same
	// transaction.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no such block exists
	RemoveByID(blockID chain.Identifier, saveTemp bool) error
}

// TempBlocks represents the temporary block buffer, which holds blocks
// removed from the chain during a chain switch so that they can be restored.
type TempBlocks interface {

	// Save adds the block to the buffer. Saving a block twice is a no-op.
	Save(block *chain.Block) error

	// All returns the buffered blocks in ascending height order.
	All() ([]*chain.Block, error)

	// Remove deletes the block from the buffer. Removing a block that is not
	// buffered is a no-op.
	Remove(block *chain.Block) error

	// Truncate empties the buffer.
	Truncate() error
}

// ChainState persists the consensus state which survives restarts.
type ChainState interface {

	// FinalizedHeight returns the persisted finalized height, zero if none
	// was persisted yet.
	FinalizedHeight() (uint64, error)

	// SetFinalizedHeight persists the finalized height.
	SetFinalizedHeight(height uint64) error
}
