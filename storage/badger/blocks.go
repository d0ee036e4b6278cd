package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/module/metrics"
	"github.com/dposnet/bft-core/storage"
	"github.com/dposnet/bft-core/storage/badger/operation"
)

// Blocks implements the block storage of the local chain around a badger DB.
type Blocks struct {
	db    *badger.DB
	cache *Cache[chain.Identifier, *chain.Block]
}

var _ storage.Blocks = (*Blocks)(nil)

func NewBlocks(collector module.CacheMetrics, db *badger.DB) *Blocks {
	retrieve := func(blockID chain.Identifier) func(*badger.Txn) (*chain.Block, error) {
		return func(tx *badger.Txn) (*chain.Block, error) {
			var block chain.Block
			err := operation.RetrieveBlock(blockID, &block)(tx)
			return &block, err
		}
	}

	return &Blocks{
		db: db,
		cache: newCache[chain.Identifier, *chain.Block](collector, metrics.ResourceBlock,
			withLimit[chain.Identifier, *chain.Block](4*1000),
			withRetrieve(retrieve),
		),
	}
}

func (b *Blocks) Store(block *chain.Block, removeFromTemp bool) error {
	err := operation.RetryOnConflict(b.db.Update, func(tx *badger.Txn) error {
		err := operation.InsertBlock(block)(tx)
		if err != nil {
			return fmt.Errorf("could not insert block: %w", err)
		}
		err = operation.IndexBlockHeight(block.Height(), block.ID())(tx)
		if err != nil {
			return fmt.Errorf("could not index block height: %w", err)
		}
		if removeFromTemp {
			err = operation.RemoveTempBlock(block)(tx)
			if err != nil {
				return fmt.Errorf("could not remove block from temp buffer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not store block %x: %w", block.ID(), err)
	}
	b.cache.Insert(block.ID(), block)
	return nil
}

func (b *Blocks) ByID(blockID chain.Identifier) (*chain.Block, error) {
	tx := b.db.NewTransaction(false)
	defer tx.Discard()
	return b.cache.Get(blockID)(tx)
}

func (b *Blocks) ByHeight(height uint64) (*chain.Block, error) {
	tx := b.db.NewTransaction(false)
	defer tx.Discard()

	var blockID chain.Identifier
	err := operation.LookupBlockHeight(height, &blockID)(tx)
	if err != nil {
		return nil, fmt.Errorf("could not look up block at height %d: %w", height, err)
	}
	return b.cache.Get(blockID)(tx)
}

func (b *Blocks) ByHeightRange(from uint64, to uint64) ([]*chain.Block, error) {
	if from > to {
		return nil, nil
	}

	tx := b.db.NewTransaction(false)
	defer tx.Discard()

	// the range is bounded by the highest block to avoid scanning empty heights
	var highest uint64
	var highestID chain.Identifier
	var found bool
	err := operation.FindHighestBlock(&highest, &highestID, &found)(tx)
	if err != nil {
		return nil, fmt.Errorf("could not find highest block: %w", err)
	}
	if !found || from > highest {
		return nil, nil
	}
	if to > highest {
		to = highest
	}

	var blockIDs []chain.Identifier
	err = operation.LookupBlockHeightRange(from, to, &blockIDs)(tx)
	if err != nil {
		return nil, fmt.Errorf("could not look up heights [%d, %d]: %w", from, to, err)
	}

	blocks := make([]*chain.Block, 0, len(blockIDs))
	for _, blockID := range blockIDs {
		block, err := b.cache.Get(blockID)(tx)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve block %x: %w", blockID, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func (b *Blocks) Last() (*chain.Block, error) {
	tx := b.db.NewTransaction(false)
	defer tx.Discard()

	var height uint64
	var blockID chain.Identifier
	var found bool
	err := operation.FindHighestBlock(&height, &blockID, &found)(tx)
	if err != nil {
		return nil, fmt.Errorf("could not find highest block: %w", err)
	}
	if !found {
		return nil, storage.ErrNotFound
	}
	return b.cache.Get(blockID)(tx)
}

func (b *Blocks) RemoveByID(blockID chain.Identifier, saveTemp bool) error {
	err := operation.RetryOnConflict(b.db.Update, func(tx *badger.Txn) error {
		var block chain.Block
		err := operation.RetrieveBlock(blockID, &block)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve block: %w", err)
		}
		err = operation.RemoveBlock(blockID)(tx)
		if err != nil {
			return fmt.Errorf("could not remove block: %w", err)
		}
		err = operation.RemoveBlockHeight(block.Height())(tx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not remove height index: %w", err)
		}
		if saveTemp {
			err = operation.InsertTempBlock(&block)(tx)
			if err != nil {
				return fmt.Errorf("could not save block to temp buffer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not remove block %x: %w", blockID, err)
	}
	b.cache.Remove(blockID)
	return nil
}
