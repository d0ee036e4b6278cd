package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/storage"
	"github.com/dposnet/bft-core/storage/badger/operation"
)

// TempBlocks implements the temporary block buffer on top of badger.
type TempBlocks struct {
	db *badger.DB
}

var _ storage.TempBlocks = (*TempBlocks)(nil)

func NewTempBlocks(db *badger.DB) *TempBlocks {
	return &TempBlocks{db: db}
}

func (t *TempBlocks) Save(block *chain.Block) error {
	err := operation.RetryOnConflict(t.db.Update, operation.InsertTempBlock(block))
	if err != nil {
		return fmt.Errorf("could not save temp block %x: %w", block.ID(), err)
	}
	return nil
}

func (t *TempBlocks) All() ([]*chain.Block, error) {
	var blocks []*chain.Block
	err := t.db.View(operation.RetrieveTempBlocks(&blocks))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve temp blocks: %w", err)
	}
	return blocks, nil
}

func (t *TempBlocks) Remove(block *chain.Block) error {
	err := operation.RetryOnConflict(t.db.Update, operation.RemoveTempBlock(block))
	if err != nil {
		return fmt.Errorf("could not remove temp block %x: %w", block.ID(), err)
	}
	return nil
}

func (t *TempBlocks) Truncate() error {
	err := operation.RetryOnConflict(t.db.Update, operation.TruncateTempBlocks())
	if err != nil {
		return fmt.Errorf("could not truncate temp blocks: %w", err)
	}
	return nil
}
