package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/dposnet/bft-core/storage"
	"github.com/dposnet/bft-core/storage/badger/operation"
)

// ChainState persists the consensus state in badger.
type ChainState struct {
	db *badger.DB
}

var _ storage.ChainState = (*ChainState)(nil)

func NewChainState(db *badger.DB) *ChainState {
	return &ChainState{db: db}
}

func (c *ChainState) FinalizedHeight() (uint64, error) {
	var height uint64
	err := c.db.View(operation.RetrieveFinalizedHeight(&height))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("could not retrieve finalized height: %w", err)
	}
	return height, nil
}

func (c *ChainState) SetFinalizedHeight(height uint64) error {
	err := operation.RetryOnConflict(c.db.Update, operation.UpsertFinalizedHeight(height))
	if err != nil {
		return fmt.Errorf("could not persist finalized height %d: %w", height, err)
	}
	return nil
}
