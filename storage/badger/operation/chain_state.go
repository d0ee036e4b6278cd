package operation

import (
	"github.com/dgraph-io/badger/v2"
)

// UpsertFinalizedHeight persists the finalized height.
func UpsertFinalizedHeight(height uint64) func(*badger.Txn) error {
	return upsert(makePrefix(codeFinalizedHeight), height)
}

// RetrieveFinalizedHeight retrieves the persisted finalized height.
// Expected errors during normal operations:
//   - storage.ErrNotFound if no finalized height was persisted
func RetrieveFinalizedHeight(height *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeFinalizedHeight), height)
}
