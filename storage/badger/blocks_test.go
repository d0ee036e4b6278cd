package badger_test

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dposnet/bft-core/module/metrics"
	"github.com/dposnet/bft-core/storage"
	bstorage "github.com/dposnet/bft-core/storage/badger"
	"github.com/dposnet/bft-core/utils/unittest"
)

func TestBlocks_StoreAndRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		blocks := bstorage.NewBlocks(metrics.NewNoopCollector(), db)
		builder := unittest.NewChainBuilder(4)

		_, err := blocks.Last()
		require.True(t, errors.Is(err, storage.ErrNotFound))

		for _, block := range builder.Extend(6, func() uint64 { return 0 }) {
			require.NoError(t, blocks.Store(block, false))
		}

		byID, err := blocks.ByID(builder.ByHeight(3).ID())
		require.NoError(t, err)
		assert.Equal(t, builder.ByHeight(3), byID)

		byHeight, err := blocks.ByHeight(5)
		require.NoError(t, err)
		assert.Equal(t, builder.ByHeight(5).ID(), byHeight.ID())

		last, err := blocks.Last()
		require.NoError(t, err)
		assert.Equal(t, uint64(6), last.Height())

		inRange, err := blocks.ByHeightRange(2, 10)
		require.NoError(t, err)
		require.Len(t, inRange, 5)
		for i, block := range inRange {
			assert.Equal(t, uint64(i+2), block.Height())
		}

		empty, err := blocks.ByHeightRange(7, 9)
		require.NoError(t, err)
		assert.Empty(t, empty)

		err = blocks.Store(builder.ByHeight(2), false)
		require.True(t, errors.Is(err, storage.ErrAlreadyExists))

		_, err = blocks.ByID(unittest.IdentifierFixture())
		require.True(t, errors.Is(err, storage.ErrNotFound))
	})
}

// The block and its temp buffer entry are moved in one transaction.
func TestBlocks_RemoveWithBackup(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		blocks := bstorage.NewBlocks(metrics.NewNoopCollector(), db)
		temp := bstorage.NewTempBlocks(db)
		builder := unittest.NewChainBuilder(4)
		for _, block := range builder.Extend(4, func() uint64 { return 0 }) {
			require.NoError(t, blocks.Store(block, false))
		}

		require.NoError(t, blocks.RemoveByID(builder.ByHeight(4).ID(), true))
		require.NoError(t, blocks.RemoveByID(builder.ByHeight(3).ID(), false))

		last, err := blocks.Last()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), last.Height())
		_, err = blocks.ByID(builder.ByHeight(4).ID())
		require.True(t, errors.Is(err, storage.ErrNotFound))
		_, err = blocks.ByHeight(3)
		require.True(t, errors.Is(err, storage.ErrNotFound))

		buffered, err := temp.All()
		require.NoError(t, err)
		require.Len(t, buffered, 1)
		assert.Equal(t, builder.ByHeight(4), buffered[0])

		// storing the block again takes it out of the buffer
		require.NoError(t, blocks.Store(builder.ByHeight(3), false))
		require.NoError(t, blocks.Store(builder.ByHeight(4), true))
		buffered, err = temp.All()
		require.NoError(t, err)
		assert.Empty(t, buffered)

		err = blocks.RemoveByID(unittest.IdentifierFixture(), false)
		require.True(t, errors.Is(err, storage.ErrNotFound))
	})
}

func TestTempBlocks(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		temp := bstorage.NewTempBlocks(db)
		builder := unittest.NewChainBuilder(4)
		chain := builder.Extend(5, func() uint64 { return 0 })

		// saved out of order, returned in height order
		for _, i := range []int{3, 0, 4, 1} {
			require.NoError(t, temp.Save(chain[i]))
		}
		require.NoError(t, temp.Save(chain[0]))

		all, err := temp.All()
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, []uint64{1, 2, 4, 5}, []uint64{all[0].Height(), all[1].Height(), all[2].Height(), all[3].Height()})

		require.NoError(t, temp.Remove(chain[3]))
		require.NoError(t, temp.Remove(chain[2]))
		all, err = temp.All()
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, temp.Truncate())
		all, err = temp.All()
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestChainState(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		state := bstorage.NewChainState(db)

		height, err := state.FinalizedHeight()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), height)

		require.NoError(t, state.SetFinalizedHeight(12))
		require.NoError(t, state.SetFinalizedHeight(15))
		height, err = state.FinalizedHeight()
		require.NoError(t, err)
		assert.Equal(t, uint64(15), height)
	})
}
