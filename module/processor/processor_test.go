package processor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dposnet/bft-core/consensus"
	"github.com/dposnet/bft-core/consensus/bft/notifications"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/module/metrics"
	"github.com/dposnet/bft-core/module/processor"
	"github.com/dposnet/bft-core/module/slots"
	"github.com/dposnet/bft-core/storage"
	bstorage "github.com/dposnet/bft-core/storage/badger"
	"github.com/dposnet/bft-core/utils/unittest"
)

type harness struct {
	blocks    *bstorage.Blocks
	temp      *bstorage.TempBlocks
	coord     *consensus.Coordinator
	processor *processor.Processor
	builder   *unittest.ChainBuilder
}

func runWithProcessor(t *testing.T, f func(h *harness)) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		h := &harness{
			blocks:  bstorage.NewBlocks(metrics.NewNoopCollector(), db),
			temp:    bstorage.NewTempBlocks(db),
			builder: unittest.NewChainBuilder(4),
		}
		schedule, err := slots.New(unittest.GenesisTime, unittest.BlockTime)
		require.NoError(t, err)

		cfg := consensus.DefaultConfig()
		cfg.ActiveDelegates = 4
		h.coord, err = consensus.NewCoordinator(
			unittest.Logger(),
			cfg,
			h.blocks,
			bstorage.NewChainState(db),
			schedule,
			notifications.NewNoopConsumer(),
			metrics.NewNoopCollector(),
		)
		require.NoError(t, err)
		require.NoError(t, h.coord.Init(context.Background()))

		h.processor = processor.New(unittest.Logger(), h.blocks, h.coord)
		f(h)
	})
}

func (h *harness) apply(t *testing.T, n int) {
	for i := 0; i < n; i++ {
		block := h.builder.Next(h.coord.PrevotedHeight())
		require.NoError(t, h.processor.Validate(context.Background(), block))
		require.NoError(t, h.processor.ProcessValidated(context.Background(), block, module.ProcessOptions{}))
	}
}

func TestProcessor_Validate(t *testing.T) {
	runWithProcessor(t, func(h *harness) {
		ctx := context.Background()

		notFirst := unittest.BlockFixture(2)
		err := h.processor.Validate(ctx, notFirst)
		assert.True(t, processor.IsInvalidBlockError(err))

		h.apply(t, 3)

		tampered := h.builder.Fork(3, "tampered").Next(0)
		tampered.Payload = []byte("tampered")
		err = h.processor.Validate(ctx, tampered)
		assert.True(t, processor.IsInvalidBlockError(err))

		orphan := h.builder.Fork(2, "orphan").Next(0)
		err = h.processor.Validate(ctx, orphan)
		assert.True(t, processor.IsInvalidBlockError(err))

		malformed := h.builder.Fork(3, "malformed").Next(0)
		malformed.Header.ActiveSinceRound = 0
		malformed.Header.ID = malformed.ComputeID()
		err = h.processor.Validate(ctx, malformed)
		assert.True(t, processor.IsInvalidBlockError(err))

		assert.NoError(t, h.processor.Validate(ctx, h.builder.Fork(3, "child").Next(0)))
	})
}

func TestProcessor_ProcessValidated(t *testing.T) {
	runWithProcessor(t, func(h *harness) {
		h.apply(t, 12)

		tip, err := h.processor.LastBlock(context.Background())
		require.NoError(t, err)
		assert.Equal(t, h.builder.Tip().ID(), tip.ID())
		assert.Equal(t, uint64(7), h.coord.FinalizedHeight())

		// consensus rejects a block citing the wrong prevoted height, and the
		// block is removed again
		rejected := h.builder.Next(h.coord.PrevotedHeight() + 1)
		require.NoError(t, h.processor.Validate(context.Background(), rejected))
		err = h.processor.ProcessValidated(context.Background(), rejected, module.ProcessOptions{})
		require.Error(t, err)
		assert.True(t, processor.IsInvalidBlockError(err))

		_, err = h.blocks.ByID(rejected.ID())
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		tip, err = h.processor.LastBlock(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(12), tip.Height())
	})
}

func TestProcessor_DeleteLastBlock(t *testing.T) {
	runWithProcessor(t, func(h *harness) {
		ctx := context.Background()
		h.apply(t, 12)

		tip, err := h.processor.DeleteLastBlock(ctx, module.DeleteOptions{SaveTempBlock: true})
		require.NoError(t, err)
		assert.Equal(t, h.builder.ByHeight(11).ID(), tip.ID())

		tip, err = h.processor.DeleteLastBlock(ctx, module.DeleteOptions{})
		require.NoError(t, err)
		assert.Equal(t, uint64(10), tip.Height())

		buffered, err := h.temp.All()
		require.NoError(t, err)
		require.Len(t, buffered, 1)
		assert.Equal(t, h.builder.ByHeight(12).ID(), buffered[0].ID())

		// the deleted blocks can be applied again on the rewound state
		for _, height := range []uint64{11, 12} {
			block := h.builder.ByHeight(height)
			require.NoError(t, h.processor.Validate(ctx, block))
			require.NoError(t, h.processor.ProcessValidated(ctx, block, module.ProcessOptions{RemoveFromTempTable: true}))
		}
		buffered, err = h.temp.All()
		require.NoError(t, err)
		assert.Empty(t, buffered)
		assert.Equal(t, uint64(10), h.coord.PrevotedHeight())
	})
}

func TestProcessor_DeleteFinalizedBlock(t *testing.T) {
	runWithProcessor(t, func(h *harness) {
		ctx := context.Background()
		h.apply(t, 12)

		for i := 0; i < 5; i++ {
			_, err := h.processor.DeleteLastBlock(ctx, module.DeleteOptions{})
			require.NoError(t, err)
		}
		_, err := h.processor.DeleteLastBlock(ctx, module.DeleteOptions{})
		assert.ErrorIs(t, err, processor.ErrFinalizedBlock)

		tip, err := h.processor.LastBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), tip.Height())
	})
}
