package synchronization_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dposnet/bft-core/engine/common/synchronization"
	"github.com/dposnet/bft-core/model/chain"
)

func TestComputeBlockHeightsList(t *testing.T) {
	cases := []struct {
		name      string
		finalized uint64
		limit     uint64
		round     uint64
		expected  []uint64
	}{
		{name: "nothing finalized", finalized: 0, limit: 10, round: 5, expected: []uint64{16, 12, 8, 4}},
		{name: "truncated at finalized height", finalized: 10, limit: 10, round: 5, expected: []uint64{16, 12, 10}},
		{name: "limited", finalized: 0, limit: 3, round: 10, expected: []uint64{36, 32, 28}},
		{name: "first round", finalized: 0, limit: 10, round: 1, expected: []uint64{1}},
		{name: "first round below finalized height", finalized: 5, limit: 10, round: 1, expected: []uint64{5}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, synchronization.ComputeBlockHeightsList(c.finalized, delegates, c.limit, c.round))
		})
	}
}

func TestRecovery_DeleteAbove(t *testing.T) {
	runWithHarness(t, 12, func(h *harness) {
		ctx := context.Background()
		before := h.local.chainIDs(t)

		deleted, err := h.recovery.DeleteAbove(ctx, 9, true)
		require.NoError(t, err)
		require.Len(t, deleted, 3)
		assert.Equal(t, uint64(12), deleted[0].Height())
		assert.Equal(t, uint64(10), deleted[2].Height())
		assert.Equal(t, uint64(9), h.local.tip(t).Height())

		temp := h.local.tempBlocks(t)
		require.Len(t, temp, 3)
		assert.Equal(t, uint64(10), temp[0].Height())

		// nothing to delete
		deleted, err = h.recovery.DeleteAbove(ctx, 9, true)
		require.NoError(t, err)
		assert.Empty(t, deleted)

		require.NoError(t, h.recovery.RestoreOrphanedBlocks(ctx))
		assert.Equal(t, before, h.local.chainIDs(t))
		assert.Empty(t, h.local.tempBlocks(t))
	})
}

func TestRecovery_DeleteAboveFinalized(t *testing.T) {
	runWithHarness(t, 20, func(h *harness) {
		require.Equal(t, uint64(15), h.local.coord.FinalizedHeight())

		deleted, err := h.recovery.DeleteAbove(context.Background(), 10, false)
		require.Error(t, err)
		assert.Len(t, deleted, 5)
		assert.Equal(t, uint64(15), h.local.tip(t).Height())
	})
}

func TestRecovery_RestoreOnStartup(t *testing.T) {
	// local chain up to 16 with prevoted height 14 and finalized height 11
	setup := func(t *testing.T, h *harness) *forger {
		require.Equal(t, uint64(14), h.local.coord.PrevotedHeight())
		require.Equal(t, uint64(11), h.local.coord.FinalizedHeight())
		return h.main.fork(t, 12, "fork")
	}
	save := func(t *testing.T, h *harness, blocks []*chain.Block) {
		for _, block := range blocks {
			require.NoError(t, h.local.temp.Save(block))
		}
	}

	t.Run("empty buffer", func(t *testing.T) {
		runWithHarness(t, 16, func(h *harness) {
			before := h.local.chainIDs(t)
			require.NoError(t, h.recovery.RestoreOnStartup(context.Background()))
			assert.Equal(t, before, h.local.chainIDs(t))
		})
	})

	t.Run("buffered chain is preferred", func(t *testing.T) {
		runWithHarness(t, 16, func(h *harness) {
			fork := setup(t, h)
			blocks := fork.extend(t, 6)
			save(t, h, blocks)

			require.NoError(t, h.recovery.RestoreOnStartup(context.Background()))
			assert.Equal(t, blocks[len(blocks)-1].ID(), h.local.tip(t).ID())
			assert.Equal(t, uint64(16), h.local.coord.PrevotedHeight())
			assert.Empty(t, h.local.tempBlocks(t))
		})
	})

	t.Run("local chain is preferred", func(t *testing.T) {
		runWithHarness(t, 16, func(h *harness) {
			fork := setup(t, h)
			save(t, h, fork.extend(t, 2))
			before := h.local.chainIDs(t)

			require.NoError(t, h.recovery.RestoreOnStartup(context.Background()))
			assert.Equal(t, before, h.local.chainIDs(t))
			assert.Empty(t, h.local.tempBlocks(t))
		})
	})

	t.Run("buffered chain conflicts with finalized blocks", func(t *testing.T) {
		runWithHarness(t, 16, func(h *harness) {
			fork := h.main.fork(t, 8, "fork")
			save(t, h, fork.extend(t, 12))
			before := h.local.chainIDs(t)

			require.NoError(t, h.recovery.RestoreOnStartup(context.Background()))
			assert.Equal(t, before, h.local.chainIDs(t))
			assert.Empty(t, h.local.tempBlocks(t))
		})
	})

	t.Run("invalid buffered chain restores local chain", func(t *testing.T) {
		runWithHarness(t, 16, func(h *harness) {
			fork := setup(t, h)
			blocks := fork.extend(t, 2)
			// block 15 carries a wrong prevoted height
			blocks = append(blocks, fork.forge(1, 0)...)
			blocks = append(blocks, fork.forge(3, 15)...)
			save(t, h, blocks)
			before := h.local.chainIDs(t)

			require.NoError(t, h.recovery.RestoreOnStartup(context.Background()))
			assert.Equal(t, before, h.local.chainIDs(t))
			assert.Equal(t, uint64(14), h.local.coord.PrevotedHeight())
			assert.Empty(t, h.local.tempBlocks(t))
		})
	})
}
