package synchronization

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/dposnet/bft-core/consensus/forkchoice"
	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/module/irrecoverable"
	"github.com/dposnet/bft-core/storage"
	"github.com/dposnet/bft-core/utils/logging"
)

// Recovery holds the chain manipulation primitives shared by the recovery
// mechanisms. Blocks deleted with backup are kept in the temporary block
// buffer until the switch succeeded or they were restored.
type Recovery struct {
	log       zerolog.Logger
	consensus Consensus
	processor module.BlockProcessor
	temp      storage.TempBlocks
	metrics   module.SyncMetrics
}

func NewRecovery(
	log zerolog.Logger,
	consensus Consensus,
	processor module.BlockProcessor,
	temp storage.TempBlocks,
	metrics module.SyncMetrics,
) *Recovery {
	return &Recovery{
		log:       log.With().Str("component", "chain_recovery").Logger(),
		consensus: consensus,
		processor: processor,
		temp:      temp,
		metrics:   metrics,
	}
}

// DeleteAbove deletes the tip of the local chain until its height is at most
// the given height. If backup is set, deleted blocks are saved in the
// temporary block buffer. It returns the deleted blocks, highest first.
func (r *Recovery) DeleteAbove(ctx context.Context, height uint64, backup bool) ([]*chain.Block, error) {
	tip, err := r.processor.LastBlock(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not get tip: %w", err)
	}

	var deleted []*chain.Block
	for tip != nil && tip.Height() > height {
		next, err := r.processor.DeleteLastBlock(ctx, module.DeleteOptions{SaveTempBlock: backup})
		if err != nil {
			return deleted, fmt.Errorf("could not delete block at height %d: %w", tip.Height(), err)
		}
		deleted = append(deleted, tip)
		tip = next
	}
	if len(deleted) > 0 {
		r.metrics.BlocksRolledBack(len(deleted))
		r.log.Info().
			Uint64("height", height).
			Int("deleted", len(deleted)).
			Bool("backup", backup).
			Msg("deleted blocks above height")
	}
	return deleted, nil
}

// ApplyBlocks validates and applies the blocks in the given order.
func (r *Recovery) ApplyBlocks(ctx context.Context, blocks []*chain.Block, removeFromTemp bool) error {
	for _, block := range blocks {
		err := r.processor.Validate(ctx, block)
		if err != nil {
			return fmt.Errorf("could not validate block %x: %w", block.ID(), err)
		}
		err = r.processor.ProcessValidated(ctx, block, module.ProcessOptions{RemoveFromTempTable: removeFromTemp})
		if err != nil {
			return fmt.Errorf("could not process block %x: %w", block.ID(), err)
		}
	}
	return nil
}

// RestoreOrphanedBlocks applies the blocks of the temporary block buffer,
// oldest first, removing each from the buffer once applied.
func (r *Recovery) RestoreOrphanedBlocks(ctx context.Context) error {
	blocks, err := r.temp.All()
	if err != nil {
		return fmt.Errorf("could not read temporary blocks: %w", err)
	}
	if len(blocks) == 0 {
		return nil
	}
	r.log.Info().
		Uint64("from", blocks[0].Height()).
		Uint64("to", blocks[len(blocks)-1].Height()).
		Msg("restoring orphaned blocks")
	return r.ApplyBlocks(ctx, blocks, true)
}

// ClearTempBlocks empties the temporary block buffer.
func (r *Recovery) ClearTempBlocks(_ context.Context) error {
	err := r.temp.Truncate()
	if err != nil {
		return fmt.Errorf("could not truncate temporary blocks: %w", err)
	}
	return nil
}

// RestoreOnStartup finishes a chain switch interrupted by a shutdown. If the
// buffered chain is preferred over the local chain, the local chain above
// the buffered blocks is replaced by them. Otherwise the buffer is dropped.
// If replaying the buffered chain fails, the local chain is restored.
func (r *Recovery) RestoreOnStartup(ctx context.Context) error {
	buffered, err := r.temp.All()
	if err != nil {
		return fmt.Errorf("could not read temporary blocks: %w", err)
	}
	if len(buffered) == 0 {
		return nil
	}
	oldest := buffered[0]
	newest := buffered[len(buffered)-1]

	log := r.log.With().
		Uint64("oldest_height", oldest.Height()).
		Uint64("newest_height", newest.Height()).
		Hex("newest_id", logging.Block(newest)).
		Logger()

	tip, err := r.processor.LastBlock(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn().Msg("discarding temporary blocks on empty chain")
		return r.ClearTempBlocks(ctx)
	}
	if err != nil {
		return fmt.Errorf("could not get tip: %w", err)
	}

	status := r.consensus.ForkChoice(&tip.Header, &newest.Header)
	if status != forkchoice.DifferentChain && status != forkchoice.ValidExtension {
		log.Info().Str("fork_choice", status.String()).Msg("local chain is preferred, discarding temporary blocks")
		return r.ClearTempBlocks(ctx)
	}
	if oldest.Height() <= r.consensus.FinalizedHeight() {
		log.Warn().Msg("temporary blocks conflict with finalized blocks, discarding them")
		return r.ClearTempBlocks(ctx)
	}

	log.Info().Str("fork_choice", status.String()).Msg("restoring temporary blocks")
	deleted, err := r.DeleteAbove(ctx, oldest.Height()-1, true)
	if err != nil {
		return fmt.Errorf("could not delete local blocks: %w", err)
	}
	err = r.ApplyBlocks(ctx, buffered, true)
	if err != nil {
		log.Warn().Err(err).Msg("could not restore temporary blocks, restoring local chain")
		applyErr := err
		_, err = r.DeleteAbove(ctx, oldest.Height()-1, false)
		if err != nil {
			return irrecoverable.NewException(multierror.Append(applyErr, fmt.Errorf("could not roll back temporary blocks: %w", err)))
		}
		err = r.ApplyBlocks(ctx, reversed(deleted), true)
		if err != nil {
			return irrecoverable.NewException(multierror.Append(applyErr, fmt.Errorf("could not restore local chain: %w", err)))
		}
	}
	return r.ClearTempBlocks(ctx)
}

// ComputeBlockHeightsList returns the heights queried when searching for the
// common block: every N-th height counting down from the last height of the
// round before currentRound, at most limit of them. Heights at or below the
// finalized height are replaced by the finalized height.
func ComputeBlockHeightsList(finalizedHeight uint64, activeDelegates uint64, limit uint64, currentRound uint64) []uint64 {
	startingHeight := uint64(1)
	if currentRound > 1 {
		startingHeight = (currentRound - 1) * activeDelegates
	}

	heights := make([]uint64, 0, limit)
	truncated := false
	for idx := uint64(0); idx < limit; idx++ {
		step := idx * activeDelegates
		if step >= startingHeight {
			break
		}
		height := startingHeight - step
		if height <= finalizedHeight {
			truncated = true
			continue
		}
		heights = append(heights, height)
	}
	if truncated {
		heights = append(heights, finalizedHeight)
	}
	return heights
}

func reversed(blocks []*chain.Block) []*chain.Block {
	out := make([]*chain.Block, 0, len(blocks))
	for i := len(blocks) - 1; i >= 0; i-- {
		out = append(out, blocks[i])
	}
	return out
}
