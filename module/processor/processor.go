package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/storage"
	"github.com/dposnet/bft-core/utils/logging"
)

// Consensus is the part of the consensus coordinator the processor feeds.
type Consensus interface {
	AddBlock(ctx context.Context, block *chain.Block) error
	DeleteBlocks(ctx context.Context, blocks []*chain.Block) error
	FinalizedHeight() uint64
}

// Processor applies blocks to the stored chain and keeps the consensus
// coordinator in step with it. It does not execute transactions: a block is
// valid if it is well-formed and extends the tip.
type Processor struct {
	log       zerolog.Logger
	mu        sync.Mutex
	blocks    storage.Blocks
	consensus Consensus
}

var _ module.BlockProcessor = (*Processor)(nil)

func New(log zerolog.Logger, blocks storage.Blocks, consensus Consensus) *Processor {
	return &Processor{
		log:       log.With().Str("component", "block_processor").Logger(),
		blocks:    blocks,
		consensus: consensus,
	}
}

// Validate checks that the block is well-formed and extends the current tip.
// Expected errors during normal operations:
//   - InvalidBlockError if the block cannot be applied
func (p *Processor) Validate(_ context.Context, block *chain.Block) error {
	err := block.Header.Validate()
	if err != nil {
		return NewInvalidBlockErrorf(block, "malformed header: %w", err)
	}
	if block.ComputeID() != block.ID() {
		return NewInvalidBlockErrorf(block, "block ID does not match its content")
	}

	tip, err := p.blocks.Last()
	if errors.Is(err, storage.ErrNotFound) {
		if block.Height() != 1 {
			return NewInvalidBlockErrorf(block, "first block must be at height 1")
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not retrieve tip: %w", err)
	}
	if !block.Extends(&tip.Header) {
		return NewInvalidBlockErrorf(block, "block does not extend tip %x at height %d", tip.ID(), tip.Height())
	}
	return nil
}

// ProcessValidated stores the block and feeds its header to consensus. If
// consensus rejects the header, the block is removed again.
func (p *Processor) ProcessValidated(ctx context.Context, block *chain.Block, opts module.ProcessOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.blocks.Store(block, opts.RemoveFromTempTable)
	if err != nil {
		return fmt.Errorf("could not store block %x: %w", block.ID(), err)
	}

	err = p.consensus.AddBlock(ctx, block)
	if err != nil {
		rollbackErr := p.blocks.RemoveByID(block.ID(), opts.RemoveFromTempTable)
		if rollbackErr != nil {
			rollbackErr = fmt.Errorf("could not remove rejected block: %w", rollbackErr)
		}
		return multierr.Combine(NewInvalidBlockErrorf(block, "rejected by consensus: %w", err), rollbackErr)
	}

	p.log.Debug().
		Uint64("height", block.Height()).
		Hex("block_id", logging.Block(block)).
		Msg("block applied")
	return nil
}

// DeleteLastBlock removes the tip of the chain and returns the new tip, nil
// if the chain is empty afterwards.
// Expected errors during normal operations:
//   - storage.ErrNotFound if the chain is empty
//   - ErrFinalizedBlock if the tip is finalized
func (p *Processor) DeleteLastBlock(ctx context.Context, opts module.DeleteOptions) (*chain.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tip, err := p.blocks.Last()
	if err != nil {
		return nil, fmt.Errorf("could not retrieve tip: %w", err)
	}
	if tip.Height() <= p.consensus.FinalizedHeight() {
		return nil, fmt.Errorf("could not delete block at height %d: %w", tip.Height(), ErrFinalizedBlock)
	}

	err = p.blocks.RemoveByID(tip.ID(), opts.SaveTempBlock)
	if err != nil {
		return nil, fmt.Errorf("could not remove block %x: %w", tip.ID(), err)
	}
	err = p.consensus.DeleteBlocks(ctx, []*chain.Block{tip})
	if err != nil {
		return nil, fmt.Errorf("could not rewind consensus below height %d: %w", tip.Height(), err)
	}

	p.log.Debug().
		Uint64("height", tip.Height()).
		Hex("block_id", logging.Block(tip)).
		Bool("saved_temp_block", opts.SaveTempBlock).
		Msg("block deleted")

	newTip, err := p.blocks.Last()
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not retrieve new tip: %w", err)
	}
	return newTip, nil
}

func (p *Processor) LastBlock(_ context.Context) (*chain.Block, error) {
	tip, err := p.blocks.Last()
	if err != nil {
		return nil, fmt.Errorf("could not retrieve tip: %w", err)
	}
	return tip, nil
}
