package synchronization

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-retry"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/network"
	"github.com/dposnet/bft-core/storage"
)

var errEmptyPage = errors.New("peer returned no blocks")

// fetchPage requests the blocks following blockID from the peer. Failed and
// empty responses are retried up to the configured number of attempts.
func fetchPage(ctx context.Context, cfg *Config, net network.PeerNetwork, peerID string, blockID chain.Identifier) ([]*chain.Block, error) {
	var page []*chain.Block
	err := retry.Do(ctx, cfg.backoff(cfg.MaxFailedFetchAttempts), func(ctx context.Context) error {
		blocks, err := net.GetBlocksFromID(ctx, peerID, blockID)
		if err != nil {
			return retry.RetryableError(err)
		}
		if len(blocks) == 0 {
			return retry.RetryableError(errEmptyPage)
		}
		page = blocks
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not fetch blocks following %x: %w", blockID, err)
	}
	return page, nil
}

// localHeader resolves a common block returned by the peer to the header
// stored locally, so that nothing but the ID is taken from the peer.
func localHeader(blocks storage.Blocks, peerID string, common *chain.BlockHeader) (*chain.BlockHeader, error) {
	block, err := blocks.ByID(common.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, NewAbortErrorf(peerID, "peer returned unknown common block %x", common.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get common block %x: %w", common.ID, err)
	}
	return &block.Header, nil
}

// fetchSegment requests the peer's blocks above parent up to and including
// toHeight, page by page.
func fetchSegment(ctx context.Context, cfg *Config, net network.PeerNetwork, peerID string, parent *chain.BlockHeader, toHeight uint64) ([]*chain.Block, error) {
	var segment []*chain.Block
	lastID, lastHeight := parent.ID, parent.Height
	for lastHeight < toHeight {
		page, err := fetchPage(ctx, cfg, net, peerID, lastID)
		if err != nil {
			return nil, err
		}
		tail := page[len(page)-1]
		if tail.Height() <= lastHeight {
			return nil, fmt.Errorf("page ending at height %d does not advance beyond height %d", tail.Height(), lastHeight)
		}
		for _, block := range page {
			if block.Height() > toHeight {
				break
			}
			segment = append(segment, block)
		}
		lastID, lastHeight = tail.ID(), tail.Height()
	}
	return segment, nil
}

// validateSegment checks every block in isolation and that the blocks form
// a chain on top of parent.
func validateSegment(parent *chain.BlockHeader, blocks []*chain.Block) error {
	for _, block := range blocks {
		err := validateBlock(block)
		if err != nil {
			return err
		}
		if !block.Extends(parent) {
			return fmt.Errorf("block %x at height %d does not extend block %x at height %d",
				block.ID(), block.Height(), parent.ID, parent.Height)
		}
		parent = &block.Header
	}
	return nil
}

// validateBlock checks the block in isolation.
func validateBlock(block *chain.Block) error {
	err := block.Header.Validate()
	if err != nil {
		return fmt.Errorf("malformed block at height %d: %w", block.Height(), err)
	}
	if block.ComputeID() != block.ID() {
		return fmt.Errorf("block at height %d has mismatching ID %x", block.Height(), block.ID())
	}
	return nil
}
