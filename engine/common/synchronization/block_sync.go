package synchronization

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/dposnet/bft-core/consensus/forkchoice"
	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/module/irrecoverable"
	"github.com/dposnet/bft-core/network"
	"github.com/dposnet/bft-core/storage"
)

const blockSyncName = "block_sync"

// BlockSync catches up with the network after the local chain fell more
// than three rounds behind. It replaces the local chain above the common
// block with the chain of the best connected peer.
type BlockSync struct {
	log       zerolog.Logger
	cfg       *Config
	consensus Consensus
	slots     module.Slots
	rounds    module.Rounds
	blocks    storage.Blocks
	net       network.PeerNetwork
	recovery  *Recovery
}

var _ Mechanism = (*BlockSync)(nil)

func NewBlockSync(
	log zerolog.Logger,
	cfg *Config,
	consensus Consensus,
	slots module.Slots,
	rounds module.Rounds,
	blocks storage.Blocks,
	net network.PeerNetwork,
	recovery *Recovery,
) *BlockSync {
	return &BlockSync{
		log:       log.With().Str("mechanism", blockSyncName).Logger(),
		cfg:       cfg,
		consensus: consensus,
		slots:     slots,
		rounds:    rounds,
		blocks:    blocks,
		net:       net,
		recovery:  recovery,
	}
}

func (b *BlockSync) Name() string {
	return blockSyncName
}

// IsValidFor reports whether the finalized block was forged more than three
// rounds of slots ago.
func (b *BlockSync) IsValidFor(_ context.Context, _ *chain.Block) (bool, error) {
	finalized, err := b.blocks.ByHeight(max(b.consensus.FinalizedHeight(), 1))
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not get finalized block: %w", err)
	}
	finalizedSlot := b.slots.SlotNumber(finalized.Header.Timestamp)
	return subFloor(b.slots.CurrentSlot(), finalizedSlot) > 3*b.consensus.ActiveDelegates(), nil
}

// SelectBestPeer picks a peer of the largest group advertising the same
// tip among the peers with the highest prevoted height and chain height.
// Expected errors during normal operations:
//   - AbortError if there are no peers
//   - ForkChoiceViolationError if the selected peer's chain is not
//     preferred over the local chain
func (b *BlockSync) SelectBestPeer(ctx context.Context, peers []chain.PeerInfo) (chain.PeerInfo, error) {
	if len(peers) == 0 {
		return chain.PeerInfo{}, NewAbortErrorf("", "no connected peers")
	}

	var maxPrevoted uint64
	for _, peer := range peers {
		maxPrevoted = max(maxPrevoted, peer.MaxHeightPrevoted)
	}
	var maxHeight uint64
	for _, peer := range peers {
		if peer.MaxHeightPrevoted == maxPrevoted {
			maxHeight = max(maxHeight, peer.Height)
		}
	}

	groups := make(map[chain.Identifier][]chain.PeerInfo)
	for _, peer := range peers {
		if peer.MaxHeightPrevoted == maxPrevoted && peer.Height == maxHeight {
			groups[peer.BlockID] = append(groups[peer.BlockID], peer)
		}
	}
	ids := make([]chain.Identifier, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(groups[ids[i]]) != len(groups[ids[j]]) {
			return len(groups[ids[i]]) > len(groups[ids[j]])
		}
		return ids[i].Less(ids[j])
	})
	group := groups[ids[0]]
	selected := group[rand.Intn(len(group))]

	tip, err := b.blocks.Last()
	if err != nil {
		return chain.PeerInfo{}, fmt.Errorf("could not get tip: %w", err)
	}
	status := b.consensus.ForkChoice(&tip.Header, selected.Tip())
	if status != forkchoice.DifferentChain {
		return chain.PeerInfo{}, ForkChoiceViolationError{PeerID: selected.PeerID, Status: status}
	}
	return selected, nil
}

// Run syncs the local chain with the best connected peer.
func (b *BlockSync) Run(ctx context.Context, _ *chain.Block, _ string) error {
	peers, err := b.net.GetConnectedPeers(ctx)
	if err != nil {
		return NewRestartErrorf("could not list connected peers: %w", err)
	}
	peer, err := b.SelectBestPeer(ctx, peers)
	var violation ForkChoiceViolationError
	if errors.As(err, &violation) {
		return ApplyPenaltyAndRestartError{PeerID: violation.PeerID, Err: err}
	}
	if err != nil {
		return err
	}
	log := b.log.With().Str("peer_id", peer.PeerID).Uint64("peer_height", peer.Height).Logger()

	tip, err := b.blocks.Last()
	if err != nil {
		return fmt.Errorf("could not get tip: %w", err)
	}
	last, err := b.net.GetLastBlock(ctx, peer.PeerID)
	if err != nil {
		return NewApplyPenaltyAndRestartErrorf(peer.PeerID, "could not get last block: %w", err)
	}
	err = validateBlock(last)
	if err != nil {
		return NewApplyPenaltyAndRestartErrorf(peer.PeerID, "invalid last block: %w", err)
	}
	status := b.consensus.ForkChoice(&tip.Header, &last.Header)
	if status == forkchoice.Identical {
		log.Debug().Msg("local chain already ends with the peer's last block")
		return nil
	}
	if status != forkchoice.DifferentChain && status != forkchoice.ValidExtension {
		return ApplyPenaltyAndRestartError{
			PeerID: peer.PeerID,
			Err:    ForkChoiceViolationError{PeerID: peer.PeerID, Status: status},
		}
	}

	common, err := b.requestLastCommonBlock(ctx, peer.PeerID, tip)
	if err != nil {
		return err
	}
	finalized := b.consensus.FinalizedHeight()
	if common == nil {
		return NewApplyPenaltyAndRestartErrorf(peer.PeerID, "no common block found")
	}
	if common.Height < finalized {
		return NewApplyPenaltyAndRestartErrorf(peer.PeerID, "common block height %d is below finalized height %d", common.Height, finalized)
	}

	log.Info().
		Uint64("common_height", common.Height).
		Uint64("target_height", last.Height()).
		Msg("syncing with peer")
	return b.sync(ctx, tip, common, last, peer.PeerID)
}

// requestLastCommonBlock asks the peer about local block IDs spaced one
// round apart, moving further back with every request.
func (b *BlockSync) requestLastCommonBlock(ctx context.Context, peerID string, tip *chain.Block) (*chain.BlockHeader, error) {
	n := b.consensus.ActiveDelegates()
	finalized := b.consensus.FinalizedHeight()
	round := b.rounds.CalcRound(tip.Height())

	for request := uint64(0); request < b.cfg.AncestorSearchRequests; request++ {
		heights := ComputeBlockHeightsList(finalized, n, b.cfg.AncestorSearchHeights, round)
		ids := make([]chain.Identifier, 0, len(heights))
		for _, height := range heights {
			block, err := b.blocks.ByHeight(height)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("could not get block at height %d: %w", height, err)
			}
			ids = append(ids, block.ID())
		}

		common, err := b.net.GetHighestCommonBlock(ctx, peerID, ids)
		if err != nil {
			return nil, NewApplyPenaltyAndRestartErrorf(peerID, "could not get common block: %w", err)
		}
		if common != nil {
			return localHeader(b.blocks, peerID, common)
		}
		if round <= b.cfg.AncestorSearchHeights || (round-b.cfg.AncestorSearchHeights-1)*n < finalized {
			break
		}
		round -= b.cfg.AncestorSearchHeights
	}
	return nil, nil
}

// sync deletes the local blocks above the common block, keeping a backup,
// and applies the peer's chain page by page. If a page cannot be fetched or
// applied, the new chain is kept if it is preferred over the old one and
// the backup is restored otherwise.
func (b *BlockSync) sync(ctx context.Context, tip *chain.Block, common *chain.BlockHeader, target *chain.Block, peerID string) error {
	err := b.recovery.ClearTempBlocks(ctx)
	if err != nil {
		return err
	}
	_, err = b.recovery.DeleteAbove(ctx, common.Height, true)
	if err != nil {
		return fmt.Errorf("could not delete blocks above common block: %w", err)
	}

	parent := common
	for parent.Height < target.Height() {
		page, err := fetchPage(ctx, b.cfg, b.net, peerID, parent.ID)
		if err == nil {
			err = validateSegment(parent, page)
		}
		if err == nil {
			err = b.recovery.ApplyBlocks(ctx, page, false)
		}
		if err != nil {
			return b.revert(ctx, tip, common, peerID, err)
		}
		parent = &page[len(page)-1].Header
	}
	return b.recovery.ClearTempBlocks(ctx)
}

func (b *BlockSync) revert(ctx context.Context, tip *chain.Block, common *chain.BlockHeader, peerID string, cause error) error {
	newTip, err := b.blocks.Last()
	if err != nil {
		return fmt.Errorf("could not get tip: %w", err)
	}
	if b.consensus.ForkChoice(&tip.Header, &newTip.Header) == forkchoice.DifferentChain {
		b.log.Warn().Err(cause).
			Str("peer_id", peerID).
			Uint64("height", newTip.Height()).
			Msg("sync failed, keeping preferred partial chain")
		err = b.recovery.ClearTempBlocks(ctx)
		if err != nil {
			return err
		}
		return ApplyPenaltyAndRestartError{PeerID: peerID, Err: cause}
	}

	b.log.Warn().Err(cause).Str("peer_id", peerID).Msg("sync failed, restoring local chain")
	_, err = b.recovery.DeleteAbove(ctx, common.Height, false)
	if err != nil {
		return irrecoverable.NewException(multierror.Append(cause, fmt.Errorf("could not delete synced blocks: %w", err)))
	}
	err = b.recovery.RestoreOrphanedBlocks(ctx)
	if err != nil {
		return irrecoverable.NewException(multierror.Append(cause, fmt.Errorf("could not restore local chain: %w", err)))
	}
	return ApplyPenaltyAndRestartError{PeerID: peerID, Err: cause}
}
