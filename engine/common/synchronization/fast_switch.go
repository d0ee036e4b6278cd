package synchronization

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/module/irrecoverable"
	"github.com/dposnet/bft-core/network"
	"github.com/dposnet/bft-core/storage"
	"github.com/dposnet/bft-core/utils/logging"
)

const fastSwitchName = "fast_switch"

// FastSwitch switches to a fork announced by a peer which diverged from the
// local chain within the last two rounds.
type FastSwitch struct {
	log       zerolog.Logger
	cfg       *Config
	consensus Consensus
	rounds    module.Rounds
	blocks    storage.Blocks
	net       network.PeerNetwork
	recovery  *Recovery
}

var _ Mechanism = (*FastSwitch)(nil)

func NewFastSwitch(
	log zerolog.Logger,
	cfg *Config,
	consensus Consensus,
	rounds module.Rounds,
	blocks storage.Blocks,
	net network.PeerNetwork,
	recovery *Recovery,
) *FastSwitch {
	return &FastSwitch{
		log:       log.With().Str("mechanism", fastSwitchName).Logger(),
		cfg:       cfg,
		consensus: consensus,
		rounds:    rounds,
		blocks:    blocks,
		net:       net,
		recovery:  recovery,
	}
}

func (f *FastSwitch) Name() string {
	return fastSwitchName
}

// IsValidFor reports whether the received block is at most two rounds away
// from the local tip and was forged by a delegate of its round.
func (f *FastSwitch) IsValidFor(ctx context.Context, block *chain.Block) (bool, error) {
	tip, err := f.blocks.Last()
	if err != nil {
		return false, fmt.Errorf("could not get tip: %w", err)
	}
	if absDiff(block.Height(), tip.Height()) > 2*f.consensus.ActiveDelegates() {
		return false, nil
	}
	forgers, err := f.rounds.ForgerKeysForRound(ctx, f.rounds.CalcRound(block.Height()))
	if err != nil {
		return false, fmt.Errorf("could not get forgers of block round: %w", err)
	}
	for _, key := range forgers {
		if key == block.Header.GeneratorKey {
			return true, nil
		}
	}
	return false, nil
}

// Run replaces the local blocks above the common block with the peer's
// chain ending at the received block.
func (f *FastSwitch) Run(ctx context.Context, block *chain.Block, peerID string) error {
	log := f.log.With().
		Str("peer_id", peerID).
		Uint64("height", block.Height()).
		Hex("block_id", logging.Block(block)).
		Logger()

	common, err := f.requestLastCommonBlock(ctx, peerID)
	if err != nil {
		return err
	}
	segment, err := f.queryBlocks(ctx, block, common, peerID)
	if err != nil {
		return err
	}

	log.Info().
		Uint64("common_height", common.Height).
		Int("blocks", len(segment)).
		Msg("switching to fork")
	return f.switchChain(ctx, common, segment, peerID)
}

// requestLastCommonBlock asks the peer for the highest of the local blocks
// of the last two rounds it knows. It returns nil if the peer knows none.
func (f *FastSwitch) requestLastCommonBlock(ctx context.Context, peerID string) (*chain.BlockHeader, error) {
	tip, err := f.blocks.Last()
	if err != nil {
		return nil, fmt.Errorf("could not get tip: %w", err)
	}
	from := max(f.consensus.FinalizedHeight(), subFloor(tip.Height(), 2*f.consensus.ActiveDelegates()))
	local, err := f.blocks.ByHeightRange(from, tip.Height())
	if err != nil {
		return nil, fmt.Errorf("could not read blocks from height %d: %w", from, err)
	}
	ids := make([]chain.Identifier, 0, len(local))
	for i := len(local) - 1; i >= 0; i-- {
		ids = append(ids, local[i].ID())
	}

	var common *chain.BlockHeader
	err = retry.Do(ctx, f.cfg.backoff(f.cfg.MaxCommonBlockRequests), func(ctx context.Context) error {
		header, err := f.net.GetHighestCommonBlock(ctx, peerID, ids)
		if err != nil {
			return retry.RetryableError(err)
		}
		if header == nil {
			return retry.RetryableError(fmt.Errorf("peer returned no common block"))
		}
		common = header
		return nil
	})
	if err != nil {
		f.log.Debug().Err(err).Str("peer_id", peerID).Msg("no common block found")
		return nil, nil
	}
	return localHeader(f.blocks, peerID, common)
}

// queryBlocks checks that the fork is shallow enough and fetches it.
func (f *FastSwitch) queryBlocks(ctx context.Context, block *chain.Block, common *chain.BlockHeader, peerID string) ([]*chain.Block, error) {
	if common == nil {
		return nil, NewAbortErrorf("", "peer %s did not return a common block", peerID)
	}
	finalized := f.consensus.FinalizedHeight()
	if common.Height < finalized {
		return nil, NewAbortErrorf(peerID, "common block height %d is below finalized height %d", common.Height, finalized)
	}
	tip, err := f.blocks.Last()
	if err != nil {
		return nil, fmt.Errorf("could not get tip: %w", err)
	}
	limit := 2 * f.consensus.ActiveDelegates()
	if subFloor(tip.Height(), common.Height) > limit || subFloor(block.Height(), common.Height) > limit {
		return nil, NewAbortErrorf("", "common block height %d is more than %d blocks below the local tip %d or the received block %d",
			common.Height, limit, tip.Height(), block.Height())
	}

	segment, err := fetchSegment(ctx, f.cfg, f.net, peerID, common, block.Height())
	if err != nil {
		return nil, AbortError{PeerID: peerID, Err: err}
	}
	err = validateSegment(common, segment)
	if err != nil {
		return nil, AbortError{PeerID: peerID, Err: err}
	}
	if len(segment) == 0 || segment[len(segment)-1].ID() != block.ID() {
		return nil, NewAbortErrorf(peerID, "fetched blocks do not end with the received block")
	}
	return segment, nil
}

// switchChain deletes the local blocks above the common block, keeping a
// backup, and applies the fetched blocks. If a block is rejected, the local
// chain is restored from the backup.
func (f *FastSwitch) switchChain(ctx context.Context, common *chain.BlockHeader, segment []*chain.Block, peerID string) error {
	err := f.recovery.ClearTempBlocks(ctx)
	if err != nil {
		return err
	}
	_, err = f.recovery.DeleteAbove(ctx, common.Height, true)
	if err != nil {
		return fmt.Errorf("could not delete blocks above common block: %w", err)
	}

	applyErr := f.recovery.ApplyBlocks(ctx, segment, false)
	if applyErr == nil {
		return f.recovery.ClearTempBlocks(ctx)
	}

	f.log.Warn().Err(applyErr).Str("peer_id", peerID).Msg("could not apply fork, restoring local chain")
	_, err = f.recovery.DeleteAbove(ctx, common.Height, false)
	if err != nil {
		return irrecoverable.NewException(multierror.Append(applyErr, fmt.Errorf("could not delete fork blocks: %w", err)))
	}
	err = f.recovery.RestoreOrphanedBlocks(ctx)
	if err != nil {
		return irrecoverable.NewException(multierror.Append(applyErr, fmt.Errorf("could not restore local chain: %w", err)))
	}
	return ApplyPenaltyAndRestartError{PeerID: peerID, Err: applyErr}
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func subFloor(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
