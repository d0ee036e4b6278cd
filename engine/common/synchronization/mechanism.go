package synchronization

import (
	"context"

	"github.com/dposnet/bft-core/consensus/forkchoice"
	"github.com/dposnet/bft-core/model/chain"
)

// Consensus is the part of the consensus coordinator the recovery
// mechanisms rely on.
type Consensus interface {
	// ForkChoice classifies the candidate block relative to the local tip.
	ForkChoice(local *chain.BlockHeader, candidate *chain.BlockHeader) forkchoice.Status

	// FinalizedHeight returns the finalized height of the local chain.
	FinalizedHeight() uint64

	// ActiveDelegates returns the number of delegates forging per round.
	ActiveDelegates() uint64
}

// Mechanism is a strategy to move the local chain onto a preferred chain.
type Mechanism interface {
	// Name identifies the mechanism in logs and metrics.
	Name() string

	// IsValidFor reports whether the mechanism applies to the received block.
	IsValidFor(ctx context.Context, block *chain.Block) (bool, error)

	// Run moves the local chain onto the chain of the received block. The
	// local chain is left unchanged if it fails with AbortError.
	Run(ctx context.Context, block *chain.Block, peerID string) error
}

// Republisher schedules a received block for another synchronization
// attempt. It must not block.
type Republisher interface {
	Republish(block *chain.Block, peerID string)
}
