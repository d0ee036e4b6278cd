package module

import (
	"context"

	"github.com/dposnet/bft-core/model/chain"
)

// ProcessOptions modify how a validated block is applied.
type ProcessOptions struct {
	// RemoveFromTempTable removes the block from the temporary block buffer
	// once it has been applied.
	RemoveFromTempTable bool
}

// DeleteOptions modify how the chain tip is deleted.
type DeleteOptions struct {
	// SaveTempBlock stores the deleted block in the temporary block buffer,
	// so it can be restored if a chain switch fails.
	SaveTempBlock bool
}

// BlockProcessor applies blocks to the local chain. It is the only way the
// recovery mechanisms mutate the chain; every applied block is fed to the
// finality engine.
type BlockProcessor interface {
	// Validate checks the block in isolation and against its parent, which
	// must be the current tip. Any error marks the block as invalid.
	Validate(ctx context.Context, block *chain.Block) error

	// ProcessValidated appends a previously validated block to the chain.
	ProcessValidated(ctx context.Context, block *chain.Block, opts ProcessOptions) error

	// DeleteLastBlock removes the current tip and returns the new tip.
	DeleteLastBlock(ctx context.Context, opts DeleteOptions) (*chain.Block, error)

	// LastBlock returns the current tip of the local chain.
	LastBlock(ctx context.Context) (*chain.Block, error)
}
