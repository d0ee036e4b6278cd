package rpc

import (
	"github.com/dposnet/bft-core/model/chain"
)

// HighestCommonBlockRequest asks a peer which of the listed blocks is the
// highest on its own chain.
type HighestCommonBlockRequest struct {
	IDs []chain.Identifier
}

// HighestCommonBlockResponse carries the highest common block, nil if the
// peer has none of the requested blocks.
type HighestCommonBlockResponse struct {
	Header *chain.BlockHeader
}

// BlocksFromIDRequest asks a peer for the blocks following BlockID.
type BlocksFromIDRequest struct {
	BlockID chain.Identifier
}

// BlocksFromIDResponse carries one page of blocks in ascending height order.
type BlocksFromIDResponse struct {
	Blocks []*chain.Block
}

// LastBlockResponse carries the tip of the peer's chain.
type LastBlockResponse struct {
	Block *chain.Block
}
