package network

import (
	"context"

	"github.com/dposnet/bft-core/model/chain"
)

// Names of the procedures a peer serves to the recovery mechanisms.
const (
	ProcedureGetHighestCommonBlock = "getHighestCommonBlock"
	ProcedureGetBlocksFromID       = "getBlocksFromId"
	ProcedureGetLastBlock          = "getLastBlock"
)

// PeerNetwork is the typed view of the peer-to-peer layer used by the chain
// recovery mechanisms.
type PeerNetwork interface {

	// GetConnectedPeers returns the chain status of every connected peer.
	GetConnectedPeers(ctx context.Context) ([]chain.PeerInfo, error)

	// GetHighestCommonBlock asks the peer for the highest of the given block
	// IDs it has on its own chain. It returns nil if the peer has none of them.
	GetHighestCommonBlock(ctx context.Context, peerID string, ids []chain.Identifier) (*chain.BlockHeader, error)

	// GetBlocksFromID asks the peer for the blocks following the given block,
	// in ascending height order. The peer decides the page size.
	GetBlocksFromID(ctx context.Context, peerID string, blockID chain.Identifier) ([]*chain.Block, error)

	// GetLastBlock asks the peer for the tip of its chain.
	GetLastBlock(ctx context.Context, peerID string) (*chain.Block, error)

	// ApplyPenalty reports misbehavior of the peer. It does not block.
	ApplyPenalty(peerID string, penalty uint32)
}

// Transport is the raw request/response layer a PeerNetwork is built on.
type Transport interface {

	// RequestFromPeer calls the procedure on the peer and returns the raw
	// response payload.
	RequestFromPeer(ctx context.Context, peerID string, procedure string, payload []byte) ([]byte, error)

	// ConnectedPeers returns the chain status of every connected peer.
	ConnectedPeers(ctx context.Context) ([]chain.PeerInfo, error)

	// ApplyPenalty reports misbehavior of the peer. It does not block.
	ApplyPenalty(peerID string, penalty uint32)
}

// RequestHandler serves the procedures a node exposes to its peers.
type RequestHandler interface {

	// Handle executes the procedure with the given payload and returns the
	// encoded response.
	Handle(ctx context.Context, procedure string, payload []byte) ([]byte, error)
}
