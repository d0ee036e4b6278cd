package rpc

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/network"
	"github.com/dposnet/bft-core/network/codec/cbor"
)

// Client implements the typed peer network on top of a raw transport.
type Client struct {
	log       zerolog.Logger
	transport network.Transport
	codec     *cbor.Codec
}

var _ network.PeerNetwork = (*Client)(nil)

func NewClient(log zerolog.Logger, transport network.Transport) *Client {
	return &Client{
		log:       log.With().Str("component", "rpc_client").Logger(),
		transport: transport,
		codec:     cbor.NewCodec(),
	}
}

func (c *Client) GetConnectedPeers(ctx context.Context) ([]chain.PeerInfo, error) {
	peers, err := c.transport.ConnectedPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list connected peers: %w", err)
	}
	return peers, nil
}

// GetHighestCommonBlock returns nil if the peer has none of the blocks.
// Expected errors during normal operations:
//   - network.InvalidResponseError if the peer answers with a block that
//     was not asked for
func (c *Client) GetHighestCommonBlock(ctx context.Context, peerID string, ids []chain.Identifier) (*chain.BlockHeader, error) {
	var res HighestCommonBlockResponse
	err := c.call(ctx, peerID, network.ProcedureGetHighestCommonBlock, &HighestCommonBlockRequest{IDs: ids}, &res)
	if err != nil {
		return nil, err
	}
	if res.Header == nil {
		return nil, nil
	}
	for _, id := range ids {
		if res.Header.ID == id {
			return res.Header, nil
		}
	}
	return nil, network.NewInvalidResponseErrorf(peerID, network.ProcedureGetHighestCommonBlock,
		"common block %x was not requested", res.Header.ID)
}

func (c *Client) GetBlocksFromID(ctx context.Context, peerID string, blockID chain.Identifier) ([]*chain.Block, error) {
	var res BlocksFromIDResponse
	err := c.call(ctx, peerID, network.ProcedureGetBlocksFromID, &BlocksFromIDRequest{BlockID: blockID}, &res)
	if err != nil {
		return nil, err
	}
	return res.Blocks, nil
}

// GetLastBlock returns the tip of the peer's chain.
// Expected errors during normal operations:
//   - network.InvalidResponseError if the peer reports an empty chain
func (c *Client) GetLastBlock(ctx context.Context, peerID string) (*chain.Block, error) {
	var res LastBlockResponse
	err := c.call(ctx, peerID, network.ProcedureGetLastBlock, nil, &res)
	if err != nil {
		return nil, err
	}
	if res.Block == nil {
		return nil, network.NewInvalidResponseErrorf(peerID, network.ProcedureGetLastBlock, "missing block")
	}
	return res.Block, nil
}

func (c *Client) ApplyPenalty(peerID string, penalty uint32) {
	c.log.Debug().
		Str("peer_id", peerID).
		Uint32("penalty", penalty).
		Msg("applying penalty to peer")
	c.transport.ApplyPenalty(peerID, penalty)
}

func (c *Client) call(ctx context.Context, peerID string, procedure string, req interface{}, res interface{}) error {
	var payload []byte
	if req != nil {
		var err error
		payload, err = c.codec.Encode(req)
		if err != nil {
			return fmt.Errorf("could not encode %s request: %w", procedure, err)
		}
	}
	data, err := c.transport.RequestFromPeer(ctx, peerID, procedure, payload)
	if err != nil {
		return fmt.Errorf("%s request to peer %s failed: %w", procedure, peerID, err)
	}
	err = c.codec.Decode(data, res)
	if err != nil {
		return network.InvalidResponseError{PeerID: peerID, Procedure: procedure, Err: err}
	}
	return nil
}
