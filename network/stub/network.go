package stub

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/network"
	"github.com/dposnet/bft-core/storage"
)

// Status is the chain status of a node, without the node ID.
type Status struct {
	Height            uint64
	MaxHeightPrevoted uint64
	BlockID           chain.Identifier
	BlockVersion      uint32
}

// Network is an in-memory transport made for testing the recovery
// mechanisms. Requests are delivered synchronously to the handler of the
// target node.
type Network struct {
	hub     *Hub
	nodeID  string
	handler network.RequestHandler
	status  StatusFunc
}

var _ network.Transport = (*Network)(nil)

// NewNetwork creates the network of a node and plugs it into the hub.
func NewNetwork(hub *Hub, nodeID string, handler network.RequestHandler, status StatusFunc) *Network {
	net := &Network{
		hub:     hub,
		nodeID:  nodeID,
		handler: handler,
		status:  status,
	}
	hub.Plug(net)
	return net
}

// GetID returns the ID of the node.
func (n *Network) GetID() string {
	return n.nodeID
}

// ConnectedPeers returns the status of every other node in the hub, ordered
// by node ID.
func (n *Network) ConnectedPeers(_ context.Context) ([]chain.PeerInfo, error) {
	peers := n.hub.peers(n.nodeID)
	infos := make([]chain.PeerInfo, 0, len(peers))
	for _, peer := range peers {
		status, err := peer.status()
		if err != nil {
			return nil, fmt.Errorf("could not get status of node %s: %w", peer.nodeID, err)
		}
		infos = append(infos, chain.PeerInfo{
			PeerID:            peer.nodeID,
			Height:            status.Height,
			MaxHeightPrevoted: status.MaxHeightPrevoted,
			BlockID:           status.BlockID,
			BlockVersion:      status.BlockVersion,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].PeerID < infos[j].PeerID
	})
	return infos, nil
}

func (n *Network) RequestFromPeer(ctx context.Context, peerID string, procedure string, payload []byte) ([]byte, error) {
	peer, err := n.hub.route(peerID, procedure)
	if err != nil {
		return nil, err
	}
	if peer == nil || peerID == n.nodeID {
		return nil, fmt.Errorf("could not reach node %s: %w", peerID, network.ErrPeerNotConnected)
	}
	return peer.handler.Handle(ctx, procedure, payload)
}

func (n *Network) ApplyPenalty(peerID string, penalty uint32) {
	n.hub.penalize(peerID, penalty)
}

// StatusFromStorage reports the tip of the block store together with the
// prevoted height returned by prevoted.
func StatusFromStorage(blocks storage.Blocks, prevoted func() uint64) StatusFunc {
	return func() (Status, error) {
		last, err := blocks.Last()
		if errors.Is(err, storage.ErrNotFound) {
			return Status{}, nil
		}
		if err != nil {
			return Status{}, err
		}
		return Status{
			Height:            last.Height(),
			MaxHeightPrevoted: prevoted(),
			BlockID:           last.ID(),
			BlockVersion:      last.Header.Version,
		}, nil
	}
}
