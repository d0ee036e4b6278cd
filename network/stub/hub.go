package stub

import (
	"sync"
)

// StatusFunc reports the chain status a node advertises to its peers.
type StatusFunc func() (Status, error)

// Hub connects in-memory networks so that they can reach each other
// without a real transport.
type Hub struct {
	mu        sync.RWMutex
	networks  map[string]*Network
	penalties map[string]uint32
	filter    func(peerID string, procedure string) error
}

// NewNetworkHub returns a hub with no networks plugged in.
func NewNetworkHub() *Hub {
	return &Hub{
		networks:  make(map[string]*Network),
		penalties: make(map[string]uint32),
	}
}

// GetNetwork returns the network of the node with the given ID, nil if it
// is not plugged in.
func (hub *Hub) GetNetwork(nodeID string) *Network {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return hub.networks[nodeID]
}

// Plug stores the network in the hub so that other networks can find it.
func (hub *Hub) Plug(net *Network) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.networks[net.nodeID] = net
}

// Unplug disconnects the node from every other node.
func (hub *Hub) Unplug(nodeID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.networks, nodeID)
}

// SetFilter installs a hook which runs before every request is delivered.
// A non-nil result fails the request with that error.
func (hub *Hub) SetFilter(filter func(peerID string, procedure string) error) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.filter = filter
}

// Penalty returns the accumulated penalty applied to the node.
func (hub *Hub) Penalty(nodeID string) uint32 {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return hub.penalties[nodeID]
}

func (hub *Hub) penalize(nodeID string, penalty uint32) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.penalties[nodeID] += penalty
}

func (hub *Hub) peers(except string) []*Network {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	peers := make([]*Network, 0, len(hub.networks))
	for id, net := range hub.networks {
		if id == except {
			continue
		}
		peers = append(peers, net)
	}
	return peers
}

func (hub *Hub) route(peerID string, procedure string) (*Network, error) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.filter != nil {
		err := hub.filter(peerID, procedure)
		if err != nil {
			return nil, err
		}
	}
	return hub.networks[peerID], nil
}
