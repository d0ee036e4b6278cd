package chain

// PeerInfo is the chain status a connected peer advertises.
type PeerInfo struct {
	PeerID            string
	Height            uint64
	MaxHeightPrevoted uint64
	BlockID           Identifier
	BlockVersion      uint32
}

// Tip returns a header carrying only the fork-choice relevant fields of
// the peer's advertised tip.
func (p PeerInfo) Tip() *BlockHeader {
	return &BlockHeader{
		ID:                p.BlockID,
		Height:            p.Height,
		MaxHeightPrevoted: p.MaxHeightPrevoted,
	}
}
