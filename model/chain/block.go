package chain

// Block is a header plus an opaque transaction payload. The consensus core
// never inspects the payload.
type Block struct {
	Header  BlockHeader
	Payload []byte
}

// ID returns the ID of the block header.
func (b *Block) ID() Identifier {
	return b.Header.ID
}

// ComputeID derives the block ID from the header fingerprint and the
// payload.
func (b *Block) ComputeID() Identifier {
	return MakeID(struct {
		Header  Identifier
		Payload []byte
	}{
		Header:  b.Header.Fingerprint(),
		Payload: b.Payload,
	})
}

// Height returns the height of the block header.
func (b *Block) Height() uint64 {
	return b.Header.Height
}

// Extends reports whether b is the direct child of parent.
func (b *Block) Extends(parent *BlockHeader) bool {
	return b.Header.Height == parent.Height+1 && b.Header.PreviousBlockID == parent.ID
}

// Headers extracts the headers of the given blocks, preserving order.
func Headers(blocks []*Block) []*BlockHeader {
	headers := make([]*BlockHeader, 0, len(blocks))
	for _, block := range blocks {
		header := block.Header
		headers = append(headers, &header)
	}
	return headers
}
