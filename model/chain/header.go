package chain

import (
	"fmt"
	"time"
)

// BlockHeader contains all fields of a block relevant to the BFT protocol.
// Headers are immutable once admitted to the consensus core.
type BlockHeader struct {
	ID              Identifier
	Version         uint32
	Height          uint64
	PreviousBlockID Identifier
	GeneratorKey    PublicKey
	// Timestamp is the unix time in seconds at which the block was forged.
	Timestamp uint64
	// MaxHeightPreviouslyForged is the height of the last block forged by the
	// same generator, as claimed by the generator.
	MaxHeightPreviouslyForged uint64
	// MaxHeightPrevoted is the highest height with enough pre-votes as seen by
	// the generator at forging time.
	MaxHeightPrevoted uint64
	// ActiveSinceRound is the first round of the generator's current
	// uninterrupted membership in the active delegate set.
	ActiveSinceRound uint64
	// ReceivedAt is the unix time in seconds at which the block arrived from
	// the network; zero for self-forged or synced blocks.
	ReceivedAt uint64
	Signature  []byte
}

// Fingerprint hashes every field which is covered by the block signature.
// ID, ReceivedAt and Signature are excluded.
func (h *BlockHeader) Fingerprint() Identifier {
	return MakeID(struct {
		Version                   uint32
		Height                    uint64
		PreviousBlockID           Identifier
		GeneratorKey              PublicKey
		Timestamp                 uint64
		MaxHeightPreviouslyForged uint64
		MaxHeightPrevoted         uint64
		ActiveSinceRound          uint64
	}{
		Version:                   h.Version,
		Height:                    h.Height,
		PreviousBlockID:           h.PreviousBlockID,
		GeneratorKey:              h.GeneratorKey,
		Timestamp:                 h.Timestamp,
		MaxHeightPreviouslyForged: h.MaxHeightPreviouslyForged,
		MaxHeightPrevoted:         h.MaxHeightPrevoted,
		ActiveSinceRound:          h.ActiveSinceRound,
	})
}

// Time returns the forging timestamp.
func (h *BlockHeader) Time() time.Time {
	return time.Unix(int64(h.Timestamp), 0).UTC()
}

// WasReceived reports whether the header carries a network arrival time.
func (h *BlockHeader) WasReceived() bool {
	return h.ReceivedAt != 0
}

// Validate checks the shape of the header. It does not check the header
// against any chain state.
func (h *BlockHeader) Validate() error {
	if h.ID.IsZero() {
		return fmt.Errorf("block header has zero ID")
	}
	if h.Height == 0 {
		return fmt.Errorf("block header height must be positive")
	}
	if h.Height > 1 && h.PreviousBlockID.IsZero() {
		return fmt.Errorf("block header at height %d has zero previous block ID", h.Height)
	}
	if h.GeneratorKey.IsZero() {
		return fmt.Errorf("block header has empty generator key")
	}
	if h.ActiveSinceRound == 0 {
		return fmt.Errorf("block header has zero active-since round")
	}
	if h.Height > 1 && h.MaxHeightPrevoted >= h.Height {
		return fmt.Errorf("max height prevoted (%d) must be below header height (%d)", h.MaxHeightPrevoted, h.Height)
	}
	return nil
}

// String returns a compact description for logs and test output.
func (h *BlockHeader) String() string {
	return fmt.Sprintf("header(id=%s height=%d generator=%s mhpf=%d mhpv=%d)",
		h.ID.TerminalString(), h.Height, h.GeneratorKey.String()[:8],
		h.MaxHeightPreviouslyForged, h.MaxHeightPrevoted)
}
