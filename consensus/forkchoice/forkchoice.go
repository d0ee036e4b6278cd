// Package forkchoice classifies a received block relative to the tip of the
// local chain. Every component deciding whether to switch chains delegates to
// Classify.
package forkchoice

import (
	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
)

// Status is the relation of a received block to the local tip.
type Status int

const (
	// Discard means the block must be rejected.
	Discard Status = iota
	// Identical means the block is the local tip.
	Identical
	// ValidExtension means the block is the child of the local tip.
	ValidExtension
	// DoubleForging means the generator of the local tip forged a second
	// block at the same coordinates.
	DoubleForging
	// TieBreak means another generator forged a block at the same
	// coordinates, the local tip arrived late and the received block on time.
	TieBreak
	// DifferentChain means the block is on a chain preferred over the local
	// chain.
	DifferentChain
)

func (s Status) String() string {
	switch s {
	case Discard:
		return "discard"
	case Identical:
		return "identical"
	case ValidExtension:
		return "valid_extension"
	case DoubleForging:
		return "double_forging"
	case TieBreak:
		return "tie_break"
	case DifferentChain:
		return "different_chain"
	default:
		return "unknown"
	}
}

// PrefersCandidate reports whether the received block should replace or
// extend the local tip.
func (s Status) PrefersCandidate() bool {
	return s == ValidExtension || s == TieBreak || s == DifferentChain
}

// Classify returns the relation of candidate to the local tip. The checks are
// applied in order and the first match wins.
func Classify(slots module.Slots, local *chain.BlockHeader, candidate *chain.BlockHeader) Status {
	switch {
	case IsValidBlock(local, candidate):
		return ValidExtension
	case IsIdenticalBlock(local, candidate):
		return Identical
	case IsDoubleForging(local, candidate):
		return DoubleForging
	case IsTieBreak(slots, local, candidate):
		return TieBreak
	case IsDifferentChain(local, candidate):
		return DifferentChain
	default:
		return Discard
	}
}

// IsValidBlock reports whether candidate is the child of local.
func IsValidBlock(local, candidate *chain.BlockHeader) bool {
	return local.Height+1 == candidate.Height && local.ID == candidate.PreviousBlockID
}

// IsIdenticalBlock reports whether both headers are the same block.
func IsIdenticalBlock(local, candidate *chain.BlockHeader) bool {
	return local.ID == candidate.ID
}

// IsDuplicateBlock reports whether both headers occupy the same position:
// same height, same parent and built on the same prevoted height.
func IsDuplicateBlock(local, candidate *chain.BlockHeader) bool {
	return local.Height == candidate.Height &&
		local.MaxHeightPrevoted == candidate.MaxHeightPrevoted &&
		local.PreviousBlockID == candidate.PreviousBlockID
}

// IsDoubleForging reports whether the same generator forged both duplicates.
func IsDoubleForging(local, candidate *chain.BlockHeader) bool {
	return IsDuplicateBlock(local, candidate) && local.GeneratorKey == candidate.GeneratorKey
}

// IsTieBreak reports whether candidate replaces a duplicate local tip: the
// local tip is from an earlier slot and arrived outside it, while candidate
// arrived within its own slot.
func IsTieBreak(slots module.Slots, local, candidate *chain.BlockHeader) bool {
	return IsDuplicateBlock(local, candidate) &&
		slots.SlotNumber(local.Timestamp) < slots.SlotNumber(candidate.Timestamp) &&
		!IsReceivedWithinForgingSlot(slots, local) &&
		IsReceivedWithinForgingSlot(slots, candidate)
}

// IsDifferentChain reports whether candidate is on a preferred chain: it
// has a higher prevoted height, or the same prevoted height and a higher
// height.
func IsDifferentChain(local, candidate *chain.BlockHeader) bool {
	return local.MaxHeightPrevoted < candidate.MaxHeightPrevoted ||
		(local.Height < candidate.Height && local.MaxHeightPrevoted == candidate.MaxHeightPrevoted)
}

// IsReceivedWithinForgingSlot reports whether the header arrived in the slot
// it was forged for. Headers without arrival time were forged locally or
// synced and count as on time.
func IsReceivedWithinForgingSlot(slots module.Slots, header *chain.BlockHeader) bool {
	if !header.WasReceived() {
		return true
	}
	return slots.IsWithinTimeslot(slots.SlotNumber(header.Timestamp), header.ReceivedAt)
}
