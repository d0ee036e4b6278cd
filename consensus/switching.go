package consensus

import (
	"github.com/dposnet/bft-core/consensus/forkchoice"
)

// SwitchingMode is the reaction of the node to a block received from the
// network.
type SwitchingMode int

const (
	// SwitchNone keeps the local chain and ignores the block.
	SwitchNone SwitchingMode = iota
	// SwitchExtend applies the block on top of the local tip.
	SwitchExtend
	// SwitchReplaceTip replaces the local tip with the block.
	SwitchReplaceTip
	// SwitchChain moves the node to the chain of the block's sender.
	SwitchChain
	// SwitchPunish ignores the block and reports its generator.
	SwitchPunish
)

// SwitchingModeFor maps a fork choice status to the reaction of the node.
func SwitchingModeFor(status forkchoice.Status) SwitchingMode {
	switch status {
	case forkchoice.ValidExtension:
		return SwitchExtend
	case forkchoice.TieBreak:
		return SwitchReplaceTip
	case forkchoice.DifferentChain:
		return SwitchChain
	case forkchoice.DoubleForging:
		return SwitchPunish
	default:
		return SwitchNone
	}
}

func (m SwitchingMode) String() string {
	switch m {
	case SwitchNone:
		return "none"
	case SwitchExtend:
		return "extend"
	case SwitchReplaceTip:
		return "replace_tip"
	case SwitchChain:
		return "switch_chain"
	case SwitchPunish:
		return "punish"
	default:
		return "unknown"
	}
}
