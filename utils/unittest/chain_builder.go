package unittest

import (
	"fmt"

	"github.com/dposnet/bft-core/model/chain"
)

const (
	// GenesisTime is the unix timestamp of slot zero used by ChainBuilder.
	GenesisTime = 1_600_000_000
	// BlockTime is the slot duration in seconds used by ChainBuilder.
	BlockTime = 10
)

// ChainBuilder produces chains forged by an honest rotation of delegates:
// the delegate of slot s is delegates[s mod N], and every delegate cites the
// height of its own previous block as maxHeightPreviouslyForged.
type ChainBuilder struct {
	delegates  []chain.PublicKey
	lastForged map[chain.PublicKey]uint64
	blocks     []*chain.Block
	slot       uint64
	branch     string
}

func NewChainBuilder(delegates int) *ChainBuilder {
	return &ChainBuilder{
		delegates:  DelegateKeys(delegates),
		lastForged: make(map[chain.PublicKey]uint64),
		branch:     "main",
	}
}

func (b *ChainBuilder) Delegates() []chain.PublicKey {
	return b.delegates
}

// Next forges the next block in the current slot. The caller provides the
// maxHeightPrevoted the generator observed, usually taken from the finality
// engine the chain is fed into.
func (b *ChainBuilder) Next(maxHeightPrevoted uint64) *chain.Block {
	generator := b.delegates[b.slot%uint64(len(b.delegates))]
	height := uint64(len(b.blocks)) + 1

	block := &chain.Block{
		Header: chain.BlockHeader{
			Version:                   2,
			Height:                    height,
			GeneratorKey:              generator,
			Timestamp:                 GenesisTime + b.slot*BlockTime,
			MaxHeightPreviouslyForged: b.lastForged[generator],
			MaxHeightPrevoted:         maxHeightPrevoted,
			ActiveSinceRound:          1,
		},
		Payload: []byte(fmt.Sprintf("%s-%d", b.branch, height)),
	}
	if tip := b.Tip(); tip != nil {
		block.Header.PreviousBlockID = tip.ID()
	}
	block.Header.ID = block.ComputeID()

	b.blocks = append(b.blocks, block)
	b.lastForged[generator] = height
	b.slot++
	return block
}

// Skip leaves the next n slots empty.
func (b *ChainBuilder) Skip(n uint64) *ChainBuilder {
	b.slot += n
	return b
}

// Extend forges n blocks, asking prevoted for the maxHeightPrevoted of each.
func (b *ChainBuilder) Extend(n int, prevoted func() uint64) []*chain.Block {
	blocks := make([]*chain.Block, 0, n)
	for i := 0; i < n; i++ {
		blocks = append(blocks, b.Next(prevoted()))
	}
	return blocks
}

// Fork returns a builder sharing the blocks up to and including the given
// height. Blocks forged by the fork carry a different payload and therefore
// different IDs.
func (b *ChainBuilder) Fork(height uint64, branch string) *ChainBuilder {
	fork := &ChainBuilder{
		delegates:  b.delegates,
		lastForged: make(map[chain.PublicKey]uint64),
		blocks:     append([]*chain.Block(nil), b.blocks[:height]...),
		branch:     branch,
	}
	for _, block := range fork.blocks {
		fork.lastForged[block.Header.GeneratorKey] = block.Height()
	}
	if height > 0 {
		fork.slot = (fork.blocks[height-1].Header.Timestamp-GenesisTime)/BlockTime + 1
	}
	return fork
}

func (b *ChainBuilder) Tip() *chain.Block {
	if len(b.blocks) == 0 {
		return nil
	}
	return b.blocks[len(b.blocks)-1]
}

// ByHeight returns the block at the given height, which must exist.
func (b *ChainBuilder) ByHeight(height uint64) *chain.Block {
	return b.blocks[height-1]
}

func (b *ChainBuilder) Blocks() []*chain.Block {
	return b.blocks
}

// Headers returns pointers to copies of the headers of all blocks.
func (b *ChainBuilder) Headers() []*chain.BlockHeader {
	return chain.Headers(b.blocks)
}
