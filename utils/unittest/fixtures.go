package unittest

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand"

	"github.com/dposnet/bft-core/model/chain"
)

func IdentifierFixture() chain.Identifier {
	var id chain.Identifier
	_, _ = rand.Read(id[:])
	return id
}

func PublicKeyFixture() chain.PublicKey {
	var key chain.PublicKey
	_, _ = rand.Read(key[:])
	return key
}

// DelegateKey returns a deterministic key for the i-th delegate.
func DelegateKey(i int) chain.PublicKey {
	return chain.PublicKey(chain.MakeID(fmt.Sprintf("delegate-%d", i)))
}

// DelegateKeys returns the keys of n deterministic delegates.
func DelegateKeys(n int) []chain.PublicKey {
	keys := make([]chain.PublicKey, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, DelegateKey(i))
	}
	return keys
}

// HeaderFixture returns a header at the given height with random identity
// fields, modified by the given options.
func HeaderFixture(height uint64, opts ...func(*chain.BlockHeader)) *chain.BlockHeader {
	header := &chain.BlockHeader{
		ID:               IdentifierFixture(),
		Height:           height,
		PreviousBlockID:  IdentifierFixture(),
		GeneratorKey:     PublicKeyFixture(),
		Timestamp:        1_600_000_000 + height*10,
		ActiveSinceRound: 1,
	}
	for _, apply := range opts {
		apply(header)
	}
	return header
}

func WithGenerator(key chain.PublicKey) func(*chain.BlockHeader) {
	return func(header *chain.BlockHeader) {
		header.GeneratorKey = key
	}
}

func WithMaxHeightPreviouslyForged(height uint64) func(*chain.BlockHeader) {
	return func(header *chain.BlockHeader) {
		header.MaxHeightPreviouslyForged = height
	}
}

func WithMaxHeightPrevoted(height uint64) func(*chain.BlockHeader) {
	return func(header *chain.BlockHeader) {
		header.MaxHeightPrevoted = height
	}
}

func WithParent(parent *chain.BlockHeader) func(*chain.BlockHeader) {
	return func(header *chain.BlockHeader) {
		header.PreviousBlockID = parent.ID
		header.Height = parent.Height + 1
	}
}

// BlockFixture returns a block with a random payload whose ID matches its
// content.
func BlockFixture(height uint64, opts ...func(*chain.BlockHeader)) *chain.Block {
	block := &chain.Block{
		Header:  *HeaderFixture(height, opts...),
		Payload: RandomBytes(16),
	}
	block.Header.ID = block.ComputeID()
	return block
}

func PeerInfoFixture(opts ...func(*chain.PeerInfo)) chain.PeerInfo {
	height := uint64(mrand.Intn(1000) + 1)
	peer := chain.PeerInfo{
		PeerID:            fmt.Sprintf("peer-%x", RandomBytes(4)),
		Height:            height,
		MaxHeightPrevoted: height / 2,
		BlockID:           IdentifierFixture(),
		BlockVersion:      2,
	}
	for _, apply := range opts {
		apply(&peer)
	}
	return peer
}

func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}
