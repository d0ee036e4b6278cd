package logging

import (
	"encoding/hex"

	"github.com/dposnet/bft-core/model/chain"
)

// ID returns the bytes of the identifier for zerolog's Hex field.
func ID(id chain.Identifier) []byte {
	return id[:]
}

// Block returns the ID bytes of the block.
func Block(block *chain.Block) []byte {
	return ID(block.ID())
}

func IDs(ids []chain.Identifier) []string {
	ss := make([]string, 0, len(ids))
	for _, id := range ids {
		ss = append(ss, hex.EncodeToString(id[:]))
	}
	return ss
}
