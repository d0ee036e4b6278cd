package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/dposnet/bft-core/model/chain"
)

const (

	// codes for chain state
	codeFinalizedHeight = 10

	// codes for entities and indexes of the local chain
	codeBlock       = 20
	codeHeightIndex = 21

	// codes for the temporary block buffer
	codeTempBlock = 30
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case string:
		return []byte(i)
	case chain.Identifier:
		return i[:]
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
