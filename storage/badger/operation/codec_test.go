package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module/irrecoverable"
	"github.com/dposnet/bft-core/utils/unittest"
)

func TestCodec_Block(t *testing.T) {
	block := unittest.BlockFixture(42, unittest.WithMaxHeightPreviouslyForged(37))
	block.Header.ReceivedAt = block.Header.Timestamp + 3
	block.Header.Signature = unittest.RandomBytes(64)

	val, err := encodeEntity(block)
	require.NoError(t, err)

	var decoded chain.Block
	require.NoError(t, decodeValue(val, &decoded))
	assert.Equal(t, *block, decoded)
	assert.Equal(t, block.ComputeID(), decoded.ComputeID())
}

func TestCodec_CorruptedValue(t *testing.T) {
	var decoded chain.Block
	err := decodeValue([]byte{0xff, 0x00, 0x13}, &decoded)
	require.Error(t, err)
	assert.True(t, isErrUncompressedValue(err))
	assert.True(t, irrecoverable.IsException(err))
}
