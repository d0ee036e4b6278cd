package slots

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dposnet/bft-core/utils/unittest"
)

func TestSlots(t *testing.T) {
	now := time.Unix(unittest.GenesisTime+95, 0)
	s, err := New(unittest.GenesisTime, unittest.BlockTime, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), s.SlotNumber(unittest.GenesisTime-5))
	assert.Equal(t, uint64(0), s.SlotNumber(unittest.GenesisTime+9))
	assert.Equal(t, uint64(1), s.SlotNumber(unittest.GenesisTime+10))
	assert.Equal(t, uint64(9), s.CurrentSlot())
	assert.Equal(t, uint64(unittest.GenesisTime+30), s.SlotTime(3))

	assert.True(t, s.IsWithinTimeslot(3, unittest.GenesisTime+35))
	assert.False(t, s.IsWithinTimeslot(3, unittest.GenesisTime+40))

	_, err = New(unittest.GenesisTime, 0)
	require.Error(t, err)
}

func TestStaticRounds(t *testing.T) {
	delegates := unittest.DelegateKeys(4)
	rounds, err := NewStaticRounds(delegates)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), rounds.ActiveDelegates())
	assert.Equal(t, uint64(1), rounds.CalcRound(1))
	assert.Equal(t, uint64(1), rounds.CalcRound(4))
	assert.Equal(t, uint64(2), rounds.CalcRound(5))

	keys, err := rounds.ForgerKeysForRound(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, delegates, keys)

	_, err = NewStaticRounds(nil)
	require.Error(t, err)
}
