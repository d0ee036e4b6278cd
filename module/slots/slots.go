package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/module"
)

// Slots divides time into fixed-length forging slots starting at genesis.
type Slots struct {
	genesisTime uint64
	blockTime   uint64
	now         func() time.Time
}

var _ module.Slots = (*Slots)(nil)

// OptionFunc configures Slots.
type OptionFunc func(*Slots)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) OptionFunc {
	return func(s *Slots) {
		s.now = now
	}
}

// New creates a slot schedule. blockTime is the slot length in seconds.
func New(genesisTime uint64, blockTime uint64, opts ...OptionFunc) (*Slots, error) {
	if blockTime == 0 {
		return nil, fmt.Errorf("block time must be positive")
	}
	s := &Slots{
		genesisTime: genesisTime,
		blockTime:   blockTime,
		now:         time.Now,
	}
	for _, apply := range opts {
		apply(s)
	}
	return s, nil
}

func (s *Slots) SlotNumber(timestamp uint64) uint64 {
	if timestamp < s.genesisTime {
		return 0
	}
	return (timestamp - s.genesisTime) / s.blockTime
}

func (s *Slots) CurrentSlot() uint64 {
	return s.SlotNumber(uint64(s.now().Unix()))
}

func (s *Slots) IsWithinTimeslot(slot uint64, timestamp uint64) bool {
	return s.SlotNumber(timestamp) == slot
}

// SlotTime returns the timestamp at which the slot begins.
func (s *Slots) SlotTime(slot uint64) uint64 {
	return s.genesisTime + slot*s.blockTime
}

// StaticRounds is a delegate schedule in which the same delegates forge
// every round.
type StaticRounds struct {
	delegates []chain.PublicKey
}

var _ module.Rounds = (*StaticRounds)(nil)

func NewStaticRounds(delegates []chain.PublicKey) (*StaticRounds, error) {
	if len(delegates) == 0 {
		return nil, fmt.Errorf("delegate list must not be empty")
	}
	return &StaticRounds{delegates: delegates}, nil
}

func (r *StaticRounds) ActiveDelegates() uint64 {
	return uint64(len(r.delegates))
}

// CalcRound returns the one-based round of the given height.
func (r *StaticRounds) CalcRound(height uint64) uint64 {
	n := r.ActiveDelegates()
	return (height + n - 1) / n
}

func (r *StaticRounds) ForgerKeysForRound(_ context.Context, _ uint64) ([]chain.PublicKey, error) {
	keys := make([]chain.PublicKey, len(r.delegates))
	copy(keys, r.delegates)
	return keys, nil
}
