package module

import (
	"context"

	"github.com/dposnet/bft-core/model/chain"
)

// Slots maps timestamps to forging time slots.
type Slots interface {
	// SlotNumber returns the slot containing the given unix timestamp.
	SlotNumber(timestamp uint64) uint64

	// CurrentSlot returns the slot of the current wall-clock time.
	CurrentSlot() uint64

	// IsWithinTimeslot reports whether the timestamp lies in the given slot.
	IsWithinTimeslot(slot uint64, timestamp uint64) bool
}

// Rounds provides the delegate schedule.
type Rounds interface {
	// ActiveDelegates returns the number of delegates forging in each round.
	ActiveDelegates() uint64

	// CalcRound returns the round containing the given height.
	CalcRound(height uint64) uint64

	// ForgerKeysForRound returns the keys of the delegates forging in the
	// given round.
	ForgerKeysForRound(ctx context.Context, round uint64) ([]chain.PublicKey, error)
}
