package notifications

import (
	"github.com/dposnet/bft-core/consensus/bft"
)

// NoopConsumer is an implementation of the finalization consumer that
// doesn't do anything.
type NoopConsumer struct{}

var _ bft.FinalizationConsumer = (*NoopConsumer)(nil)

func NewNoopConsumer() *NoopConsumer {
	return &NoopConsumer{}
}

func (*NoopConsumer) OnFinalizedHeightChanged(uint64, uint64) {}
