package pubsub

import (
	"sync"

	"github.com/dposnet/bft-core/consensus/bft"
)

type OnFinalizedHeightConsumer = func(previous uint64, finalized uint64)

// FinalizationDistributor subscribes to finality updates of the finality
// engine and distributes them to its subscribers. Subscribers are called
// synchronously and must be non-blocking.
type FinalizationDistributor struct {
	consumers []OnFinalizedHeightConsumer
	lock      sync.RWMutex
}

var _ bft.FinalizationConsumer = (*FinalizationDistributor)(nil)

func NewFinalizationDistributor() *FinalizationDistributor {
	return &FinalizationDistributor{
		consumers: make([]OnFinalizedHeightConsumer, 0),
	}
}

func (p *FinalizationDistributor) AddOnFinalizedHeightConsumer(consumer OnFinalizedHeightConsumer) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.consumers = append(p.consumers, consumer)
}

func (p *FinalizationDistributor) AddConsumer(consumer bft.FinalizationConsumer) {
	p.AddOnFinalizedHeightConsumer(consumer.OnFinalizedHeightChanged)
}

func (p *FinalizationDistributor) OnFinalizedHeightChanged(previous uint64, finalized uint64) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for _, consumer := range p.consumers {
		consumer(previous, finalized)
	}
}
