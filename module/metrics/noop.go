package metrics

import (
	"time"

	"github.com/dposnet/bft-core/module"
)

type NoopCollector struct{}

var (
	_ module.BFTMetrics   = (*NoopCollector)(nil)
	_ module.SyncMetrics  = (*NoopCollector)(nil)
	_ module.CacheMetrics = (*NoopCollector)(nil)
)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) FinalizedHeight(height uint64)                                       {}
func (nc *NoopCollector) PrevotedHeight(height uint64)                                        {}
func (nc *NoopCollector) HeaderAdmitted()                                                     {}
func (nc *NoopCollector) HeaderRejected(reason string)                                        {}
func (nc *NoopCollector) MechanismStarted(mechanism string)                                   {}
func (nc *NoopCollector) MechanismFinished(mechanism string, outcome string, _ time.Duration) {}
func (nc *NoopCollector) BlocksRolledBack(count int)                                          {}
func (nc *NoopCollector) PeerPenalized()                                                      {}
func (nc *NoopCollector) CacheEntries(resource string, entries uint)                          {}
func (nc *NoopCollector) CacheHit(resource string)                                            {}
func (nc *NoopCollector) CacheNotFound(resource string)                                       {}
func (nc *NoopCollector) CacheMiss(resource string)                                           {}
