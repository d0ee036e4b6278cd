package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dposnet/bft-core/module"
)

// SyncCollector exposes the activity of the chain recovery mechanisms.
type SyncCollector struct {
	mechanismStarted  *prometheus.CounterVec
	mechanismDuration *prometheus.HistogramVec
	blocksRolledBack  prometheus.Counter
	peersPenalized    prometheus.Counter
}

var _ module.SyncMetrics = (*SyncCollector)(nil)

func NewSyncCollector(registerer prometheus.Registerer) *SyncCollector {
	factory := promauto.With(registerer)
	return &SyncCollector{
		mechanismStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "mechanism_runs_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemSync,
			Help:      "the number of started runs per recovery mechanism",
		}, []string{LabelMechanism}),
		mechanismDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "mechanism_duration_seconds",
			Namespace: namespaceConsensus,
			Subsystem: subsystemSync,
			Help:      "the duration of recovery mechanism runs by outcome",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		}, []string{LabelMechanism, LabelOutcome}),
		blocksRolledBack: factory.NewCounter(prometheus.CounterOpts{
			Name:      "blocks_rolled_back_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemSync,
			Help:      "the number of blocks deleted from the local chain by recovery mechanisms",
		}),
		peersPenalized: factory.NewCounter(prometheus.CounterOpts{
			Name:      "peers_penalized_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemSync,
			Help:      "the number of penalties applied to misbehaving peers",
		}),
	}
}

func (sc *SyncCollector) MechanismStarted(mechanism string) {
	sc.mechanismStarted.WithLabelValues(mechanism).Inc()
}

func (sc *SyncCollector) MechanismFinished(mechanism string, outcome string, duration time.Duration) {
	sc.mechanismDuration.WithLabelValues(mechanism, outcome).Observe(duration.Seconds())
}

func (sc *SyncCollector) BlocksRolledBack(count int) {
	sc.blocksRolledBack.Add(float64(count))
}

func (sc *SyncCollector) PeerPenalized() {
	sc.peersPenalized.Inc()
}
