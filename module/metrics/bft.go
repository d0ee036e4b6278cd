package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dposnet/bft-core/module"
)

// BFTCollector exposes the state of the finality engine.
type BFTCollector struct {
	finalizedHeight prometheus.Gauge
	prevotedHeight  prometheus.Gauge
	headersAdmitted prometheus.Counter
	headersRejected *prometheus.CounterVec
}

var _ module.BFTMetrics = (*BFTCollector)(nil)

func NewBFTCollector(registerer prometheus.Registerer) *BFTCollector {
	factory := promauto.With(registerer)
	return &BFTCollector{
		finalizedHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "finalized_height",
			Namespace: namespaceConsensus,
			Subsystem: subsystemFinality,
			Help:      "the highest height with enough pre-commits",
		}),
		prevotedHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "prevoted_height",
			Namespace: namespaceConsensus,
			Subsystem: subsystemFinality,
			Help:      "the highest height with enough pre-votes",
		}),
		headersAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Name:      "headers_admitted_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemFinality,
			Help:      "the number of headers admitted to the header window",
		}),
		headersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "headers_rejected_total",
			Namespace: namespaceConsensus,
			Subsystem: subsystemFinality,
			Help:      "the number of headers rejected by the finality engine",
		}, []string{LabelReason}),
	}
}

func (bc *BFTCollector) FinalizedHeight(height uint64) {
	bc.finalizedHeight.Set(float64(height))
}

func (bc *BFTCollector) PrevotedHeight(height uint64) {
	bc.prevotedHeight.Set(float64(height))
}

func (bc *BFTCollector) HeaderAdmitted() {
	bc.headersAdmitted.Inc()
}

func (bc *BFTCollector) HeaderRejected(reason string) {
	bc.headersRejected.WithLabelValues(reason).Inc()
}
