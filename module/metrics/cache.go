package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dposnet/bft-core/module"
)

// CacheCollector exposes the storage caches.
type CacheCollector struct {
	entries  *prometheus.GaugeVec
	hits     *prometheus.CounterVec
	notFound *prometheus.CounterVec
	misses   *prometheus.CounterVec
}

var _ module.CacheMetrics = (*CacheCollector)(nil)

func NewCacheCollector(registerer prometheus.Registerer) *CacheCollector {
	factory := promauto.With(registerer)
	return &CacheCollector{
		entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "entries_total",
			Namespace: namespaceStorage,
			Subsystem: subsystemCache,
			Help:      "the number of entries in the storage cache",
		}, []string{LabelResource}),
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "hits_total",
			Namespace: namespaceStorage,
			Subsystem: subsystemCache,
			Help:      "the number of hits for cached entries",
		}, []string{LabelResource}),
		notFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "notfound_total",
			Namespace: namespaceStorage,
			Subsystem: subsystemCache,
			Help:      "the number of times the queried item was not found in either cache or database",
		}, []string{LabelResource}),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "misses_total",
			Namespace: namespaceStorage,
			Subsystem: subsystemCache,
			Help:      "the number of times the queried item was loaded from the database",
		}, []string{LabelResource}),
	}
}

func (cc *CacheCollector) CacheEntries(resource string, entries uint) {
	cc.entries.WithLabelValues(resource).Set(float64(entries))
}

func (cc *CacheCollector) CacheHit(resource string) {
	cc.hits.WithLabelValues(resource).Inc()
}

func (cc *CacheCollector) CacheNotFound(resource string) {
	cc.notFound.WithLabelValues(resource).Inc()
}

func (cc *CacheCollector) CacheMiss(resource string) {
	cc.misses.WithLabelValues(resource).Inc()
}
