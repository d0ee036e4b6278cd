package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the series of the named metric carrying the
// given label values. Histograms report their sample count.
func sample(t *testing.T, registry *prometheus.Registry, name string, labels ...string) float64 {
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	series:
		for _, metric := range family.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for i, pair := range pairs {
				if pair.GetValue() != labels[i] {
					continue series
				}
			}
			switch {
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	require.Failf(t, "metric not found", "%s %v", name, labels)
	return 0
}

func TestBFTCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewBFTCollector(registry)

	collector.FinalizedHeight(15)
	collector.PrevotedHeight(18)
	collector.HeaderAdmitted()
	collector.HeaderAdmitted()
	collector.HeaderRejected("fork_choice")

	assert.Equal(t, 15.0, sample(t, registry, "consensus_finality_finalized_height"))
	assert.Equal(t, 18.0, sample(t, registry, "consensus_finality_prevoted_height"))
	assert.Equal(t, 2.0, sample(t, registry, "consensus_finality_headers_admitted_total"))
	assert.Equal(t, 1.0, sample(t, registry, "consensus_finality_headers_rejected_total", "fork_choice"))
}

func TestSyncCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewSyncCollector(registry)

	collector.MechanismStarted("fast_switch")
	collector.MechanismFinished("fast_switch", "success", 2*time.Second)
	collector.BlocksRolledBack(4)
	collector.PeerPenalized()

	assert.Equal(t, 1.0, sample(t, registry, "consensus_sync_mechanism_runs_total", "fast_switch"))
	assert.Equal(t, 1.0, sample(t, registry, "consensus_sync_mechanism_duration_seconds", "fast_switch", "success"))
	assert.Equal(t, 4.0, sample(t, registry, "consensus_sync_blocks_rolled_back_total"))
	assert.Equal(t, 1.0, sample(t, registry, "consensus_sync_peers_penalized_total"))
}

func TestCacheCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCacheCollector(registry)

	collector.CacheEntries(ResourceBlock, 7)
	collector.CacheHit(ResourceBlock)
	collector.CacheMiss(ResourceBlock)
	collector.CacheMiss(ResourceBlock)
	collector.CacheNotFound(ResourceBlock)

	assert.Equal(t, 7.0, sample(t, registry, "storage_cache_entries_total", ResourceBlock))
	assert.Equal(t, 1.0, sample(t, registry, "storage_cache_hits_total", ResourceBlock))
	assert.Equal(t, 2.0, sample(t, registry, "storage_cache_misses_total", ResourceBlock))
	assert.Equal(t, 1.0, sample(t, registry, "storage_cache_notfound_total", ResourceBlock))
}
