package bft

import "math"

// Thresholds derived from the number of active delegates.
type Thresholds struct {
	ActiveDelegates uint64
	PreVote         uint64
	PreCommit       uint64
	Processing      uint64
	WindowCapacity  uint64
}

// ComputeThresholds derives the voting thresholds for the given number of
// active delegates.
func ComputeThresholds(activeDelegates uint64) Thresholds {
	twoThirds := (2*activeDelegates + 2) / 3
	return Thresholds{
		ActiveDelegates: activeDelegates,
		PreVote:         twoThirds,
		PreCommit:       twoThirds,
		Processing:      3*activeDelegates - 1,
		WindowCapacity:  5 * activeDelegates,
	}
}

type config struct {
	disjointToleranceHeight uint64
}

func defaultConfig() config {
	return config{
		disjointToleranceHeight: math.MaxUint64,
	}
}

// OptionFunc configures a FinalityEngine.
type OptionFunc func(*config)

// WithDisjointToleranceHeight limits the heights at which a ChainDisjointError
// is tolerated. Headers above the given height that are disjoint from their
// generator's history are rejected. By default disjoint headers are tolerated
// at every height.
func WithDisjointToleranceHeight(height uint64) OptionFunc {
	return func(cfg *config) {
		cfg.disjointToleranceHeight = height
	}
}
