package consensus

import (
	"math"
)

// Config holds the parameters of the Coordinator.
type Config struct {
	// ActiveDelegates is the number of delegates forging in each round.
	ActiveDelegates uint64
	// StartingHeight is the first height of the chain the finality engine
	// considers, for example the height at which the chain was migrated.
	// Nothing at or below it is ever re-evaluated.
	StartingHeight uint64
	// DisjointToleranceHeight is the highest height at which headers
	// disjoint from their generator's history are tolerated.
	DisjointToleranceHeight uint64
}

func DefaultConfig() Config {
	return Config{
		ActiveDelegates:         101,
		StartingHeight:          0,
		DisjointToleranceHeight: math.MaxUint64,
	}
}

type OptionFunc func(*Config)

// WithActiveDelegates sets the number of delegates per round.
func WithActiveDelegates(n uint64) OptionFunc {
	return func(cfg *Config) {
		cfg.ActiveDelegates = n
	}
}

// WithStartingHeight sets the height below which the chain is never
// re-evaluated.
func WithStartingHeight(height uint64) OptionFunc {
	return func(cfg *Config) {
		cfg.StartingHeight = height
	}
}

// WithDisjointToleranceHeight limits the tolerance for headers disjoint from
// their generator's history to heights up to the given one.
func WithDisjointToleranceHeight(height uint64) OptionFunc {
	return func(cfg *Config) {
		cfg.DisjointToleranceHeight = height
	}
}
