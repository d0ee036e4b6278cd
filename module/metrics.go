package module

import "time"

// BFTMetrics tracks the state of the consensus core.
type BFTMetrics interface {
	// FinalizedHeight tracks the finalized height of the local chain.
	FinalizedHeight(height uint64)

	// PrevotedHeight tracks the highest height with enough pre-votes.
	PrevotedHeight(height uint64)

	// HeaderAdmitted counts headers admitted to the finality engine.
	HeaderAdmitted()

	// HeaderRejected counts headers rejected by the finality engine.
	HeaderRejected(reason string)
}

// SyncMetrics tracks the chain recovery mechanisms.
type SyncMetrics interface {
	// MechanismStarted counts runs of the given recovery mechanism.
	MechanismStarted(mechanism string)

	// MechanismFinished records the outcome and duration of a run.
	MechanismFinished(mechanism string, outcome string, duration time.Duration)

	// BlocksRolledBack counts blocks deleted from the local chain.
	BlocksRolledBack(count int)

	// PeerPenalized counts penalties applied to peers.
	PeerPenalized()
}

// CacheMetrics tracks the storage caches.
type CacheMetrics interface {
	// CacheEntries reports the number of entries in the cache.
	CacheEntries(resource string, entries uint)

	// CacheHit counts cache hits.
	CacheHit(resource string)

	// CacheNotFound counts lookups of keys which are neither cached nor stored.
	CacheNotFound(resource string)

	// CacheMiss counts lookups which had to go to the database.
	CacheMiss(resource string)
}
