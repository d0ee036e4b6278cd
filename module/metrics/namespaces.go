package metrics

// Prometheus metric namespaces
const (
	namespaceConsensus = "consensus"
	namespaceStorage   = "storage"
)

// Consensus subsystems
const (
	subsystemFinality = "finality"
	subsystemSync     = "sync"
)

// Storage subsystems
const (
	subsystemCache = "cache"
)
