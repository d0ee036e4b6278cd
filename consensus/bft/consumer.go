package bft

// FinalizationConsumer consumes finality updates of the FinalityEngine.
// Implementations must be concurrency safe and non-blocking. The engine
// notifies on the goroutine that admitted the header, after releasing its own
// lock. Callers holding locks of their own while mutating the engine must
// defer the delivery, as consensus.Coordinator does.
type FinalizationConsumer interface {
	// OnFinalizedHeightChanged is called whenever the finalized height
	// increases. The engine never emits a notification for a decrease.
	OnFinalizedHeightChanged(previous uint64, finalized uint64)
}
