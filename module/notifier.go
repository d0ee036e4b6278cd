package module

// Notifier is a concurrency primitive for informing worker routines about the
// arrival of new work unit(s). Notifiers behave like channels in that they
// can be passed by value and still allow concurrent updates of the same
// internal state.
//
// A notification that arrives while no worker is waiting is remembered, and
// any number of notifications collapse into a single one.
type Notifier struct {
	notifier chan struct{} // buffered channel with capacity 1
}

// NewNotifier instantiates a Notifier.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sends a notification without blocking.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns a channel for receiving notifications
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
