package module

import (
	"errors"

	"github.com/dposnet/bft-core/module/irrecoverable"
)

// ErrMultipleStartup is raised when a component is started more than once.
var ErrMultipleStartup = errors.New("component may only be started once")

// ReadyDoneAware provides an interface to wait for startup and shutdown of a
// module. Modules support a single start-stop cycle.
type ReadyDoneAware interface {
	// Ready returns a channel which is closed once startup has completed.
	Ready() <-chan struct{}

	// Done returns a channel which is closed once shutdown has completed.
	Done() <-chan struct{}
}

// Startable is a module which is started with a SignalerContext. Shutdown is
// triggered by cancelling the context.
type Startable interface {
	// Start starts the module. It panics if called more than once.
	Start(irrecoverable.SignalerContext)
}
