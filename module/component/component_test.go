package component_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"

	"github.com/dposnet/bft-core/module"
	"github.com/dposnet/bft-core/module/component"
	"github.com/dposnet/bft-core/module/irrecoverable"
	"github.com/dposnet/bft-core/utils/unittest"
)

func TestComponentManager_Lifecycle(t *testing.T) {
	stopped := atomic.NewInt32(0)
	worker := func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
		ready()
		<-ctx.Done()
		stopped.Inc()
	}
	cm := component.NewComponentManagerBuilder().
		AddWorker(worker).
		AddWorker(worker).
		Build()

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	cm.Start(ctx)
	unittest.RequireCloseBefore(t, cm.Ready(), time.Second, "manager did not become ready")

	assert.Panics(t, func() { cm.Start(ctx) })

	cancel()
	unittest.RequireCloseBefore(t, cm.ShutdownSignal(), time.Second, "shutdown did not begin")
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "manager did not shut down")
	assert.Equal(t, int32(2), stopped.Load())
}

func TestComponentManager_ThrowShutsDownWorkers(t *testing.T) {
	expected := errors.New("fatal")
	cm := component.NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			ready()
			ctx.Throw(expected)
		}).
		Build()

	ctx := irrecoverable.NewMockSignalerContextExpectError(t, context.Background(), expected)
	cm.Start(ctx)
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "manager did not shut down after error")
}

func TestComponentManager_MultipleStartup(t *testing.T) {
	cm := component.NewComponentManagerBuilder().Build()
	ctx := irrecoverable.NewMockSignalerContext(t, context.Background())
	cm.Start(ctx)
	assert.PanicsWithValue(t, module.ErrMultipleStartup, func() { cm.Start(ctx) })
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "manager without workers did not finish")
}
