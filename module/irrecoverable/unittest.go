package irrecoverable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// MockSignalerContext is a SignalerContext that can be used in tests.
type MockSignalerContext struct {
	context.Context
	t           *testing.T
	expectError error
}

var _ SignalerContext = &MockSignalerContext{}

func (m MockSignalerContext) sealed() {}

func (m MockSignalerContext) Throw(err error) {
	if m.expectError != nil {
		require.ErrorIs(m.t, err, m.expectError)
		return
	}
	m.t.Fatalf("mock signaler context received error: %v", err)
}

// NewMockSignalerContext creates a new MockSignalerContext which fails the
// test on any thrown error.
func NewMockSignalerContext(t *testing.T, ctx context.Context) *MockSignalerContext {
	return &MockSignalerContext{
		Context: ctx,
		t:       t,
	}
}

// NewMockSignalerContextWithCancel creates a new MockSignalerContext with a cancel function.
func NewMockSignalerContextWithCancel(t *testing.T, parent context.Context) (*MockSignalerContext, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	return NewMockSignalerContext(t, ctx), cancel
}

// NewMockSignalerContextExpectError creates a new MockSignalerContext which
// asserts that every thrown error wraps the expected error.
func NewMockSignalerContextExpectError(t *testing.T, ctx context.Context, err error) *MockSignalerContext {
	require.NotNil(t, err)
	return &MockSignalerContext{
		Context:     ctx,
		t:           t,
		expectError: err,
	}
}
