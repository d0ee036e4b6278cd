package fifoqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFifoQueue_Order(t *testing.T) {
	queue, err := NewFifoQueue[int]()
	require.NoError(t, err)

	_, ok := queue.Pop()
	assert.False(t, ok)
	_, ok = queue.Front()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		assert.True(t, queue.Push(i))
	}
	head, ok := queue.Front()
	require.True(t, ok)
	assert.Equal(t, 0, head)
	assert.Equal(t, 5, queue.Len())

	for i := 0; i < 5; i++ {
		element, ok := queue.Pop()
		require.True(t, ok)
		assert.Equal(t, i, element)
	}
	assert.Equal(t, 0, queue.Len())
}

func TestFifoQueue_Capacity(t *testing.T) {
	var lengths []int
	var mu sync.Mutex
	queue, err := NewFifoQueue[string](
		WithCapacity(2),
		WithLengthObserver(func(length int) {
			mu.Lock()
			defer mu.Unlock()
			lengths = append(lengths, length)
		}),
	)
	require.NoError(t, err)

	assert.True(t, queue.Push("a"))
	assert.True(t, queue.Push("b"))
	assert.False(t, queue.Push("c"))
	_, _ = queue.Pop()

	assert.Equal(t, []int{1, 2, 1}, lengths)
}

func TestFifoQueue_InvalidOptions(t *testing.T) {
	_, err := NewFifoQueue[int](WithCapacity(0))
	assert.Error(t, err)
	_, err = NewFifoQueue[int](WithLengthObserver(nil))
	assert.Error(t, err)
}
