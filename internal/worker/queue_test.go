package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 100; i++ {
		require.True(t, q.Push(i))
	}
	require.Equal(t, 100, q.Len())
	for i := 0; i < 100; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.TryPop()
	require.False(t, ok)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue[string]()
	got := make(chan string, 1)
	go func() {
		v, _ := q.Pop(context.Background())
		got <- v
	}()

	select {
	case <-got:
		t.Fatal("pop returned before push")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("x")
	select {
	case v := <-got:
		require.Equal(t, "x", v)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestQueueCloseDrainsThenStops(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1)
	q.Push(2)
	q.Close()
	q.Close()
	require.False(t, q.Push(3))

	v, ok := q.Pop(context.Background())
	require.True(t, ok)
	require.Equal(t, 1, v)
	v, ok = q.Pop(context.Background())
	require.True(t, ok)
	require.Equal(t, 2, v)
	_, ok = q.Pop(context.Background())
	require.False(t, ok)
}

func TestQueuePopHonoursContext(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok := q.Pop(ctx)
	require.False(t, ok)
}
