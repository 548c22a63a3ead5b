package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO(t *testing.T) {
	q := New[int]()
	defer q.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, q.Push(i))
	}
	for i := 0; i < 100; i++ {
		assert.Equal(t, i, <-q.Out())
	}
}

func TestPushNeverBlocksWithoutConsumer(t *testing.T) {
	q := New[int]()
	defer q.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			q.Push(i)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pushes blocked on a missing consumer")
	}
}

func TestCloseDrainsThenEndsOut(t *testing.T) {
	q := New[string]()
	require.NoError(t, q.Push("a"))
	require.NoError(t, q.Push("b"))
	q.Close()

	assert.Equal(t, "a", <-q.Out())
	assert.Equal(t, "b", <-q.Out())
	_, ok := <-q.Out()
	assert.False(t, ok, "Out must close once drained")
}

func TestPushAfterClose(t *testing.T) {
	q := New[int]()
	q.Close()
	assert.ErrorIs(t, q.Push(1), ErrClosed)
}

func TestCloseIdempotent(t *testing.T) {
	q := New[int]()
	q.Close()
	q.Close()
	_, ok := <-q.Out()
	assert.False(t, ok)
}

func TestConcurrentProducers(t *testing.T) {
	q := New[int]()
	defer q.Close()

	const producers, each = 8, 100
	for p := 0; p < producers; p++ {
		go func() {
			for i := 0; i < each; i++ {
				q.Push(i)
			}
		}()
	}

	seen := 0
	timeout := time.After(5 * time.Second)
	for seen < producers*each {
		select {
		case <-q.Out():
			seen++
		case <-timeout:
			t.Fatalf("received %d of %d values", seen, producers*each)
		}
	}
}
