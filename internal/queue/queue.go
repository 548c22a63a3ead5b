// Package queue provides the unbounded FIFO queues that connect the relay
// loop, the connection pumps and the client facades. A Push never blocks on a
// slow consumer, so the relay loop can broadcast without waiting on anyone.
package queue

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO. A goroutine owns the buffer between the in and
// out channels; producers and the consumer only ever touch the channels.
type Queue[T any] struct {
	mu     sync.Mutex
	closed bool
	in     chan T
	out    chan T
}

// New starts an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.run()
	return q
}

func (q *Queue[T]) run() {
	var buf []T
	in := q.in
	for in != nil || len(buf) > 0 {
		// Only offer the out side when there is something buffered; sending
		// on a nil channel blocks forever, which disables that select case.
		var out chan T
		var next T
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}
		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, v)
		case out <- next:
			buf = buf[1:]
		}
	}
	close(q.out)
}

// Push enqueues v. It fails only once the queue has been closed.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.in <- v
	return nil
}

// Out is the consumer side. It is closed once the queue has been closed and
// every buffered value has been received.
func (q *Queue[T]) Out() <-chan T { return q.out }

// Close stops the queue. Values already buffered remain readable from Out.
// Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.in)
}
