// Package writer implements the per-peer writer serializer: an unbounded
// multi-producer single-consumer FIFO of outbound frame bodies, and the
// task that drains it to the owned stream in enqueue order.
//
// The single-consumer guarantee is what gives per-peer total write order
// for free (§9 design notes): many goroutines may Enqueue concurrently,
// but exactly one goroutine ever calls dequeue (the Run loop below), so
// bytes reach the peer in the order they were enqueued.
package writer

import (
	"fmt"
	"sync"

	"github.com/codefuse/lspproxy/internal/proxy/frame"
)

// Queue is an unbounded FIFO of frame bodies awaiting write to one peer.
// Protection against runaway memory growth is delegated to the operating
// environment, per spec: LSP peers are local and expected to drain.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  [][]byte
	closed bool
}

// NewQueue returns an empty, open Queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends body to the tail of the queue. It never blocks.
// Enqueueing onto a closed queue is a silent no-op: the peer is already
// gone and nothing will ever drain it.
func (q *Queue) Enqueue(body []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, body)
	q.cond.Signal()
}

// dequeue blocks until an item is available or the queue is closed and
// drained, returning ok=false in the latter case.
func (q *Queue) dequeue() (body []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return nil, false
	}

	body = q.items[0]
	q.items = q.items[1:]
	return body, true
}

// Close marks the queue closed. Items already enqueued are still
// delivered to dequeue/Run; only new Enqueue calls after Close are
// dropped. Once the backlog is drained, dequeue/Run returns.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the number of items currently queued, for diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Serializer owns the write half of one peer and drains a Queue into it
// in order, one frame at a time.
type Serializer struct {
	fw *frame.Writer
	q  *Queue
}

// NewSerializer binds w (the peer's output stream) to q.
func NewSerializer(w *frame.Writer, q *Queue) *Serializer {
	return &Serializer{fw: w, q: q}
}

// Run drains q into the underlying stream until the queue is closed and
// empty, or a write fails. A write failure is fatal: LSP peers are local
// and loss of the stream is terminal, so there is no retry.
func (s *Serializer) Run() error {
	for {
		body, ok := s.q.dequeue()
		if !ok {
			return nil
		}
		if err := s.fw.WriteFrame(body); err != nil {
			return fmt.Errorf("writer: %w", err)
		}
	}
}
