// Package replyqueue implements the bounded, mutex+condition-guarded reply
// queues described in spec §4.7: one per TLS client, and one shared queue
// for all datagram clients sized client_udp_count x MAX_REQUESTS.
package replyqueue

import (
	"net"
	"sync"
)

// Capacity is the conventional MAX_REQUESTS bound for a single-client
// queue (spec §4.7).
const Capacity = 256

// Entry is one queued reply: the on-wire buffer plus, for datagram
// clients, the destination address captured from the originating request.
type Entry struct {
	Buffer []byte
	Addr   *net.UDPAddr
}

// Queue is a single-producer/single-consumer bounded FIFO. Producers never
// block: Enqueue drops and reports false on overflow. The single consumer
// blocks in Dequeue until an item arrives or the queue is closed.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []Entry
	capacity int
	closed   bool
}

// New returns a Queue bounded at capacity entries.
func New(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an entry, returning false if the queue is at capacity
// (the caller should log a warning and free the buffer) or closed.
func (q *Queue) Enqueue(buf []byte, addr *net.UDPAddr) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, Entry{Buffer: buf, Addr: addr})
	q.cond.Signal()
	return true
}

// Dequeue blocks until an entry is available or the queue is closed, in
// which case ok is false.
func (q *Queue) Dequeue() (entry Entry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Entry{}, false
	}
	entry = q.items[0]
	q.items = q.items[1:]
	return entry, true
}

// Close wakes the consumer and makes every later Enqueue fail. Entries
// already queued are not dropped: Dequeue keeps returning them until the
// queue is empty, and only then reports ok=false, so the consumer drains
// what was queued before it exits.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the current queue depth, for tests and stats plugins.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
