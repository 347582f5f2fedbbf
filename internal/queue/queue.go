// Package queue is the hand-off between the accept loop and the workers.
package queue

import (
	"net"
	"sync"
)

// Item is one accepted connection waiting for a worker.
// The zero Item is the stop sentinel.
type Item struct {
	Conn net.Conn
	Peer net.Addr
	ID   string
}

// Sentinel returns the item that tells exactly one consumer to stop
func Sentinel() Item {
	return Item{}
}

// IsSentinel reports whether the item carries no connection
func (i Item) IsSentinel() bool {
	return i.Conn == nil && i.Peer == nil
}

// Queue is an unbounded FIFO safe for many producers and consumers.
// Put never blocks; Get blocks until an item is available.
type Queue struct {
	mu         sync.Mutex
	notEmpty   *sync.Cond
	items      []Item
	unfinished int
}

func New() *Queue {
	q := &Queue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Put appends an item and wakes one waiting consumer
func (q *Queue) Put(item Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.unfinished++
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// Get removes and returns the oldest item, blocking while the queue is empty.
// Every Get must be matched by a Done.
func (q *Queue) Get() Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		q.notEmpty.Wait()
	}

	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	return item
}

// Done marks one item returned by Get as processed
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		panic("queue: Done called more times than Put")
	}
	q.unfinished--
}

// Len returns the number of items waiting for a consumer
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
