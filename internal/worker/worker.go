// Package worker runs a fixed set of goroutines that drain the connection
// queue, one connection at a time each.
package worker

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/statichttpd/internal/logger"
	"github.com/Brownie44l1/statichttpd/internal/queue"
)

// Handler serves one dequeued connection. The worker closes the connection
// afterwards whatever the handler does.
type Handler func(item queue.Item) error

// Worker owns one connection at a time from dequeue to close
type Worker struct {
	ID string

	queue   *queue.Queue
	handler Handler
	log     logger.Logger

	// stopping records that Pool.Stop queued this worker's sentinel. The loop
	// still exits only on a sentinel so connections queued before it are served.
	stopping atomic.Bool
	done     chan struct{}
}

// New creates a worker. The id must be unique within the pool.
func New(id string, q *queue.Queue, h Handler, log logger.Logger) *Worker {
	return &Worker{
		ID:      id,
		queue:   q,
		handler: h,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Start runs the worker loop in a new goroutine
func (w *Worker) Start() {
	go w.run()
}

// Stopped is closed once the worker has left its loop
func (w *Worker) Stopped() <-chan struct{} {
	return w.done
}

// Stopping reports whether a stop has been requested
func (w *Worker) Stopping() bool {
	return w.stopping.Load()
}

func (w *Worker) run() {
	defer close(w.done)
	w.log.Info("worker started", logger.F("worker", w.ID))

	for {
		item := w.queue.Get()
		if item.IsSentinel() {
			w.queue.Done()
			break
		}
		w.serve(item)
	}

	w.log.Info("worker stopped",
		logger.F("worker", w.ID),
		logger.F("requested", w.Stopping()),
	)
}

// serve runs the handler with panic recovery. The connection is closed and
// the item marked done on every path.
func (w *Worker) serve(item queue.Item) {
	defer w.queue.Done()
	defer item.Conn.Close()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("handler panic",
				logger.F("worker", w.ID),
				logger.F("conn", item.ID),
				logger.F("peer", peerString(item)),
				logger.F("error", fmt.Sprint(r)),
				logger.F("stack", string(debug.Stack())),
			)
		}
	}()

	w.log.Debug("worker manages request",
		logger.F("worker", w.ID),
		logger.F("conn", item.ID),
		logger.F("peer", peerString(item)),
	)

	start := time.Now()
	if err := w.handler(item); err != nil {
		w.log.Error("cannot handle connection",
			logger.F("worker", w.ID),
			logger.F("conn", item.ID),
			logger.F("peer", peerString(item)),
			logger.F("error", err.Error()),
		)
		return
	}

	w.log.Debug("worker finished",
		logger.F("worker", w.ID),
		logger.F("conn", item.ID),
		logger.F("duration_ms", time.Since(start).Milliseconds()),
	)
}

func peerString(item queue.Item) string {
	if item.Peer == nil {
		return ""
	}
	return item.Peer.String()
}

// Pool is a fixed-size set of workers sharing one queue
type Pool struct {
	queue   *queue.Queue
	workers []*Worker
	log     logger.Logger
	started atomic.Bool
	stopped atomic.Bool
}

// NewPool creates n workers, each with a freshly generated id
func NewPool(n int, q *queue.Queue, h Handler, log logger.Logger) *Pool {
	if log == nil {
		log = &logger.NullLogger{}
	}

	p := &Pool{
		queue:   q,
		workers: make([]*Worker, 0, n),
		log:     log,
	}
	for i := 0; i < n; i++ {
		p.workers = append(p.workers, New(uuid.NewString(), q, h, log))
	}
	return p
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker. A pool runs at most once.
func (p *Pool) Start() {
	if p.stopped.Load() || !p.started.CompareAndSwap(false, true) {
		return
	}
	p.log.Info("starting workers", logger.F("count", len(p.workers)))
	for _, w := range p.workers {
		w.Start()
	}
}

// Stop queues one sentinel per worker and waits up to timeout for each.
// Workers still busy after that are left running; Stop returns how many.
func (p *Pool) Stop(timeout time.Duration) int {
	if !p.started.Load() || !p.stopped.CompareAndSwap(false, true) {
		return 0
	}

	p.log.Info("stopping workers", logger.F("count", len(p.workers)))
	for _, w := range p.workers {
		w.stopping.Store(true)
		p.queue.Put(queue.Sentinel())
	}

	stuck := 0
	for _, w := range p.workers {
		timer := time.NewTimer(timeout)
		select {
		case <-w.Stopped():
		case <-timer.C:
			stuck++
			p.log.Warn("worker did not stop in time",
				logger.F("worker", w.ID),
				logger.F("stop_requested", w.Stopping()),
				logger.F("timeout", timeout.String()),
			)
		}
		timer.Stop()
	}
	return stuck
}
