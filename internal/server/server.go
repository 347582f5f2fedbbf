package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/statichttpd/internal/config"
	"github.com/Brownie44l1/statichttpd/internal/logger"
	"github.com/Brownie44l1/statichttpd/internal/queue"
	"github.com/Brownie44l1/statichttpd/internal/resolver"
	"github.com/Brownie44l1/statichttpd/internal/response"
	"github.com/Brownie44l1/statichttpd/internal/worker"
)

var (
	ErrBind         = errors.New("cannot bind listener")
	ErrServerClosed = errors.New("server closed")
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server accepts connections and hands them to a fixed worker pool through
// an unbounded queue. Each connection carries exactly one request.
type Server struct {
	cfg      config.ServerConfig
	addr     string
	log      logger.Logger
	resolver *resolver.Resolver
	builder  *response.Builder
	queue    *queue.Queue
	pool     *worker.Pool
	metrics  *Metrics

	// mu guards listener and orders accept hand-offs against Close
	mu       sync.Mutex
	listener net.Listener
	closed   atomic.Bool
}

// New validates cfg and the served root. With cfg.Server.Bind set the
// listener is bound immediately, otherwise ServeForever binds it.
func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = &logger.NullLogger{}
	}

	res, err := resolver.New(cfg.Server.Root)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg.Server,
		addr:     cfg.Address(),
		log:      log,
		resolver: res,
		builder:  response.NewBuilder(cfg.Server.Name),
		queue:    queue.New(),
		metrics:  NewMetrics(),
	}
	s.pool = worker.NewPool(cfg.Server.Workers, s.queue, s.handleConn, log)

	if cfg.Server.Bind {
		if err := s.Bind(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Bind opens the listening socket. Binding twice is a no-op.
func (s *Server) Bind() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrServerClosed
	}
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrBind, s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Bind
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Metrics returns the live counters
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ServeForever starts the workers and accepts connections until Close.
// It returns nil after a Close and an error if binding fails.
func (s *Server) ServeForever() error {
	if err := s.Bind(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrServerClosed
	}
	ln := s.listener
	s.pool.Start()
	s.mu.Unlock()

	s.log.Info("listening",
		logger.F("addr", ln.Addr().String()),
		logger.F("root", s.resolver.Root()),
		logger.F("workers", s.pool.Size()),
	)

	var acceptDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			acceptDelay = nextAcceptDelay(acceptDelay)
			s.log.Error("error accepting connection",
				logger.F("error", err.Error()),
				logger.F("retry_in", acceptDelay.String()),
			)
			time.Sleep(acceptDelay)
			continue
		}
		acceptDelay = 0

		if !s.enqueue(conn) {
			conn.Close()
			return nil
		}
	}
}

// nextAcceptDelay doubles the pause after a failed Accept, capped at
// maxAcceptDelay
func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}

// enqueue hands an accepted connection to the workers. It refuses once
// Close has started so no connection lands behind the stop sentinels.
func (s *Server) enqueue(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return false
	}

	item := queue.Item{
		Conn: newTimeoutConn(conn, s.cfg.Timeout),
		Peer: conn.RemoteAddr(),
		ID:   uuid.NewString(),
	}
	s.metrics.ConnectionsTotal.Add(1)
	s.log.Info("connected", logger.F("conn", item.ID), logger.F("peer", peerString(item)))
	s.queue.Put(item)
	return true
}

// Close stops accepting, then stops the workers. Workers that do not
// finish within the stop timeout are abandoned. Close is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	s.log.Info("got a shutdown request", logger.F("queued", s.queue.Len()))

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mu.Unlock()

	if stuck := s.pool.Stop(s.cfg.StopTimeout); stuck > 0 {
		s.log.Warn("workers still busy at shutdown", logger.F("count", stuck))
	}

	snap := s.metrics.Snapshot()
	s.log.Info("server stopped",
		logger.F("connections", snap.ConnectionsTotal),
		logger.F("requests", snap.RequestsTotal),
		logger.F("2xx", snap.Responses2xx),
		logger.F("4xx", snap.Errors4xx),
		logger.F("path_escapes", snap.PathEscapes),
		logger.F("connection_errors", snap.ConnectionErrors),
		logger.F("still_active", snap.ActiveConnections),
		logger.F("bytes_sent", snap.BytesSent),
		logger.F("avg_latency", snap.AverageLatency.String()),
	)
	return err
}
