package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Brownie44l1/statichttpd/internal/logger"
	"github.com/Brownie44l1/statichttpd/internal/queue"
	"github.com/Brownie44l1/statichttpd/internal/request"
	"github.com/Brownie44l1/statichttpd/internal/resolver"
	"github.com/Brownie44l1/statichttpd/internal/response"
)

// timeoutConn applies the idle timeout to every single read and write
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

func newTimeoutConn(c net.Conn, timeout time.Duration) *timeoutConn {
	return &timeoutConn{Conn: c, timeout: timeout}
}

func (c *timeoutConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *timeoutConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

// handleConn serves the single request on a dequeued connection.
// Returning an error means no response was sent; the worker logs it and
// closes the connection either way.
func (s *Server) handleConn(item queue.Item) error {
	start := time.Now()
	s.metrics.ActiveConnections.Add(1)
	defer s.metrics.ActiveConnections.Add(-1)

	text, err := request.ReadHeaderBlock(item.Conn, s.cfg.ReadChunkSize, s.cfg.MaxHeaderBytes)
	if err != nil {
		if request.IsBadRequest(err) {
			return s.reject(item, err, start)
		}
		s.metrics.ConnectionErrors.Add(1)
		return fmt.Errorf("read request: %w", err)
	}
	s.log.Debug("received", logger.F("conn", item.ID), logger.F("data", text))

	req, err := request.Parse(text)
	if err != nil {
		return s.reject(item, err, start)
	}

	path, err := s.resolver.Resolve(req.Path)
	if err != nil {
		if errors.Is(err, resolver.ErrPathEscape) {
			s.metrics.PathEscapes.Add(1)
			s.log.Warn("someone tried to escape root, forbidden",
				logger.F("conn", item.ID),
				logger.F("peer", peerString(item)),
				logger.F("path", req.Path),
			)
			return s.respondStatus(item, &req, response.StatusForbidden, start)
		}
		s.log.Warn("cannot resolve path",
			logger.F("conn", item.ID),
			logger.F("path", req.Path),
			logger.F("error", err.Error()),
		)
		return s.respondStatus(item, &req, response.StatusNotFound, start)
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.log.Info("no such file", logger.F("conn", item.ID), logger.F("file", path))
		return s.respondStatus(item, &req, response.StatusNotFound, start)
	}

	n, err := s.builder.WriteFile(item.Conn, path, req.IsHead())
	if err != nil {
		s.metrics.ConnectionErrors.Add(1)
		return fmt.Errorf("send %s %s: %w", req.Method, req.Path, err)
	}
	s.logRequest(item, &req, response.StatusOK, n, start)
	return nil
}

// reject answers a request line the server refuses to serve
func (s *Server) reject(item queue.Item, err error, start time.Time) error {
	code := response.StatusMethodNotAllowed
	if s.cfg.SplitBadRequest && !errors.Is(err, request.ErrUnsupportedMethod) {
		code = response.StatusBadRequest
	}

	s.log.Warn("bad request",
		logger.F("conn", item.ID),
		logger.F("peer", peerString(item)),
		logger.F("error", err.Error()),
	)
	return s.respondStatus(item, nil, code, start)
}

// respondStatus sends a body-less response. req is nil when the request
// line could not be parsed.
func (s *Server) respondStatus(item queue.Item, req *request.Request, code response.StatusCode, start time.Time) error {
	if err := s.builder.WriteStatus(item.Conn, code); err != nil {
		s.metrics.ConnectionErrors.Add(1)
		return fmt.Errorf("send %d: %w", code, err)
	}
	s.logRequest(item, req, code, 0, start)
	return nil
}

func (s *Server) logRequest(item queue.Item, req *request.Request, code response.StatusCode, bodyBytes int64, start time.Time) {
	duration := time.Since(start)
	s.metrics.RecordRequest(int(code), bodyBytes, duration)

	fields := []logger.Field{
		logger.F("conn", item.ID),
		logger.F("peer", peerString(item)),
		logger.F("status", int(code)),
		logger.F("bytes", bodyBytes),
		logger.F("duration_ms", duration.Milliseconds()),
	}
	if req != nil {
		fields = append(fields,
			logger.F("method", string(req.Method)),
			logger.F("path", req.Target()),
			logger.F("version", req.Version),
		)
	}
	s.log.Info("request handled", fields...)
}

func peerString(item queue.Item) string {
	if item.Peer == nil {
		return ""
	}
	return item.Peer.String()
}
