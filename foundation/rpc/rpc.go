// Package rpc provides a line oriented JSON request/response protocol over
// TCP. Every request and response is a single JSON document terminated by a
// newline, and a connection can carry any number of requests.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ardanlabs/powledger/foundation/metrics"
)

// maxLineSize is the largest request or response line that is accepted.
const maxLineSize = 64 << 20

// Set of error variables for the rpc protocol.
var (
	ErrUnknownMethod = errors.New("unknown method")
	ErrServerClosed  = errors.New("rpc: server closed")
)

// Request represents a single call made by a client.
type Request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// Response represents the answer to a single call.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HandlerFunc handles a call for a registered method.
type HandlerFunc func(ctx context.Context, params []json.RawMessage) (any, error)

// =============================================================================

// Server dispatches requests read from TCP connections to the handlers
// registered by method name.
type Server struct {
	evHandler func(v string, args ...any)
	metrics   metrics.HTTP

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	listener net.Listener
	conns    map[net.Conn]struct{}
	shut     bool
	wg       sync.WaitGroup
}

// NewServer constructs a server with no registered methods.
func NewServer(evHandler func(v string, args ...any)) *Server {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	return &Server{
		evHandler: evHandler,
		handlers:  make(map[string]HandlerFunc),
		conns:     make(map[net.Conn]struct{}),
	}
}

// Register binds the handler to the method name.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[method] = handler
}

// ListenAndServe listens on the TCP address and serves connections until
// the server is shut down.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(l)
}

// Serve accepts connections on the listener until the server is shut down.
// It always returns a non-nil error.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.shut {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			shut := s.shut
			s.mu.Unlock()

			if shut {
				return ErrServerClosed
			}
			return err
		}

		if !s.track(conn) {
			conn.Close()
			return ErrServerClosed
		}

		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)

			s.serveConn(conn)
		}()
	}
}

// Shutdown stops accepting connections, closes the open ones and waits for
// the in flight requests to complete or the context to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shut = true
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shut {
		return false
	}

	s.conns[conn] = struct{}{}
	s.wg.Add(1)

	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conns, conn)
	conn.Close()
}

// serveConn answers every request line read from the connection.
func (s *Server) serveConn(conn net.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.dispatch(ctx, line)

		if err := enc.Encode(resp); err != nil {
			s.evHandler("rpc: serveConn: remote[%s]: WARNING: %s", conn.RemoteAddr(), err)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.evHandler("rpc: serveConn: remote[%s]: WARNING: %s", conn.RemoteAddr(), err)
	}
}

// dispatch decodes the request and calls the handler for the method.
func (s *Server) dispatch(ctx context.Context, line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.metrics.ObserveRPC("invalid", err)
		return Response{Error: fmt.Sprintf("invalid request: %s", err)}
	}

	s.mu.Lock()
	handler, exists := s.handlers[req.Method]
	s.mu.Unlock()

	if !exists {
		err := fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
		s.metrics.ObserveRPC("unknown", err)
		return Response{Error: err.Error()}
	}

	s.evHandler("rpc: dispatch: method[%s]", req.Method)

	result, err := handler(ctx, req.Params)
	s.metrics.ObserveRPC(req.Method, err)

	if err != nil {
		return Response{Result: result, Error: err.Error()}
	}

	return Response{Result: result}
}
