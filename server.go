package socket

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ErrServerClosed is returned by Serve after Close was called.
var ErrServerClosed = errors.New("server closed")

// Handler is the interface for handling accepted sockets.
type Handler interface {
	// Handle is called in its own goroutine for each accepted socket.
	// The handler owns the socket and must close it.
	Handle(sock *Socket)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(sock *Socket)

// Handle calls f(sock).
func (f HandlerFunc) Handle(sock *Socket) {
	f(sock)
}

// Server accepts connections on a listening Socket and dispatches every
// accepted Socket to a Handler running in its own goroutine.
type Server struct {
	listener *Socket
	logger   Logger
	sockOpts []Option

	mu      sync.Mutex
	closed  bool
	serving bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerSocketOptions sets the socket options of the listener. Accepted
// sockets inherit them.
func ServerSocketOptions(opts ...Option) ServerOption {
	return func(s *Server) {
		s.sockOpts = append(s.sockOpts, opts...)
	}
}

// Listen creates a listening socket on ep and returns a Server for it.
// IPv6 endpoints listen dual-stack.
func Listen(ep Endpoint, backlog int, opts ...ServerOption) (*Server, error) {
	s := &Server{
		logger: defaultLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	sockOpts := append([]Option{LoggerOption(s.logger)}, s.sockOpts...)
	listener := New(ep.IPVersion(), sockOpts...)
	if err := listener.Create(); err != nil {
		return nil, err
	}
	if err := listener.Listen(ep, backlog); err != nil {
		_ = listener.Close()
		return nil, err
	}

	s.listener = listener
	return s, nil
}

// Serve accepts sockets and dispatches them to the handler until the context
// is canceled or Close is called. It returns ctx.Err() after cancellation,
// ErrServerClosed after Close, and the accept error otherwise. The listening
// socket is closed when Serve returns.
func (s *Server) Serve(ctx context.Context, handler Handler) (err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.serving = true
	s.mu.Unlock()

	endpoint, _ := s.listener.LocalEndpoint()
	s.logger.Info("server started", "addr", endpoint)

	defer func() {
		s.mu.Lock()
		s.serving = false
		s.closed = true
		closeErr := s.listener.Close()
		s.mu.Unlock()

		if closeErr != nil && err != nil && !isStopErr(err) {
			err = multierror.Append(err, closeErr)
		}
		s.logger.Info("server stopped", "addr", endpoint)
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-done:
		}
	}()

	for {
		sock, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrServerClosed
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.logger.Debug("accepted connection", "remote_addr", sock.RemoteEndpoint())
		go handler.Handle(sock)
	}
}

func isStopErr(err error) bool {
	return errors.Is(err, ErrServerClosed) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the server. A running Serve is woken by shutting the listening
// socket down and closes it on the way out; otherwise the socket is closed here.
// Safe to call multiple times.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.serving {
		return s.listener.Shutdown(ShutdownBoth)
	}
	return s.listener.Close()
}

// Endpoint returns the address the server listens on.
func (s *Server) Endpoint() (Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.LocalEndpoint()
}
