package socket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Errors returned by connection operations.
var (
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrInvalidSocket is returned when NewConn is given a socket without a handle.
	ErrInvalidSocket = errors.New("invalid socket")
)

// ErrConnectionClosed is returned when operating on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// ErrBufferFull is returned when the send buffer is full and cannot accept more messages.
// This error indicates backpressure - the receiver is not consuming messages fast enough.
var ErrBufferFull = errors.New("send buffer full")

// Default configuration values.
const (
	// defaultBufferSize is the default size of the message channel buffer.
	defaultBufferSize = 1
)

// Conn pumps framed messages over one connected Socket.
//
// The Socket itself is blocking and single-goroutine; Conn gives it a read
// goroutine that hands each received packet to the OnMessage callback and a
// write goroutine that drains a queue filled by Write. Conn takes ownership of
// the socket and closes it when Run returns.
type Conn struct {
	sock   *Socket
	logger Logger

	opts connOptions

	sendMsg chan *Packet
	closed  atomic.Bool

	// done is closed once the connection stops accepting writes.
	done     chan struct{}
	doneOnce sync.Once

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewConn creates a new connection around a connected or accepted socket.
// It applies the provided options and validates them before returning.
func NewConn(sock *Socket, opt ...ConnOption) (*Conn, error) {
	if sock == nil || sock.Handle() == InvalidHandle {
		return nil, ErrInvalidSocket
	}

	var opts connOptions
	for _, o := range opt {
		o(&opts)
	}

	if err := checkConnOptions(&opts, sock); err != nil {
		return nil, err
	}

	return &Conn{
		sock:    sock,
		logger:  opts.logger,
		opts:    opts,
		sendMsg: make(chan *Packet, opts.bufferSize),
		done:    make(chan struct{}),
	}, nil
}

// checkConnOptions validates and sets default values for connection options.
func checkConnOptions(opts *connOptions, sock *Socket) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = sock.logger
	}

	return nil
}

// Run starts the connection's read and write loops.
// It blocks until an error occurs or the context is canceled, and closes the
// socket before returning.
func (c *Conn) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.logger.Info("connection established", "addr", c.Addr())
	c.logger.Debug("connection options", "addr", c.Addr(),
		"buffer_size", c.opts.bufferSize,
		"max_message_size", c.sock.opts.maxMessageSize)

	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	// The read loop sits in a blocking recv that no context can interrupt;
	// shutting the socket down wakes it. Releasing done wakes an onMessage
	// blocked on a full queue the write loop no longer drains.
	group.Go(func() error {
		<-child.Done()
		c.release()
		_ = c.sock.Shutdown(ShutdownBoth)
		return nil
	})

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "addr", c.Addr(), "error", err)
	} else {
		c.logger.Info("connection closed", "addr", c.Addr())
	}

	return err
}

// Close stops Run. The socket is closed by Run once both loops have exited,
// or immediately when Run was never called.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	c.release()

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		// Run never started, nothing else owns the socket.
		return c.sock.Close()
	}
	cancel()
	return nil
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Write queues a copy of the message without blocking.
//
// Returns:
//   - nil: message was successfully queued (not yet sent)
//   - ErrBufferFull: send buffer is full, message was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - ErrMessageTooLarge: the body exceeds MaxPacketSize
func (c *Conn) Write(message Message) error {
	packet, err := c.prepare(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- packet:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking queues a copy of the message, blocking until there is room
// in the send buffer, the context is canceled or the connection closes.
func (c *Conn) WriteBlocking(ctx context.Context, message Message) error {
	packet, err := c.prepare(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- packet:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrConnectionClosed
	}
}

// WriteTimeout queues a copy of the message, waiting at most timeout for
// room in the send buffer. It returns ErrBufferFull when the timeout expires
// and ErrConnectionClosed when the connection closes first.
func (c *Conn) WriteTimeout(message Message, timeout time.Duration) error {
	packet, err := c.prepare(message)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendMsg <- packet:
		return nil
	case <-timer.C:
		return ErrBufferFull
	case <-c.done:
		return ErrConnectionClosed
	}
}

func (c *Conn) prepare(message Message) (*Packet, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return NewPacket(message.Body())
}

// Addr returns the remote endpoint of the connection.
func (c *Conn) Addr() Endpoint {
	return c.sock.RemoteEndpoint()
}

// readLoop receives messages and passes them to the message handler.
// Returns when the socket fails, the handler fails, or onError asks to disconnect.
func (c *Conn) readLoop(ctx context.Context) error {
	var packet Packet
	for {
		if err := c.sock.RecvMessage(&packet); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("read error", "addr", c.Addr(), "error", err)
			if c.opts.onError(err) == Disconnect || !recoverable(err, c.sock) {
				return err
			}
			continue
		}

		if err := c.opts.onMessage(&packet); err != nil {
			return err
		}
	}
}

// recoverable reports whether the stream is still aligned on a message
// boundary after err, which is only true for drained oversized messages.
func recoverable(err error, sock *Socket) bool {
	return IsKind(err, KindProtocolViolation) && sock.opts.drainOversized
}

// writeLoop sends queued messages until the context is canceled or a send fails.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet := <-c.sendMsg:
			if err := c.write(packet); err != nil {
				return err
			}
		}
	}
}

// write sends one packet. Any send failure leaves the stream mid-message, so
// unlike read errors it always ends the connection; onError only observes it.
func (c *Conn) write(packet *Packet) error {
	err := c.sock.SendMessage(packet)
	if err != nil {
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		c.opts.onError(err)
	}
	return err
}

func (c *Conn) release() {
	c.doneOnce.Do(func() { close(c.done) })
}

// closeConn marks the connection as closed and releases the socket.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.release()
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	if err := c.sock.Close(); err != nil {
		c.logger.Debug("close error", "addr", c.Addr(), "error", err)
	}
}
