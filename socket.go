// Package socket provides blocking TCP sockets for IPv4 and IPv6 with a
// length-prefixed message framing protocol on top.
//
// A Socket owns exactly one native descriptor. Every operation blocks the
// calling goroutine until it completes or fails; there are no timeouts.
// A Socket must be used from one goroutine at a time. To serve many peers,
// run one goroutine per accepted Socket (see Server and Conn).
package socket

import (
	"golang.org/x/sys/unix"
)

// Socket is a blocking TCP socket bound to a single IP version.
//
// Lifecycle: New, then Create, then either Listen and Accept (server) or
// Connect (client), then Send/Recv, then Close. Sockets returned by Accept
// are already created.
type Socket struct {
	version IPVersion
	handle  Handle
	remote  Endpoint

	opts   options
	logger Logger
}

// New returns a Socket for the given IP version without a native handle.
// Call Create before using it.
func New(version IPVersion, opt ...Option) *Socket {
	opts := buildOptions(opt)
	return &Socket{
		version: version,
		handle:  InvalidHandle,
		opts:    opts,
		logger:  opts.logger,
	}
}

// newAccepted wraps a descriptor returned by accept. The child inherits the
// listener's options.
func newAccepted(version IPVersion, fd int, remote Endpoint, opts options) *Socket {
	return &Socket{
		version: version,
		handle:  Handle(fd),
		remote:  remote,
		opts:    opts,
		logger:  opts.logger,
	}
}

// IPVersion returns the IP version the socket was constructed with.
func (s *Socket) IPVersion() IPVersion {
	return s.version
}

// Handle returns the native descriptor, or InvalidHandle.
func (s *Socket) Handle() Handle {
	return s.handle
}

// RemoteEndpoint returns the peer of an accepted socket. It is the zero
// Endpoint for sockets that were not produced by Accept.
func (s *Socket) RemoteEndpoint() Endpoint {
	return s.remote
}

// LocalEndpoint returns the address the native handle is bound to.
func (s *Socket) LocalEndpoint() (Endpoint, error) {
	const op = "local endpoint"

	if s.handle == InvalidHandle {
		return Endpoint{}, newError(op, KindInvalidState, ErrInvalidHandle)
	}

	sa, err := unix.Getsockname(int(s.handle))
	if err != nil {
		return Endpoint{}, opError(op, err)
	}
	ep, err := endpointFromSockaddr(sa)
	if err != nil {
		return Endpoint{}, newError(op, KindOther, err)
	}
	return ep, nil
}

// Create allocates the native stream socket and disables send coalescing.
// It fails if the socket already owns a handle.
func (s *Socket) Create() error {
	const op = "create"

	if !s.version.valid() {
		return newError(op, KindInvalidArgument, ErrInvalidIPVersion)
	}
	if s.handle != InvalidHandle {
		return newError(op, KindInvalidState, ErrAlreadyCreated)
	}

	fd, err := sysSocket(s.version.family())
	if err != nil {
		return opError(op, err)
	}
	s.handle = Handle(fd)

	if err = s.SetSocketOption(TCPNoDelay, true); err != nil {
		_ = unix.Close(fd)
		s.handle = InvalidHandle
		return opError(op, err)
	}

	return nil
}

// Close releases the native handle. It fails if there is none.
func (s *Socket) Close() error {
	const op = "close"

	if s.handle == InvalidHandle {
		return newError(op, KindInvalidState, ErrInvalidHandle)
	}

	fd := int(s.handle)
	// The descriptor is released by the kernel even when close reports an
	// error, so the handle is never reused.
	s.handle = InvalidHandle
	if err := unix.Close(fd); err != nil {
		return opError(op, err)
	}
	return nil
}

// Bind assigns the local endpoint. The endpoint must have the socket's IP version.
func (s *Socket) Bind(ep Endpoint) error {
	const op = "bind"

	sa, err := s.checkEndpoint(op, ep)
	if err != nil {
		return err
	}

	if err = unix.Bind(int(s.handle), sa); err != nil {
		return opError(op, err)
	}
	return nil
}

// Listen binds to ep and starts accepting connections with the given
// backlog. IPv6 sockets are switched to dual-stack first so they also accept
// IPv4 peers.
func (s *Socket) Listen(ep Endpoint, backlog int) error {
	const op = "listen"

	if s.version == IPv6 {
		if err := s.SetSocketOption(IPv6Only, false); err != nil {
			return opError(op, err)
		}
	}

	if err := s.Bind(ep); err != nil {
		return opError(op, err)
	}

	if err := unix.Listen(int(s.handle), backlog); err != nil {
		return opError(op, err)
	}

	s.logger.Debug("socket listening", "endpoint", ep, "backlog", backlog)
	return nil
}

// Accept blocks until a connection arrives and returns a new Socket owning
// it. The listening socket keeps its handle and can accept again.
func (s *Socket) Accept() (*Socket, error) {
	const op = "accept"

	if s.handle == InvalidHandle {
		return nil, newError(op, KindInvalidState, ErrInvalidHandle)
	}

	fd, sa, err := sysAccept(int(s.handle))
	if err != nil {
		return nil, opError(op, err)
	}

	remote, err := endpointFromSockaddr(sa)
	if err != nil {
		_ = unix.Close(fd)
		return nil, newError(op, KindOther, err)
	}

	s.logger.Info("connection accepted", "remote", remote, "version", s.version)
	return newAccepted(s.version, fd, remote, s.opts), nil
}

// Connect blocks until a connection to ep is established or fails.
// The endpoint must have the socket's IP version.
func (s *Socket) Connect(ep Endpoint) error {
	const op = "connect"

	sa, err := s.checkEndpoint(op, ep)
	if err != nil {
		return err
	}

	if err = sysConnect(int(s.handle), sa); err != nil {
		return opError(op, err)
	}

	s.logger.Debug("socket connected", "remote", ep)
	return nil
}

// Send performs a single write and reports how many bytes were taken.
// Fewer than len(p) bytes is not an error.
func (s *Socket) Send(p []byte) (int, error) {
	const op = "send"

	if s.handle == InvalidHandle {
		return 0, newError(op, KindInvalidState, ErrInvalidHandle)
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := ignoringEINTRIO(unix.Write, int(s.handle), p)
	if err != nil {
		return n, opError(op, err)
	}
	return n, nil
}

// Recv performs a single read into p and reports how many bytes arrived.
// An orderly shutdown by the peer is reported as a KindConnectionClosed error.
func (s *Socket) Recv(p []byte) (int, error) {
	const op = "recv"

	if s.handle == InvalidHandle {
		return 0, newError(op, KindInvalidState, ErrInvalidHandle)
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := ignoringEINTRIO(unix.Read, int(s.handle), p)
	if err != nil {
		return n, opError(op, err)
	}
	if n == 0 {
		return 0, newError(op, KindConnectionClosed, ErrPeerClosed)
	}
	return n, nil
}

// SendAll writes all of p, looping over short writes.
func (s *Socket) SendAll(p []byte) error {
	return sendAll(s, p)
}

// RecvAll fills all of p, looping over short reads.
func (s *Socket) RecvAll(p []byte) error {
	return recvAll(s, p)
}

// ShutdownHow selects which direction Shutdown closes.
type ShutdownHow int

const (
	// ShutdownRead stops further receives.
	ShutdownRead ShutdownHow = unix.SHUT_RD
	// ShutdownWrite sends FIN to the peer.
	ShutdownWrite ShutdownHow = unix.SHUT_WR
	// ShutdownBoth stops both directions.
	ShutdownBoth ShutdownHow = unix.SHUT_RDWR
)

// Shutdown disables one or both directions of the connection without
// releasing the handle. A goroutine blocked in Recv or Accept on the same
// socket is woken up with an error, which makes Shutdown the safe way to stop
// a socket owned by another goroutine.
func (s *Socket) Shutdown(how ShutdownHow) error {
	const op = "shutdown"

	if s.handle == InvalidHandle {
		return newError(op, KindInvalidState, ErrInvalidHandle)
	}
	if err := unix.Shutdown(int(s.handle), int(how)); err != nil {
		return opError(op, err)
	}
	return nil
}

func (s *Socket) checkEndpoint(op string, ep Endpoint) (unix.Sockaddr, error) {
	if s.handle == InvalidHandle {
		return nil, newError(op, KindInvalidState, ErrInvalidHandle)
	}
	if ep.IPVersion() != s.version {
		return nil, newError(op, KindInvalidArgument, ErrVersionMismatch)
	}

	sa, err := ep.sockaddr()
	if err != nil {
		return nil, newError(op, KindInvalidArgument, err)
	}
	return sa, nil
}
