package socket

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// SockOpt enumerates the native options SetSocketOption understands.
type SockOpt int

const (
	// TCPNoDelay disables send coalescing (Nagle's algorithm) when true.
	TCPNoDelay SockOpt = iota + 1
	// IPv6Only restricts an IPv6 socket to IPv6 peers when true. When false an
	// IPv6 listener also accepts IPv4 peers as IPv4-mapped addresses.
	IPv6Only
)

func (o SockOpt) String() string {
	switch o {
	case TCPNoDelay:
		return "TCP_NODELAY"
	case IPv6Only:
		return "IPV6_V6ONLY"
	}
	return "sockopt(" + strconv.Itoa(int(o)) + ")"
}

func (o SockOpt) native() (level, name int, ok bool) {
	switch o {
	case TCPNoDelay:
		return unix.IPPROTO_TCP, unix.TCP_NODELAY, true
	case IPv6Only:
		return unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, true
	}
	return 0, 0, false
}

// SetSocketOption applies a boolean option to the native handle.
func (s *Socket) SetSocketOption(opt SockOpt, value bool) error {
	const op = "set socket option"

	level, name, ok := opt.native()
	if !ok {
		return newError(op, KindInvalidArgument, ErrUnknownOption)
	}

	if s.handle == InvalidHandle {
		return newError(op, KindInvalidState, ErrInvalidHandle)
	}

	if err := unix.SetsockoptInt(int(s.handle), level, name, boolToInt(value)); err != nil {
		return opError(op+" "+opt.String(), err)
	}
	return nil
}

// SocketOption reads back a boolean option from the native handle.
func (s *Socket) SocketOption(opt SockOpt) (bool, error) {
	const op = "get socket option"

	level, name, ok := opt.native()
	if !ok {
		return false, newError(op, KindInvalidArgument, ErrUnknownOption)
	}

	if s.handle == InvalidHandle {
		return false, newError(op, KindInvalidState, ErrInvalidHandle)
	}

	v, err := unix.GetsockoptInt(int(s.handle), level, name)
	if err != nil {
		return false, opError(op+" "+opt.String(), err)
	}
	return v != 0, nil
}
