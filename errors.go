package socket

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Kind classifies why a socket operation failed so callers can tell
// transient failures from fatal ones without inspecting errnos.
type Kind uint8

const (
	// KindOther covers every failure without a dedicated kind.
	KindOther Kind = iota
	// KindInvalidState is returned when the socket handle is in the wrong
	// state for the operation, e.g. Create on a created socket.
	KindInvalidState
	// KindInvalidArgument is returned for programming errors such as an
	// endpoint whose IP version differs from the socket's.
	KindInvalidArgument
	// KindWouldBlock is returned when the operation would have blocked.
	KindWouldBlock
	// KindConnectionReset is returned when the peer reset or aborted the connection.
	KindConnectionReset
	// KindConnectionRefused is returned when nothing listens on the remote endpoint.
	KindConnectionRefused
	// KindConnectionClosed is returned when the peer performed an orderly shutdown.
	KindConnectionClosed
	// KindAddressInUse is returned when the local address cannot be bound.
	KindAddressInUse
	// KindTimeout is returned when the kernel gave up on the operation.
	KindTimeout
	// KindProtocolViolation is returned when a framed message breaks the wire contract.
	KindProtocolViolation
)

var kindNames = [...]string{
	KindOther:             "other",
	KindInvalidState:      "invalid state",
	KindInvalidArgument:   "invalid argument",
	KindWouldBlock:        "would block",
	KindConnectionReset:   "connection reset",
	KindConnectionRefused: "connection refused",
	KindConnectionClosed:  "connection closed",
	KindAddressInUse:      "address in use",
	KindTimeout:           "timeout",
	KindProtocolViolation: "protocol violation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Errors used as the cause of an *Error.
var (
	// ErrInvalidHandle is returned when operating on a socket without a native handle.
	ErrInvalidHandle = errors.New("invalid socket handle")
	// ErrAlreadyCreated is returned by Create when the socket already owns a handle.
	ErrAlreadyCreated = errors.New("socket already created")
	// ErrVersionMismatch is returned when an endpoint's IP version differs from the socket's.
	ErrVersionMismatch = errors.New("ip version mismatch")
	// ErrInvalidIPVersion is returned for an IP version other than IPv4 or IPv6.
	ErrInvalidIPVersion = errors.New("invalid ip version")
	// ErrUnknownOption is returned by SetSocketOption for an unrecognized option.
	ErrUnknownOption = errors.New("unknown socket option")
	// ErrPeerClosed is returned when the peer shut the connection down.
	ErrPeerClosed = errors.New("peer closed connection")
	// ErrMessageTooLarge is returned when a message exceeds the maximum allowed size.
	ErrMessageTooLarge = errors.New("message too large")
)

// Error is the error type returned by every Socket operation.
type Error struct {
	// Op is the operation that failed, e.g. "accept" or "recv message".
	Op   string
	Kind Kind
	// Err is the underlying cause, usually a unix.Errno or one of the package errors.
	Err error
}

func (e *Error) Error() string {
	return "socket: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the operation may succeed.
func (e *Error) Temporary() bool {
	return e.Kind == KindWouldBlock || e.Kind == KindTimeout
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// opError wraps a native failure, deriving its Kind from the errno.
func opError(op string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return &Error{Op: op, Kind: se.Kind, Err: se.Err}
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return KindOther
	}

	switch errno {
	case unix.EAGAIN:
		return KindWouldBlock
	case unix.ECONNRESET, unix.EPIPE, unix.ECONNABORTED:
		return KindConnectionReset
	case unix.ECONNREFUSED:
		return KindConnectionRefused
	case unix.EADDRINUSE, unix.EADDRNOTAVAIL:
		return KindAddressInUse
	case unix.ETIMEDOUT:
		return KindTimeout
	case unix.EBADF, unix.ENOTSOCK, unix.ENOTCONN, unix.EISCONN:
		return KindInvalidState
	case unix.EINVAL, unix.EAFNOSUPPORT:
		return KindInvalidArgument
	}
	return KindOther
}

// KindOf returns the Kind of the first *Error in err's chain.
// Errors that are not socket errors report KindOther.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}

// IsKind reports whether err is a socket error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
