package socket

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{unix.EAGAIN, KindWouldBlock},
		{unix.ECONNRESET, KindConnectionReset},
		{unix.EPIPE, KindConnectionReset},
		{unix.ECONNREFUSED, KindConnectionRefused},
		{unix.EADDRINUSE, KindAddressInUse},
		{unix.ETIMEDOUT, KindTimeout},
		{unix.EBADF, KindInvalidState},
		{unix.EINVAL, KindInvalidArgument},
		{unix.ENOMEM, KindOther},
		{errors.New("plain"), KindOther},
		{fmt.Errorf("wrapped: %w", unix.ECONNRESET), KindConnectionReset},
	}

	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestOpError_KeepsKind(t *testing.T) {
	inner := newError("recv", KindConnectionClosed, ErrPeerClosed)
	outer := opError("recv message", inner)

	if outer.Kind != KindConnectionClosed {
		t.Errorf("kind = %v, want %v", outer.Kind, KindConnectionClosed)
	}
	if outer.Op != "recv message" {
		t.Errorf("op = %q", outer.Op)
	}
	if !errors.Is(outer, ErrPeerClosed) {
		t.Error("cause lost")
	}
	if outer.Error() != "socket: recv message: peer closed connection" {
		t.Errorf("Error() = %q", outer.Error())
	}
}

func TestOpError_Errno(t *testing.T) {
	err := opError("connect", unix.ECONNREFUSED)

	var errno unix.Errno
	if !errors.As(err, &errno) || errno != unix.ECONNREFUSED {
		t.Errorf("errno not preserved in %v", err)
	}
	if !IsKind(err, KindConnectionRefused) {
		t.Errorf("kind = %v", KindOf(err))
	}
}

func TestKindOf_ForeignError(t *testing.T) {
	if KindOf(errors.New("x")) != KindOther {
		t.Error("foreign error should be KindOther")
	}
	if IsKind(nil, KindOther) {
		t.Error("nil error should match no kind")
	}
}

func TestError_Temporary(t *testing.T) {
	if !newError("send", KindWouldBlock, unix.EAGAIN).Temporary() {
		t.Error("would block should be temporary")
	}
	if newError("send", KindConnectionReset, unix.ECONNRESET).Temporary() {
		t.Error("reset should not be temporary")
	}
}

func TestKind_String(t *testing.T) {
	if KindProtocolViolation.String() != "protocol violation" {
		t.Errorf("String() = %q", KindProtocolViolation.String())
	}
	if Kind(200).String() != "kind(200)" {
		t.Errorf("String() = %q", Kind(200).String())
	}
}
