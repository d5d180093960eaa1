package socket

import (
	"golang.org/x/sys/unix"
)

// Handle is a native socket descriptor.
type Handle int

// InvalidHandle marks a Socket that owns no native descriptor.
const InvalidHandle Handle = -1

// The Go runtime preempts goroutines with signals, so any blocking call
// can return EINTR. These wrappers retry until the call completes.

func ignoringEINTR(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}

func ignoringEINTRIO(fn func(fd int, p []byte) (int, error), fd int, p []byte) (int, error) {
	for {
		n, err := fn(fd, p)
		if err != unix.EINTR {
			if n < 0 {
				n = 0
			}
			return n, err
		}
	}
}

func sysSocket(family int) (int, error) {
	var fd int
	err := ignoringEINTR(func() (err error) {
		fd, err = unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
		return err
	})
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

func sysAccept(fd int) (int, unix.Sockaddr, error) {
	var (
		nfd int
		sa  unix.Sockaddr
	)
	err := ignoringEINTR(func() (err error) {
		nfd, sa, err = unix.Accept(fd)
		return err
	})
	if err != nil {
		return -1, nil, err
	}
	unix.CloseOnExec(nfd)
	return nfd, sa, nil
}

// sysConnect connects fd to sa, blocking until the handshake finishes.
// An interrupted connect keeps going in the kernel, so instead of calling
// connect again we wait for writability and collect the result from SO_ERROR.
func sysConnect(fd int, sa unix.Sockaddr) error {
	err := unix.Connect(fd, sa)
	switch err {
	case nil:
		return nil
	case unix.EINTR, unix.EINPROGRESS, unix.EALREADY:
	default:
		return err
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	err = ignoringEINTR(func() error {
		_, err := unix.Poll(fds, -1)
		return err
	})
	if err != nil {
		return err
	}

	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soerr != 0 {
		return unix.Errno(soerr)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
