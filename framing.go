package socket

import (
	"encoding/binary"
	"strconv"

	"github.com/pkg/errors"
)

// Wire format of a message: a 2-byte big-endian payload length followed by
// the payload itself. There is no version, type or checksum field.
const headerSize = 2

// transport is the single-call I/O a Socket offers to the "All" loops.
type transport interface {
	Send(p []byte) (int, error)
	Recv(p []byte) (int, error)
}

// sendAll calls t.Send until every byte of p is written.
func sendAll(t transport, p []byte) error {
	for sent := 0; sent < len(p); {
		n, err := t.Send(p[sent:])
		if err != nil {
			return opError("send all", err)
		}
		sent += n
	}
	return nil
}

// recvAll calls t.Recv until p is full.
func recvAll(t transport, p []byte) error {
	for received := 0; received < len(p); {
		n, err := t.Recv(p[received:])
		if err != nil {
			return opError("recv all", err)
		}
		received += n
	}
	return nil
}

// writeMessage frames body and sends it. A failure after the header went out
// leaves the stream mid-message; the connection is unusable afterwards.
func writeMessage(t transport, body []byte) error {
	const op = "send message"

	if len(body) > MaxPacketSize {
		return newError(op, KindProtocolViolation,
			errors.Wrapf(ErrMessageTooLarge, "%d bytes", len(body)))
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint16(header[:], uint16(len(body)))

	if err := sendAll(t, header[:]); err != nil {
		return opError(op, err)
	}
	if err := sendAll(t, body); err != nil {
		return opError(op, err)
	}
	return nil
}

// readMessage receives one framed message into p. Messages announcing more
// than maxSize bytes are rejected before the payload is read; with drain set
// the payload is consumed and discarded first.
func readMessage(t transport, p *Packet, maxSize int, drain bool) error {
	const op = "recv message"

	p.Clear()

	var header [headerSize]byte
	if err := recvAll(t, header[:]); err != nil {
		return opError(op, err)
	}

	size := int(binary.BigEndian.Uint16(header[:]))
	if size > maxSize {
		if drain {
			if err := discard(t, size); err != nil {
				return opError(op, err)
			}
		}
		return newError(op, KindProtocolViolation,
			errors.Wrap(ErrMessageTooLarge, strconv.Itoa(size)+" > "+strconv.Itoa(maxSize)))
	}

	p.resize(size)
	if err := recvAll(t, p.buffer); err != nil {
		p.Clear()
		return opError(op, err)
	}
	return nil
}

// discard reads and drops n bytes.
func discard(t transport, n int) error {
	var scratch [512]byte
	for n > 0 {
		chunk := scratch[:]
		if n < len(chunk) {
			chunk = chunk[:n]
		}
		if err := recvAll(t, chunk); err != nil {
			return err
		}
		n -= len(chunk)
	}
	return nil
}

// SendMessage sends the packet as one length-prefixed message.
func (s *Socket) SendMessage(m Message) error {
	return writeMessage(s, m.Body())
}

// RecvMessage clears p and fills it with the next length-prefixed message.
// A message larger than the configured maximum fails with
// KindProtocolViolation; unless DrainOversizedOption is set the payload stays
// unread and the connection must be closed.
func (s *Socket) RecvMessage(p *Packet) error {
	return readMessage(s, p, s.opts.maxMessageSize, s.opts.drainOversized)
}
