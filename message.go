package socket

import (
	"encoding/binary"
	"io"
)

// MaxPacketSize is the largest payload the 16-bit length prefix can describe.
const MaxPacketSize = 65535

// Message is the interface for messages transmitted over the connection.
// Implementations should provide the message length and body.
type Message interface {
	// Length returns the length of the message body.
	Length() int
	// Body returns the raw message data.
	Body() []byte
}

// Packet is a mutable message buffer bounded by MaxPacketSize.
// The zero value is an empty packet ready to use.
type Packet struct {
	buffer []byte
}

var (
	_ Message   = (*Packet)(nil)
	_ io.Writer = (*Packet)(nil)
)

// NewPacket returns a packet holding a copy of body.
func NewPacket(body []byte) (*Packet, error) {
	p := &Packet{}
	if _, err := p.Write(body); err != nil {
		return nil, err
	}
	return p, nil
}

// Length returns the payload length in bytes.
func (p *Packet) Length() int {
	return len(p.buffer)
}

// Body returns the payload. The slice is only valid until the next mutation.
func (p *Packet) Body() []byte {
	return p.buffer
}

// Clear empties the packet, keeping its capacity.
func (p *Packet) Clear() {
	p.buffer = p.buffer[:0]
}

// Write appends b to the payload. It fails with ErrMessageTooLarge, leaving
// the packet untouched, when the result would exceed MaxPacketSize.
func (p *Packet) Write(b []byte) (int, error) {
	if len(p.buffer)+len(b) > MaxPacketSize {
		return 0, newError("packet write", KindProtocolViolation, ErrMessageTooLarge)
	}
	p.buffer = append(p.buffer, b...)
	return len(b), nil
}

// WriteUint32 appends v in network byte order.
func (p *Packet) WriteUint32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := p.Write(b[:])
	return err
}

// WriteString appends a length-prefixed string: a big-endian uint32 length
// followed by the string bytes.
func (p *Packet) WriteString(s string) error {
	if len(p.buffer)+4+len(s) > MaxPacketSize {
		return newError("packet write", KindProtocolViolation, ErrMessageTooLarge)
	}
	p.buffer = binary.BigEndian.AppendUint32(p.buffer, uint32(len(s)))
	p.buffer = append(p.buffer, s...)
	return nil
}

// Clone returns an independent copy of the packet.
func (p *Packet) Clone() *Packet {
	return &Packet{buffer: append([]byte(nil), p.buffer...)}
}

// resize sets the payload length to n, reusing capacity when possible.
func (p *Packet) resize(n int) {
	if cap(p.buffer) < n {
		p.buffer = make([]byte, n)
		return
	}
	p.buffer = p.buffer[:n]
}

// PacketReader extracts values from a packet payload in the order they
// were written.
type PacketReader struct {
	buf    []byte
	offset int
}

// NewPacketReader returns a reader over the packet's current payload.
func NewPacketReader(p *Packet) *PacketReader {
	return &PacketReader{buf: p.Body()}
}

// Remaining returns the number of unread bytes.
func (r *PacketReader) Remaining() int {
	return len(r.buf) - r.offset
}

// ReadUint32 extracts a big-endian uint32.
func (r *PacketReader) ReadUint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(r.buf[r.offset:])
	r.offset += 4
	return v, nil
}

// ReadString extracts a string written with Packet.WriteString.
func (r *PacketReader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if uint64(r.Remaining()) < uint64(n) {
		r.offset -= 4
		return "", io.ErrUnexpectedEOF
	}
	s := string(r.buf[r.offset : r.offset+int(n)])
	r.offset += int(n)
	return s, nil
}
