package socket

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
)

func TestPacket_ZeroValue(t *testing.T) {
	var p Packet

	if p.Length() != 0 {
		t.Errorf("Length() = %d, want 0", p.Length())
	}
	if _, err := p.Write([]byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if string(p.Body()) != "abc" {
		t.Errorf("Body() = %q", p.Body())
	}
}

func TestNewPacket_Copies(t *testing.T) {
	body := []byte{1, 2, 3}
	p, err := NewPacket(body)
	if err != nil {
		t.Fatalf("NewPacket failed: %v", err)
	}

	body[0] = 9
	if p.Body()[0] != 1 {
		t.Error("packet aliases the caller's slice")
	}
}

func TestPacket_MaxSize(t *testing.T) {
	p, err := NewPacket(make([]byte, MaxPacketSize))
	if err != nil {
		t.Fatalf("NewPacket at the limit failed: %v", err)
	}

	_, err = p.Write([]byte{0})
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
	if p.Length() != MaxPacketSize {
		t.Errorf("Length() = %d after rejected write", p.Length())
	}

	if _, err = NewPacket(make([]byte, MaxPacketSize+1)); !IsKind(err, KindProtocolViolation) {
		t.Errorf("expected KindProtocolViolation, got %v", err)
	}
}

func TestPacket_Clear(t *testing.T) {
	p, _ := NewPacket([]byte("something"))
	p.Clear()

	if p.Length() != 0 {
		t.Errorf("Length() = %d after Clear", p.Length())
	}
}

func TestPacket_Clone(t *testing.T) {
	p, _ := NewPacket([]byte("original"))
	c := p.Clone()
	p.Clear()
	_, _ = p.Write([]byte("changed"))

	if string(c.Body()) != "original" {
		t.Errorf("clone = %q, want %q", c.Body(), "original")
	}
}

func TestPacket_Resize(t *testing.T) {
	var p Packet
	p.resize(10)
	if p.Length() != 10 {
		t.Fatalf("Length() = %d, want 10", p.Length())
	}

	p.resize(4)
	if p.Length() != 4 || cap(p.buffer) < 10 {
		t.Errorf("shrink lost capacity: len %d cap %d", p.Length(), cap(p.buffer))
	}
}

func TestPacket_TypedValues(t *testing.T) {
	var p Packet
	if err := p.WriteUint32(0xdeadbeef); err != nil {
		t.Fatalf("WriteUint32 failed: %v", err)
	}
	if err := p.WriteString("hello"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}

	want := []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o'}
	if !bytes.Equal(p.Body(), want) {
		t.Fatalf("Body() = %x, want %x", p.Body(), want)
	}

	r := NewPacketReader(&p)
	v, err := r.ReadUint32()
	if err != nil || v != 0xdeadbeef {
		t.Errorf("ReadUint32() = %x, %v", v, err)
	}
	s, err := r.ReadString()
	if err != nil || s != "hello" {
		t.Errorf("ReadString() = %q, %v", s, err)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}

	if _, err = r.ReadUint32(); err != io.ErrUnexpectedEOF {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestPacketReader_TruncatedString(t *testing.T) {
	var p Packet
	_ = p.WriteUint32(100)
	_, _ = p.Write([]byte("short"))

	r := NewPacketReader(&p)
	if _, err := r.ReadString(); err != io.ErrUnexpectedEOF {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if r.Remaining() != p.Length() {
		t.Error("failed ReadString consumed bytes")
	}
}

func TestPacket_WriteStringTooLarge(t *testing.T) {
	p, _ := NewPacket(make([]byte, MaxPacketSize-4))

	if err := p.WriteString("x"); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
	if p.Length() != MaxPacketSize-4 {
		t.Error("rejected WriteString modified the packet")
	}
}

func TestPacket_WriteStringFillsToLimit(t *testing.T) {
	p, _ := NewPacket(make([]byte, MaxPacketSize-6))

	if err := p.WriteString("ab"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if p.Length() != MaxPacketSize {
		t.Fatalf("Length() = %d, want %d", p.Length(), MaxPacketSize)
	}

	tail := p.Body()[MaxPacketSize-6:]
	if !bytes.Equal(tail, []byte{0, 0, 0, 2, 'a', 'b'}) {
		t.Errorf("tail = %x, want 00000002 6162", tail)
	}
}
