// Package bytearray implements a growable, cursor-addressed big-endian byte buffer.
package bytearray

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrOutOfRange is returned when a read needs more bytes than are available.
	ErrOutOfRange = errors.New("bytearray: end of buffer was encountered")
	// ErrUnsupportedCharset is returned for character set names that cannot be resolved.
	ErrUnsupportedCharset = errors.New("bytearray: unsupported character set")
	// ErrInvalidLength is returned for negative lengths and offsets.
	ErrInvalidLength = errors.New("bytearray: invalid length")
)

// ByteBuffer owns a contiguous byte region and a read/write cursor.
//
// Invariant: 0 <= pos <= len(buf). Reads never move the cursor on failure.
// Writes past the end grow the region; it never shrinks except through SetLen or Clear.
// A ByteBuffer is not safe for concurrent use.
type ByteBuffer struct {
	buf []byte
	pos int
}

// New returns an empty buffer.
func New() *ByteBuffer {
	return &ByteBuffer{}
}

// From wraps b without copying. The buffer takes ownership of b.
func From(b []byte) *ByteBuffer {
	return &ByteBuffer{buf: b}
}

// Len returns the number of bytes held.
func (b *ByteBuffer) Len() int { return len(b.buf) }

// SetLen truncates or zero-extends the buffer. Truncation clamps the cursor.
func (b *ByteBuffer) SetLen(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: length %d", ErrInvalidLength, n)
	}
	switch {
	case n == 0:
		b.Clear()
	case n < len(b.buf):
		b.buf = b.buf[:n]
		if b.pos > n {
			b.pos = n
		}
	case n > len(b.buf):
		b.grow(n)
	}
	return nil
}

// Position returns the cursor.
func (b *ByteBuffer) Position() int { return b.pos }

// SetPosition moves the cursor. p must lie within [0, Len].
func (b *ByteBuffer) SetPosition(p int) error {
	if p < 0 || p > len(b.buf) {
		return fmt.Errorf("%w: position %d outside [0, %d]", ErrOutOfRange, p, len(b.buf))
	}
	b.pos = p
	return nil
}

// BytesAvailable returns Len - Position.
func (b *ByteBuffer) BytesAvailable() int { return len(b.buf) - b.pos }

// Clear drops all content and rewinds the cursor.
func (b *ByteBuffer) Clear() {
	b.buf = nil
	b.pos = 0
}

// Bytes returns the held bytes. The slice aliases the buffer until the next write.
func (b *ByteBuffer) Bytes() []byte { return b.buf }

// grow reallocates so that len(buf) == n, keeping existing content.
func (b *ByteBuffer) grow(n int) {
	if n <= len(b.buf) {
		return
	}
	if n <= cap(b.buf) {
		old := len(b.buf)
		b.buf = b.buf[:n]
		clear(b.buf[old:])
		return
	}
	next := make([]byte, n, max(n, 2*cap(b.buf)))
	copy(next, b.buf)
	b.buf = next
}

// ensure makes room for n bytes at the cursor.
func (b *ByteBuffer) ensure(n int) {
	b.grow(b.pos + n)
}

// take consumes n bytes from the cursor.
func (b *ByteBuffer) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidLength, n)
	}
	if n > b.BytesAvailable() {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrOutOfRange, n, b.BytesAvailable())
	}
	p := b.buf[b.pos : b.pos+n]
	b.pos += n
	return p, nil
}

// put reserves n bytes at the cursor and advances past them.
func (b *ByteBuffer) put(n int) []byte {
	b.ensure(n)
	p := b.buf[b.pos : b.pos+n]
	b.pos += n
	return p
}

// signedOverflow wraps v into the signed range of the given bit width,
// the way a hardware store of the low bits would.
func signedOverflow(v int64, bits uint) int64 {
	sign := int64(1) << (bits - 1)
	mask := int64(1)<<bits - 1
	v &= mask
	return (v & (sign - 1)) - (v & sign)
}

func (b *ByteBuffer) ReadBool() (bool, error) {
	v, err := b.ReadInt8()
	return v != 0, err
}

func (b *ByteBuffer) ReadInt8() (int8, error) {
	p, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return int8(p[0]), nil
}

func (b *ByteBuffer) ReadUint8() (uint8, error) {
	p, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (b *ByteBuffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

func (b *ByteBuffer) ReadUint16() (uint16, error) {
	p, err := b.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (b *ByteBuffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

func (b *ByteBuffer) ReadUint32() (uint32, error) {
	p, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (b *ByteBuffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

func (b *ByteBuffer) ReadUint64() (uint64, error) {
	p, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}

func (b *ByteBuffer) ReadFloat32() (float32, error) {
	v, err := b.ReadUint32()
	return math.Float32frombits(v), err
}

func (b *ByteBuffer) ReadFloat64() (float64, error) {
	v, err := b.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadBytes copies length bytes from the cursor into dst at dstOffset, growing dst
// as needed. The cursor of dst is left where it was.
func (b *ByteBuffer) ReadBytes(dst *ByteBuffer, dstOffset, length int) error {
	if dstOffset < 0 {
		return fmt.Errorf("%w: offset %d", ErrInvalidLength, dstOffset)
	}
	p, err := b.take(length)
	if err != nil {
		return err
	}
	dst.grow(dstOffset + length)
	copy(dst.buf[dstOffset:], p)
	return nil
}

// Read implements io.Reader over the unread bytes.
func (b *ByteBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.BytesAvailable() == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += n
	return n, nil
}

func (b *ByteBuffer) WriteBool(v bool) {
	if v {
		b.WriteInt8(1)
		return
	}
	b.WriteInt8(0)
}

// WriteInt8 stores the low 8 bits of v as a signed byte.
func (b *ByteBuffer) WriteInt8(v int64) {
	b.put(1)[0] = byte(signedOverflow(v, 8))
}

// WriteInt16 stores the low 16 bits of v as a signed short.
func (b *ByteBuffer) WriteInt16(v int64) {
	binary.BigEndian.PutUint16(b.put(2), uint16(signedOverflow(v, 16)))
}

// WriteInt32 stores the low 32 bits of v as a signed int.
func (b *ByteBuffer) WriteInt32(v int64) {
	binary.BigEndian.PutUint32(b.put(4), uint32(signedOverflow(v, 32)))
}

func (b *ByteBuffer) WriteInt64(v int64) {
	binary.BigEndian.PutUint64(b.put(8), uint64(v))
}

func (b *ByteBuffer) WriteUint8(v uint8) {
	b.put(1)[0] = v
}

func (b *ByteBuffer) WriteUint16(v uint16) {
	binary.BigEndian.PutUint16(b.put(2), v)
}

func (b *ByteBuffer) WriteUint32(v uint32) {
	binary.BigEndian.PutUint32(b.put(4), v)
}

func (b *ByteBuffer) WriteUint64(v uint64) {
	binary.BigEndian.PutUint64(b.put(8), v)
}

func (b *ByteBuffer) WriteFloat32(v float32) {
	b.WriteUint32(math.Float32bits(v))
}

func (b *ByteBuffer) WriteFloat64(v float64) {
	b.WriteUint64(math.Float64bits(v))
}

// WriteBytes copies length bytes of src starting at offset to the cursor.
// A zero length copies everything from offset to the end of src.
func (b *ByteBuffer) WriteBytes(src *ByteBuffer, offset, length int) error {
	if offset < 0 || offset > src.Len() {
		return fmt.Errorf("%w: offset %d", ErrInvalidLength, offset)
	}
	if length == 0 {
		length = src.Len() - offset
	}
	if length < 0 || offset+length > src.Len() {
		return fmt.Errorf("%w: need %d, have %d", ErrOutOfRange, length, src.Len()-offset)
	}
	copy(b.put(length), src.buf[offset:offset+length])
	return nil
}

// Write implements io.Writer at the cursor.
func (b *ByteBuffer) Write(p []byte) (int, error) {
	copy(b.put(len(p)), p)
	return len(p), nil
}
