package bytearray

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestSignedOverflow(t *testing.T) {
	tests := []struct {
		name string
		v    int64
		bits uint
		want int64
	}{
		{"short above max", 40000, 16, -25536},
		{"short in range", -1234, 16, -1234},
		{"byte 255", 255, 8, -1},
		{"byte 128", 128, 8, -128},
		{"byte 300", 300, 8, 44},
		{"int above max", math.MaxInt32 + 1, 32, math.MinInt32},
		{"int in range", 123456789, 32, 123456789},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signedOverflow(tt.v, tt.bits); got != tt.want {
				t.Errorf("signedOverflow(%d, %d) = %d, want %d", tt.v, tt.bits, got, tt.want)
			}
		})
	}
}

func TestWriteShortWrapsAndReadsBackSigned(t *testing.T) {
	b := New()
	b.WriteInt16(40000)
	if err := b.SetPosition(0); err != nil {
		t.Fatal(err)
	}
	v, err := b.ReadInt16()
	if err != nil {
		t.Fatalf("ReadInt16: %v", err)
	}
	if v != -25536 {
		t.Fatalf("ReadInt16 = %d, want -25536", v)
	}
}

func TestFixedWidthRoundTrip(t *testing.T) {
	b := New()
	b.WriteBool(true)
	b.WriteInt8(-5)
	b.WriteUint8(250)
	b.WriteInt16(-300)
	b.WriteUint16(65000)
	b.WriteInt32(-70000)
	b.WriteUint32(4000000000)
	b.WriteInt64(-1 << 40)
	b.WriteUint64(1 << 63)
	b.WriteFloat32(1.5)
	b.WriteFloat64(-2.25)

	if b.Len() != 1+1+1+2+2+4+4+8+8+4+8 {
		t.Fatalf("unexpected length %d", b.Len())
	}
	_ = b.SetPosition(0)

	steps := []struct {
		width int
		read  func() (any, error)
		want  any
	}{
		{1, func() (any, error) { return b.ReadBool() }, true},
		{1, func() (any, error) { return b.ReadInt8() }, int8(-5)},
		{1, func() (any, error) { return b.ReadUint8() }, uint8(250)},
		{2, func() (any, error) { return b.ReadInt16() }, int16(-300)},
		{2, func() (any, error) { return b.ReadUint16() }, uint16(65000)},
		{4, func() (any, error) { return b.ReadInt32() }, int32(-70000)},
		{4, func() (any, error) { return b.ReadUint32() }, uint32(4000000000)},
		{8, func() (any, error) { return b.ReadInt64() }, int64(-1 << 40)},
		{8, func() (any, error) { return b.ReadUint64() }, uint64(1 << 63)},
		{4, func() (any, error) { return b.ReadFloat32() }, float32(1.5)},
		{8, func() (any, error) { return b.ReadFloat64() }, float64(-2.25)},
	}
	for i, s := range steps {
		before := b.Position()
		got, err := s.read()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != s.want {
			t.Errorf("step %d: got %v (%T), want %v (%T)", i, got, got, s.want, s.want)
		}
		if b.Position()-before != s.width {
			t.Errorf("step %d: cursor advanced %d, want %d", i, b.Position()-before, s.width)
		}
	}
	if b.BytesAvailable() != 0 {
		t.Errorf("expected buffer to be consumed, %d bytes left", b.BytesAvailable())
	}
}

func TestReadPastEndFailsWithoutMovingCursor(t *testing.T) {
	b := From([]byte{1, 2, 3})
	if _, err := b.ReadUint32(); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if b.Position() != 0 {
		t.Fatalf("cursor moved to %d on failed read", b.Position())
	}
	if _, err := b.ReadUint16(); err != nil {
		t.Fatalf("ReadUint16: %v", err)
	}
	if _, err := b.ReadUint16(); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestSetLen(t *testing.T) {
	b := From([]byte{1, 2, 3, 4, 5})
	_ = b.SetPosition(4)

	if err := b.SetLen(2); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 2 || b.Position() != 2 {
		t.Fatalf("after shrink: len=%d pos=%d, want 2/2", b.Len(), b.Position())
	}

	if err := b.SetLen(6); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.Bytes(), []byte{1, 2, 0, 0, 0, 0}) {
		t.Fatalf("after grow: %v", b.Bytes())
	}

	if err := b.SetLen(0); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 || b.Position() != 0 {
		t.Fatalf("after clear: len=%d pos=%d", b.Len(), b.Position())
	}

	if err := b.SetLen(-1); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestSetPositionBounds(t *testing.T) {
	b := From([]byte{1, 2})
	if err := b.SetPosition(2); err != nil {
		t.Fatalf("position at end should be valid: %v", err)
	}
	if err := b.SetPosition(3); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := b.SetPosition(-1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestReadBytesExpandsDestination(t *testing.T) {
	src := From([]byte{10, 11, 12, 13, 14})
	dst := From([]byte{1, 2})

	if err := src.ReadBytes(dst, dst.Len(), 3); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(dst.Bytes(), []byte{1, 2, 10, 11, 12}) {
		t.Fatalf("dst = %v", dst.Bytes())
	}
	if dst.Position() != 0 {
		t.Fatalf("destination cursor moved to %d", dst.Position())
	}
	if src.BytesAvailable() != 2 {
		t.Fatalf("src available = %d, want 2", src.BytesAvailable())
	}

	if err := src.ReadBytes(dst, 0, 3); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestWriteBytes(t *testing.T) {
	src := From([]byte{1, 2, 3, 4})
	b := New()
	if err := b.WriteBytes(src, 1, 2); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteBytes(src, 2, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.Bytes(), []byte{2, 3, 3, 4}) {
		t.Fatalf("got %v", b.Bytes())
	}
	if err := b.WriteBytes(src, 3, 4); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestWriteOverwritesInPlace(t *testing.T) {
	b := From([]byte{0, 0, 0, 0})
	_ = b.SetPosition(1)
	b.WriteUint16(0xABCD)
	if !bytes.Equal(b.Bytes(), []byte{0, 0xAB, 0xCD, 0}) {
		t.Fatalf("got %x", b.Bytes())
	}
	if b.Len() != 4 {
		t.Fatalf("length changed to %d", b.Len())
	}
}

func TestObjectRoundTrip(t *testing.T) {
	b := New()
	if err := b.WriteObject(float64(42)); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if err := b.WriteObject("hello"); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	_ = b.SetPosition(0)

	var n float64
	if err := b.ReadObject(&n); err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	var s string
	if err := b.ReadObject(&s); err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if n != 42 || s != "hello" {
		t.Fatalf("got %v %q", n, s)
	}
	if b.BytesAvailable() != 0 {
		t.Fatalf("%d bytes left after reading both objects", b.BytesAvailable())
	}
}
