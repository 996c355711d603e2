package codec

import (
	"fmt"

	"github.com/spf13/cast"

	"firestige.xyz/dofuswire/internal/bytearray"
)

// Codec reads and writes protocol values on top of a ByteBuffer.
// It shares the buffer's cursor; it is not safe for concurrent use.
type Codec struct {
	buf *bytearray.ByteBuffer
}

// New wraps buf.
func New(buf *bytearray.ByteBuffer) *Codec {
	return &Codec{buf: buf}
}

// Buffer returns the underlying buffer.
func (c *Codec) Buffer() *bytearray.ByteBuffer { return c.buf }

func (c *Codec) Position() int { return c.buf.Position() }

func (c *Codec) SetPosition(p int) error { return c.buf.SetPosition(p) }

func (c *Codec) BytesAvailable() int { return c.buf.BytesAvailable() }

// Read reads one value of type t. The dynamic type of the result is:
//
//	Boolean bool, Byte int8, UnsignedByte uint8, Short int16, UnsignedShort uint16,
//	Int int32, UnsignedInt uint32, Float float32, Double float64, UTF string,
//	VarInt/VarUhInt uint32, VarShort/VarUhShort int16, VarLong/VarUhLong uint64.
func (c *Codec) Read(t Type) (any, error) {
	switch t {
	case TypeBoolean:
		return c.buf.ReadBool()
	case TypeByte:
		return c.buf.ReadInt8()
	case TypeUnsignedByte:
		return c.buf.ReadUint8()
	case TypeShort:
		return c.buf.ReadInt16()
	case TypeUnsignedShort:
		return c.buf.ReadUint16()
	case TypeInt:
		return c.buf.ReadInt32()
	case TypeUnsignedInt:
		return c.buf.ReadUint32()
	case TypeFloat:
		return c.buf.ReadFloat32()
	case TypeDouble:
		return c.buf.ReadFloat64()
	case TypeUTF:
		return c.buf.ReadUTF()
	case TypeVarInt:
		return c.ReadVarInt()
	case TypeVarUhInt:
		return c.ReadVarUhInt()
	case TypeVarShort:
		return c.ReadVarShort()
	case TypeVarUhShort:
		return c.ReadVarUhShort()
	case TypeVarLong:
		return c.ReadVarLong()
	case TypeVarUhLong:
		return c.ReadVarUhLong()
	}
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, t)
}

// ReadCount reads a value of type t and converts it to a non-negative element count.
func (c *Codec) ReadCount(t Type) (int, error) {
	v, err := c.Read(t)
	if err != nil {
		return 0, err
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("count of type %s: %w", t, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", bytearray.ErrInvalidLength, n)
	}
	return n, nil
}

// Write writes v as type t. Numeric values of any Go type are accepted and
// converted; out-of-range signed values wrap like the fixed-width writers do.
func (c *Codec) Write(t Type, v any) error {
	switch t {
	case TypeBoolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return writeErr(t, err)
		}
		c.buf.WriteBool(b)
	case TypeUTF:
		s, err := cast.ToStringE(v)
		if err != nil {
			return writeErr(t, err)
		}
		return c.buf.WriteUTF(s)
	case TypeFloat:
		f, err := cast.ToFloat32E(v)
		if err != nil {
			return writeErr(t, err)
		}
		c.buf.WriteFloat32(f)
	case TypeDouble:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return writeErr(t, err)
		}
		c.buf.WriteFloat64(f)
	case TypeByte, TypeUnsignedByte, TypeShort, TypeUnsignedShort, TypeInt, TypeUnsignedInt,
		TypeVarInt, TypeVarUhInt, TypeVarShort, TypeVarUhShort, TypeVarLong, TypeVarUhLong:
		n, err := toInt64(v)
		if err != nil {
			return writeErr(t, err)
		}
		c.writeInteger(t, n)
	default:
		return fmt.Errorf("%w: %s", ErrNotImplemented, t)
	}
	return nil
}

func (c *Codec) writeInteger(t Type, n int64) {
	switch t {
	case TypeByte:
		c.buf.WriteInt8(n)
	case TypeUnsignedByte:
		c.buf.WriteUint8(uint8(n))
	case TypeShort:
		c.buf.WriteInt16(n)
	case TypeUnsignedShort:
		c.buf.WriteUint16(uint16(n))
	case TypeInt:
		c.buf.WriteInt32(n)
	case TypeUnsignedInt:
		c.buf.WriteUint32(uint32(n))
	case TypeVarInt, TypeVarUhInt:
		c.WriteVarInt(n)
	case TypeVarShort, TypeVarUhShort:
		c.WriteVarShortFixed(n)
	case TypeVarLong, TypeVarUhLong:
		c.WriteVarLongFixed(n)
	}
}

// toInt64 accepts uint64 values above MaxInt64 by reinterpreting their bits.
func toInt64(v any) (int64, error) {
	if u, ok := v.(uint64); ok {
		return int64(u), nil
	}
	return cast.ToInt64E(v)
}

func writeErr(t Type, err error) error {
	return fmt.Errorf("write %s: %w", t, err)
}
