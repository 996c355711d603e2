package codec

import (
	"fmt"
)

const (
	maskValue    = 0x7F
	maskContinue = 0x80
	chunkBits    = 7

	intSize   = 32
	shortSize = 16

	maxShort = 32767
	uShort   = 65536
)

// ReadVarInt reads an unsigned LEB128 value of at most five bytes.
// On failure the cursor is left where it was.
func (c *Codec) ReadVarInt() (uint32, error) {
	start := c.buf.Position()
	var v uint32
	for offset := uint(0); offset < intSize; offset += chunkBits {
		b, err := c.buf.ReadUint8()
		if err != nil {
			_ = c.buf.SetPosition(start)
			return 0, err
		}
		v |= uint32(b&maskValue) << offset
		if b&maskContinue == 0 {
			return v, nil
		}
	}
	_ = c.buf.SetPosition(start)
	return 0, fmt.Errorf("%w: VarInt", ErrVarTooLong)
}

// ReadVarUhInt is the unsigned alias of ReadVarInt; the wire form is the same.
func (c *Codec) ReadVarUhInt() (uint32, error) {
	return c.ReadVarInt()
}

// WriteVarInt writes v as 7-bit groups, low group first. Values in 0..127
// take a single byte; anything else is encoded from its low 32 bits.
func (c *Codec) WriteVarInt(v int64) {
	if v >= 0 && v <= maskValue {
		c.buf.WriteUint8(uint8(v))
		return
	}
	u := uint32(v)
	for u != 0 {
		b := uint8(u & maskValue)
		u >>= chunkBits
		if u > 0 {
			b |= maskContinue
		}
		c.buf.WriteUint8(b)
	}
}

// ReadVarShort reads a LEB128 value of at most three bytes and folds it into
// the signed 16-bit range.
func (c *Codec) ReadVarShort() (int16, error) {
	start := c.buf.Position()
	var v uint32
	for offset := uint(0); offset < shortSize; offset += chunkBits {
		b, err := c.buf.ReadUint8()
		if err != nil {
			_ = c.buf.SetPosition(start)
			return 0, err
		}
		v |= uint32(b&maskValue) << offset
		if b&maskContinue != 0 {
			continue
		}
		if v >= uShort {
			_ = c.buf.SetPosition(start)
			return 0, fmt.Errorf("%w: VarShort value %d exceeds 16 bits", ErrVarTooLong, v)
		}
		n := int32(v)
		if n > maxShort {
			n -= uShort
		}
		return int16(n), nil
	}
	_ = c.buf.SetPosition(start)
	return 0, fmt.Errorf("%w: VarShort", ErrVarTooLong)
}

// ReadVarUhShort is the unsigned alias of ReadVarShort; the wire form and the
// sign folding are the same.
func (c *Codec) ReadVarUhShort() (int16, error) {
	return c.ReadVarShort()
}

// WriteVarShortFixed writes v as a plain signed 16-bit short. The read side
// is variable length; the two are not symmetric.
func (c *Codec) WriteVarShortFixed(v int64) {
	c.buf.WriteInt16(v)
}

// ReadVarLong reads a fixed eight-byte unsigned value.
func (c *Codec) ReadVarLong() (uint64, error) {
	return c.buf.ReadUint64()
}

func (c *Codec) ReadVarUhLong() (uint64, error) {
	return c.buf.ReadUint64()
}

// WriteVarLongFixed writes v as a signed eight-byte value.
func (c *Codec) WriteVarLongFixed(v int64) {
	c.buf.WriteInt64(v)
}
