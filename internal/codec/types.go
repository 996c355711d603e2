// Package codec provides the typed read/write surface of the game protocol over a ByteBuffer.
package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned for type tags outside the supported set.
	ErrNotImplemented = errors.New("codec: type not implemented")
	// ErrVarTooLong is returned when a variable-length integer does not terminate in time.
	ErrVarTooLong = errors.New("codec: too much data for variable-length integer")
)

// Type is a primitive wire type tag. The set is closed.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeBoolean
	TypeByte
	TypeUnsignedByte
	TypeShort
	TypeUnsignedShort
	TypeInt
	TypeUnsignedInt
	TypeFloat
	TypeDouble
	TypeUTF
	TypeVarInt
	TypeVarUhInt
	TypeVarShort
	TypeVarUhShort
	TypeVarLong
	TypeVarUhLong

	typeCount
)

var typeNames = [typeCount]string{
	TypeInvalid:       "Invalid",
	TypeBoolean:       "Boolean",
	TypeByte:          "Byte",
	TypeUnsignedByte:  "UnsignedByte",
	TypeShort:         "Short",
	TypeUnsignedShort: "UnsignedShort",
	TypeInt:           "Int",
	TypeUnsignedInt:   "UnsignedInt",
	TypeFloat:         "Float",
	TypeDouble:        "Double",
	TypeUTF:           "UTF",
	TypeVarInt:        "VarInt",
	TypeVarUhInt:      "VarUhInt",
	TypeVarShort:      "VarShort",
	TypeVarUhShort:    "VarUhShort",
	TypeVarLong:       "VarLong",
	TypeVarUhLong:     "VarUhLong",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, typeCount)
	for t := TypeBoolean; t < typeCount; t++ {
		m[typeNames[t]] = t
	}
	return m
}()

// ParseType maps a protocol type name such as "VarUhShort" to its tag.
func ParseType(name string) (Type, error) {
	if t, ok := typesByName[name]; ok {
		return t, nil
	}
	return TypeInvalid, fmt.Errorf("%w: %q", ErrNotImplemented, name)
}

// IsPrimitive reports whether name is a readable primitive tag.
func IsPrimitive(name string) bool {
	_, ok := typesByName[name]
	return ok
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Valid reports whether t is one of the supported tags.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < typeCount
}
