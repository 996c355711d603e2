package registry

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"firestige.xyz/dofuswire/internal/bytearray"
	"firestige.xyz/dofuswire/internal/codec"
)

const (
	// polymorphicType marks a var whose concrete type follows on the wire as a u16 type id.
	polymorphicType = "ID"
	byteArrayType   = "ByteArray"

	// TypeKey holds the concrete type name of a polymorphic value.
	TypeKey = "_type"

	maxDepth = 64
)

// Named is a row of the id tables.
type Named struct {
	Name string `json:"name" yaml:"name" toml:"name"`
}

// BoolVar is a flag packed into a shared byte.
type BoolVar struct {
	Name string `json:"name" yaml:"name" toml:"name"`
}

// Var is one field of a type, read in declaration order.
type Var struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Type   string `json:"type" yaml:"type" toml:"type"`
	Length string `json:"length" yaml:"length" toml:"length"` // count prefix type; empty for a single value
}

// TypeDef describes the wire layout of a message or nested type.
type TypeDef struct {
	Parent   string    `json:"parent" yaml:"parent" toml:"parent"`
	BoolVars []BoolVar `json:"boolVars" yaml:"boolVars" toml:"boolVars"`
	Vars     []Var     `json:"vars" yaml:"vars" toml:"vars"`
}

// Description is the on-disk protocol description for one protocol revision.
type Description struct {
	Version     string             `json:"version" yaml:"version" toml:"version"`
	MsgFromID   map[string]Named   `json:"msg_from_id" yaml:"msg_from_id" toml:"msg_from_id"`
	TypesFromID map[string]Named   `json:"types_from_id" yaml:"types_from_id" toml:"types_from_id"`
	Types       map[string]TypeDef `json:"types" yaml:"types" toml:"types"`
}

type field struct {
	name  string
	prim  codec.Type // valid when the var is a primitive
	raw   bool       // ByteArray
	ref   string     // nested type name or polymorphicType
	count codec.Type // TypeInvalid when the var is a single value
}

type plan struct {
	parent string
	flags  []string
	fields []field
}

// Schema is a Registry driven by a protocol description.
type Schema struct {
	version  string
	messages map[uint16]Entry
	typeIDs  map[uint16]string
	plans    map[string]*plan
}

// Compile validates d and builds a Schema from it.
func Compile(d *Description) (*Schema, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	s := &Schema{
		version:  d.Version,
		messages: make(map[uint16]Entry, len(d.MsgFromID)),
		typeIDs:  make(map[uint16]string, len(d.TypesFromID)),
		plans:    make(map[string]*plan, len(d.Types)),
	}

	for name, def := range d.Types {
		p := &plan{parent: def.Parent}
		for _, b := range def.BoolVars {
			p.flags = append(p.flags, b.Name)
		}
		for _, v := range def.Vars {
			p.fields = append(p.fields, compileVar(v))
		}
		s.plans[name] = p
	}

	for key, t := range d.TypesFromID {
		id, _ := parseID(key)
		s.typeIDs[id] = t.Name
	}

	for key, m := range d.MsgFromID {
		id, _ := parseID(key)
		name := m.Name
		s.messages[id] = Entry{
			Name: name,
			Decode: func(c *codec.Codec) (any, error) {
				return s.decode(c, name, 0)
			},
		}
	}
	return s, nil
}

func compileVar(v Var) field {
	f := field{name: v.Name}
	if v.Length != "" {
		f.count, _ = codec.ParseType(v.Length)
	}
	switch {
	case v.Type == byteArrayType:
		f.raw = true
	case codec.IsPrimitive(v.Type):
		f.prim, _ = codec.ParseType(v.Type)
	default:
		f.ref = v.Type
	}
	return f
}

func parseID(key string) (uint16, error) {
	n, err := strconv.ParseUint(key, 10, 16)
	return uint16(n), err
}

// Validate reports every structural problem found in d.
func (d *Description) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidSchema}, args...)...))
	}

	for key, m := range d.MsgFromID {
		if _, err := parseID(key); err != nil {
			bad("message id %q is not a 16-bit number", key)
		}
		if _, ok := d.Types[m.Name]; !ok {
			bad("message %s (%s) has no type definition", key, m.Name)
		}
	}
	for key, t := range d.TypesFromID {
		if _, err := parseID(key); err != nil {
			bad("type id %q is not a 16-bit number", key)
		}
		if _, ok := d.Types[t.Name]; !ok {
			bad("type id %s names undefined type %s", key, t.Name)
		}
	}
	for name, def := range d.Types {
		if def.Parent != "" {
			if _, ok := d.Types[def.Parent]; !ok {
				bad("type %s extends undefined parent %s", name, def.Parent)
			}
		}
		for _, v := range def.Vars {
			if v.Length != "" && !codec.IsPrimitive(v.Length) {
				bad("%s.%s: length type %s is not a primitive", name, v.Name, v.Length)
			}
			switch {
			case v.Type == byteArrayType:
				if v.Length == "" {
					bad("%s.%s: ByteArray needs a length type", name, v.Name)
				}
			case v.Type == polymorphicType, codec.IsPrimitive(v.Type):
			default:
				if _, ok := d.Types[v.Type]; !ok {
					bad("%s.%s: undefined type %s", name, v.Name, v.Type)
				}
			}
		}
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errors.Join(errs...)
}

func (s *Schema) Lookup(id uint16) (Entry, bool) {
	e, ok := s.messages[id]
	return e, ok
}

// Version returns the protocol revision the description was written for.
func (s *Schema) Version() string { return s.version }

func (s *Schema) Len() int { return len(s.messages) }

// IDs returns the message ids in ascending order.
func (s *Schema) IDs() []uint16 { return sortedKeys(s.messages) }

// TypeCount returns the number of type definitions.
func (s *Schema) TypeCount() int { return len(s.plans) }

func (s *Schema) decode(c *codec.Codec, name string, depth int) (map[string]any, error) {
	out := make(map[string]any)
	if err := s.decodeInto(c, name, depth, out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeInto reads the parent chain first, then the packed flags, then vars.
func (s *Schema) decodeInto(c *codec.Codec, name string, depth int, out map[string]any) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d at %s", ErrInvalidSchema, maxDepth, name)
	}
	p, ok := s.plans[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	if p.parent != "" {
		if err := s.decodeInto(c, p.parent, depth+1, out); err != nil {
			return err
		}
	}

	for i := 0; i < len(p.flags); i += 8 {
		box, err := c.Buffer().ReadUint8()
		if err != nil {
			return fmt.Errorf("%s flags: %w", name, err)
		}
		for bit := 0; bit < 8 && i+bit < len(p.flags); bit++ {
			out[p.flags[i+bit]] = box&(1<<bit) != 0
		}
	}

	for _, f := range p.fields {
		v, err := s.readField(c, f, depth)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", name, f.name, err)
		}
		out[f.name] = v
	}
	return nil
}

func (s *Schema) readField(c *codec.Codec, f field, depth int) (any, error) {
	if f.count == codec.TypeInvalid {
		return s.readOne(c, f, depth)
	}
	n, err := c.ReadCount(f.count)
	if err != nil {
		return nil, err
	}
	if f.raw {
		if n > c.BytesAvailable() {
			return nil, fmt.Errorf("%w: byte array of %d with %d available", bytearray.ErrOutOfRange, n, c.BytesAvailable())
		}
		dst := bytearray.New()
		if err := c.Buffer().ReadBytes(dst, 0, n); err != nil {
			return nil, err
		}
		return dst.Bytes(), nil
	}
	items := make([]any, 0, min(n, c.BytesAvailable()))
	for i := 0; i < n; i++ {
		v, err := s.readOne(c, f, depth)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, v)
	}
	return items, nil
}

func (s *Schema) readOne(c *codec.Codec, f field, depth int) (any, error) {
	switch {
	case f.prim != codec.TypeInvalid:
		return c.Read(f.prim)
	case f.raw:
		return nil, fmt.Errorf("%w: ByteArray without length", codec.ErrNotImplemented)
	case f.ref == polymorphicType:
		id, err := c.Buffer().ReadUint16()
		if err != nil {
			return nil, err
		}
		name, ok := s.typeIDs[id]
		if !ok {
			return nil, fmt.Errorf("%w: type id %d", ErrUnknownType, id)
		}
		obj, err := s.decode(c, name, depth+1)
		if err != nil {
			return nil, err
		}
		obj[TypeKey] = name
		return obj, nil
	default:
		return s.decode(c, f.ref, depth+1)
	}
}
