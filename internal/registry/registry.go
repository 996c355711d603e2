// Package registry maps protocol message ids to a name and a body decoder.
package registry

import (
	"errors"
	"sort"

	"firestige.xyz/dofuswire/internal/codec"
)

var (
	ErrUnknownType   = errors.New("registry: unknown type")
	ErrInvalidSchema = errors.New("registry: invalid protocol description")
	ErrUnsupported   = errors.New("registry: unsupported description format")
)

// DecodeFunc reads one message body at the codec's cursor.
type DecodeFunc func(c *codec.Codec) (any, error)

// Entry describes one registered message. A nil Decode means the body is
// skipped without being interpreted.
type Entry struct {
	Name   string
	Decode DecodeFunc
}

// Registry resolves message ids. Implementations are read-only once handed
// to a decoder and must be safe for concurrent lookups.
type Registry interface {
	Lookup(id uint16) (Entry, bool)
}

// Static is an in-memory registry filled in code.
type Static struct {
	entries map[uint16]Entry
}

func NewStatic() *Static {
	return &Static{entries: make(map[uint16]Entry)}
}

// Register adds or replaces the entry for id. It returns s for chaining and
// must not be called once s is in use by a decoder.
func (s *Static) Register(id uint16, name string, fn DecodeFunc) *Static {
	s.entries[id] = Entry{Name: name, Decode: fn}
	return s
}

func (s *Static) Lookup(id uint16) (Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

func (s *Static) Len() int { return len(s.entries) }

// IDs returns the registered ids in ascending order.
func (s *Static) IDs() []uint16 {
	return sortedKeys(s.entries)
}

func sortedKeys[V any](m map[uint16]V) []uint16 {
	ids := make([]uint16, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
