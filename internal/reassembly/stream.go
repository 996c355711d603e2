package reassembly

import (
	"time"

	"firestige.xyz/dofuswire/internal/bytearray"
)

// Stream is the framing state of one direction of one connection. A stream
// is Idle or Awaiting the rest of a split message; it never terminates.
type Stream struct {
	name string

	awaiting     bool
	pending      *bytearray.ByteBuffer
	targetID     uint16
	targetLength int
	targetPort   uint16

	// carry holds header bytes cut off at the end of the previous chunk.
	carry []byte

	lastSeen time.Time
}

// NewStream returns an Idle stream. name labels its log lines and messages.
func NewStream(name string) *Stream {
	return &Stream{name: name}
}

func (s *Stream) Name() string { return s.name }

// Awaiting reports whether a split message is buffered.
func (s *Stream) Awaiting() bool { return s.awaiting }

// Buffered returns the number of bytes held for an incomplete message or header.
func (s *Stream) Buffered() int {
	n := len(s.carry)
	if s.pending != nil {
		n += s.pending.Len()
	}
	return n
}

// LastSeen returns the time the stream was last handed out by a Tracker.
func (s *Stream) LastSeen() time.Time { return s.lastSeen }

func (s *Stream) await(id uint16, length int, port uint16) {
	s.awaiting = true
	s.pending = bytearray.New()
	s.targetID = id
	s.targetLength = length
	s.targetPort = port
}

func (s *Stream) reset() {
	s.awaiting = false
	s.pending = nil
	s.targetID = 0
	s.targetLength = 0
	s.targetPort = 0
}
