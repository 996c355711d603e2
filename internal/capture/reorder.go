package capture

import (
	"encoding/binary"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/tcpassembly"

	"firestige.xyz/dofuswire/internal/core"
)

// DefaultMaxBufferedPages caps out-of-order pages held per connection.
const DefaultMaxBufferedPages = 256

// OrderedHandler receives the payload of each stream direction in sequence
// order. Payload bytes are only valid for the duration of the call.
type OrderedHandler interface {
	Payload(key core.StreamKey, payload []byte, seen time.Time)
	// Gap reports bytes lost before the next Payload; framing state for key
	// can no longer be trusted.
	Gap(key core.StreamKey, skipped int)
	Closed(key core.StreamKey)
}

// Reorderer puts segments back into sequence order before they are framed.
// It belongs to one goroutine.
type Reorderer struct {
	assembler *tcpassembly.Assembler
}

// NewReorderer returns a reorderer delivering to h. maxBufferedPages bounds
// the out-of-order data held per connection; zero selects the default.
func NewReorderer(h OrderedHandler, maxBufferedPages int) *Reorderer {
	if maxBufferedPages <= 0 {
		maxBufferedPages = DefaultMaxBufferedPages
	}
	pool := tcpassembly.NewStreamPool(&orderedFactory{handler: h})
	a := tcpassembly.NewAssembler(pool)
	a.MaxBufferedPagesPerConnection = maxBufferedPages
	return &Reorderer{assembler: a}
}

// Assemble adds one segment.
func (r *Reorderer) Assemble(seg Segment) {
	r.assembler.AssembleWithTimestamp(seg.flow, &seg.tcp, seg.Timestamp)
}

// FlushOlderThan stops waiting for data missing since before t and closes
// connections silent since t.
func (r *Reorderer) FlushOlderThan(t time.Time) (flushed, closed int) {
	return r.assembler.FlushOlderThan(t)
}

// FlushAll delivers everything buffered and closes every connection.
func (r *Reorderer) FlushAll() int {
	return r.assembler.FlushAll()
}

type orderedFactory struct {
	handler OrderedHandler
}

func (f *orderedFactory) New(netFlow, tcpFlow gopacket.Flow) tcpassembly.Stream {
	return &orderedStream{key: flowKey(netFlow, tcpFlow), handler: f.handler}
}

func flowKey(netFlow, tcpFlow gopacket.Flow) core.StreamKey {
	srcIP, _ := netip.AddrFromSlice(netFlow.Src().Raw())
	dstIP, _ := netip.AddrFromSlice(netFlow.Dst().Raw())
	return core.StreamKey{
		Src: netip.AddrPortFrom(srcIP, portOf(tcpFlow.Src())),
		Dst: netip.AddrPortFrom(dstIP, portOf(tcpFlow.Dst())),
	}
}

func portOf(e gopacket.Endpoint) uint16 {
	raw := e.Raw()
	if len(raw) != 2 {
		return 0
	}
	return binary.BigEndian.Uint16(raw)
}

type orderedStream struct {
	key     core.StreamKey
	handler OrderedHandler
}

func (s *orderedStream) Reassembled(rs []tcpassembly.Reassembly) {
	for _, r := range rs {
		// -1 marks a stream picked up mid-connection
		if r.Skip > 0 {
			s.handler.Gap(s.key, r.Skip)
		}
		if len(r.Bytes) > 0 {
			s.handler.Payload(s.key, r.Bytes, r.Seen)
		}
	}
}

func (s *orderedStream) ReassemblyComplete() {
	s.handler.Closed(s.key)
}
