package capture

import (
	"errors"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/dofuswire/internal/core"
)

// Segment is the TCP payload of one captured packet.
type Segment struct {
	Key       core.StreamKey
	Seq       uint32
	SYN       bool
	FIN       bool
	RST       bool
	Payload   []byte
	Timestamp time.Time

	// decoded layers kept for the reordering assembler
	flow gopacket.Flow
	tcp  layers.TCP
}

// SrcPort is the sending side's port, which decides message direction.
func (s Segment) SrcPort() uint16 { return s.Key.Src.Port() }

// Decoder extracts TCP segments from link-layer frames. It reuses its layer
// buffers between calls and is not safe for concurrent use; the returned
// payload aliases the input frame.
type Decoder struct {
	parser *gopacket.DecodingLayerParser
	raw6   *gopacket.DecodingLayerParser

	eth     layers.Ethernet
	sll     layers.LinuxSLL
	dot1q   layers.Dot1Q
	ip4     layers.IPv4
	ip6     layers.IPv6
	tcp     layers.TCP
	payload gopacket.Payload
	decoded []gopacket.LayerType
}

// NewDecoder returns a decoder for frames of the given link type. Ethernet,
// Linux cooked capture and raw IP links are understood.
func NewDecoder(link layers.LinkType) (*Decoder, error) {
	d := &Decoder{decoded: make([]gopacket.LayerType, 0, 6)}

	var first gopacket.LayerType
	switch link {
	case layers.LinkTypeEthernet:
		first = layers.LayerTypeEthernet
	case layers.LinkTypeLinuxSLL:
		first = layers.LayerTypeLinuxSLL
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		first = layers.LayerTypeIPv4
	case layers.LinkTypeIPv6:
		first = layers.LayerTypeIPv6
	default:
		return nil, errors.New("capture: unsupported link type " + link.String())
	}

	d.parser = d.newParser(first)
	if link == layers.LinkTypeRaw {
		// raw links carry either IP version, told apart by the first nibble
		d.raw6 = d.newParser(layers.LayerTypeIPv6)
	}
	return d, nil
}

func (d *Decoder) newParser(first gopacket.LayerType) *gopacket.DecodingLayerParser {
	p := gopacket.NewDecodingLayerParser(first,
		&d.eth, &d.sll, &d.dot1q, &d.ip4, &d.ip6, &d.tcp, &d.payload)
	p.IgnoreUnsupported = true
	return p
}

// Segment decodes one frame. ok is false for anything that is not a TCP
// segment carrying payload; err is set only for malformed frames.
func (d *Decoder) Segment(data []byte, ci gopacket.CaptureInfo) (seg Segment, ok bool, err error) {
	parser := d.parser
	if d.raw6 != nil && len(data) > 0 && data[0]>>4 == 6 {
		parser = d.raw6
	}

	if err := parser.DecodeLayers(data, &d.decoded); err != nil {
		return Segment{}, false, err
	}

	var (
		src, dst netip.Addr
		flow     gopacket.Flow
		sawTCP   bool
	)
	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			src, _ = netip.AddrFromSlice(d.ip4.SrcIP.To4())
			dst, _ = netip.AddrFromSlice(d.ip4.DstIP.To4())
			flow = d.ip4.NetworkFlow()
		case layers.LayerTypeIPv6:
			src, _ = netip.AddrFromSlice(d.ip6.SrcIP)
			dst, _ = netip.AddrFromSlice(d.ip6.DstIP)
			flow = d.ip6.NetworkFlow()
		case layers.LayerTypeTCP:
			sawTCP = true
		}
	}
	if !sawTCP || !src.IsValid() {
		return Segment{}, false, nil
	}

	seg = Segment{
		Key: core.StreamKey{
			Src: netip.AddrPortFrom(src, uint16(d.tcp.SrcPort)),
			Dst: netip.AddrPortFrom(dst, uint16(d.tcp.DstPort)),
		},
		Seq:       d.tcp.Seq,
		SYN:       d.tcp.SYN,
		FIN:       d.tcp.FIN,
		RST:       d.tcp.RST,
		Payload:   d.tcp.Payload,
		Timestamp: ci.Timestamp,
		flow:      flow,
		tcp:       d.tcp,
	}
	// options live in the decoder's scratch array
	seg.tcp.Options = nil
	if len(seg.Payload) == 0 && !seg.FIN && !seg.RST && !seg.SYN {
		return Segment{}, false, nil
	}
	return seg, true, nil
}
