package capture

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
)

type packetSpec struct {
	src, dst         string
	srcPort, dstPort uint16
	payload          []byte
	seq              uint32
	syn, fin         bool
	v6               bool
}

func buildFrame(t *testing.T, p packetSpec) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(p.srcPort),
		DstPort: layers.TCPPort(p.dstPort),
		Seq:     1000,
		ACK:     !p.syn,
		PSH:     len(p.payload) > 0,
		SYN:     p.syn,
		FIN:     p.fin,
		Window:  65535,
	}

	if p.seq != 0 {
		tcp.Seq = p.seq
	}

	var net4 gopacket.SerializableLayer
	if p.v6 {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolTCP,
			SrcIP:      net.ParseIP(p.src),
			DstIP:      net.ParseIP(p.dst),
		}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		net4 = ip
	} else {
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    net.ParseIP(p.src).To4(),
			DstIP:    net.ParseIP(p.dst).To4(),
		}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		net4 = ip
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, net4, tcp, gopacket.Payload(p.payload)))
	return buf.Bytes()
}

func TestDecoderSegment(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeEthernet)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	frame := buildFrame(t, packetSpec{
		src: "172.16.0.1", dst: "10.0.0.2",
		srcPort: 5555, dstPort: 51234,
		payload: []byte{0x00, 0x29, 0x01, 0xAA},
	})

	seg, ok, err := d.Segment(frame, gopacket.CaptureInfo{Timestamp: now})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "172.16.0.1:5555", seg.Key.Src.String())
	assert.Equal(t, "10.0.0.2:51234", seg.Key.Dst.String())
	assert.Equal(t, uint16(5555), seg.SrcPort())
	assert.Equal(t, []byte{0x00, 0x29, 0x01, 0xAA}, seg.Payload)
	assert.Equal(t, uint32(1000), seg.Seq)
	assert.Equal(t, now, seg.Timestamp)
}

func TestDecoderSegmentIPv6(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeEthernet)
	require.NoError(t, err)

	frame := buildFrame(t, packetSpec{
		src: "2001:db8::1", dst: "2001:db8::2",
		srcPort: 40000, dstPort: 5555,
		payload: []byte("hi"),
	})
	seg, ok, err := d.Segment(frame, gopacket.CaptureInfo{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[2001:db8::1]:40000", seg.Key.Src.String())
}

func TestDecoderSkipsEmptyAndNonTCP(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeEthernet)
	require.NoError(t, err)

	ack := buildFrame(t, packetSpec{src: "10.0.0.1", dst: "10.0.0.2", srcPort: 1, dstPort: 5555})
	_, ok, err := d.Segment(ack, gopacket.CaptureInfo{})
	require.NoError(t, err)
	assert.False(t, ok, "bare ack should be skipped")

	fin := buildFrame(t, packetSpec{src: "10.0.0.1", dst: "10.0.0.2", srcPort: 1, dstPort: 5555, fin: true})
	seg, ok, err := d.Segment(fin, gopacket.CaptureInfo{})
	require.NoError(t, err)
	assert.True(t, ok, "fin should be reported")
	assert.True(t, seg.FIN)

	udp := gopacket.NewSerializeBuffer()
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP,
		SrcIP: net.IPv4(10, 0, 0, 1).To4(), DstIP: net.IPv4(10, 0, 0, 2).To4()}
	u := &layers.UDP{SrcPort: 53, DstPort: 53}
	require.NoError(t, u.SetNetworkLayerForChecksum(ip))
	require.NoError(t, gopacket.SerializeLayers(udp, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		&layers.Ethernet{SrcMAC: net.HardwareAddr{2, 0, 0, 0, 0, 1}, DstMAC: net.HardwareAddr{2, 0, 0, 0, 0, 2}, EthernetType: layers.EthernetTypeIPv4},
		ip, u, gopacket.Payload("dns")))
	_, ok, err = d.Segment(udp.Bytes(), gopacket.CaptureInfo{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewDecoderLinkTypes(t *testing.T) {
	for _, lt := range []layers.LinkType{layers.LinkTypeEthernet, layers.LinkTypeLinuxSLL, layers.LinkTypeRaw} {
		_, err := NewDecoder(lt)
		assert.NoError(t, err, lt.String())
	}
	_, err := NewDecoder(layers.LinkTypeIEEE802_11)
	assert.Error(t, err)
}

func TestCompiledFilterMatchesGamePort(t *testing.T) {
	raw, err := compileBPF(layers.LinkTypeEthernet, 65535, DefaultFilter)
	require.NoError(t, err)

	insns, ok := bpf.Disassemble(raw)
	require.True(t, ok, "every instruction should disassemble")

	vm, err := bpf.NewVM(insns)
	require.NoError(t, err)

	game := buildFrame(t, packetSpec{src: "10.0.0.1", dst: "10.0.0.2", srcPort: 40000, dstPort: 5555, payload: []byte{1}})
	web := buildFrame(t, packetSpec{src: "10.0.0.1", dst: "10.0.0.2", srcPort: 40000, dstPort: 80, payload: []byte{1}})

	n, err := vm.Run(game)
	require.NoError(t, err)
	assert.NotZero(t, n)

	n, err = vm.Run(web)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenFileReplaysFilteredPackets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for _, p := range []packetSpec{
		{src: "10.0.0.1", dst: "10.0.0.2", srcPort: 40000, dstPort: 5555, payload: []byte{1}},
		{src: "10.0.0.1", dst: "10.0.0.2", srcPort: 40000, dstPort: 80, payload: []byte{2}},
		{src: "10.0.0.2", dst: "10.0.0.1", srcPort: 5555, dstPort: 40000, payload: []byte{3}},
	} {
		data := buildFrame(t, p)
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     time.Unix(1_700_000_000, 0),
			CaptureLength: len(data),
			Length:        len(data),
		}, data))
	}
	require.NoError(t, f.Close())

	src, err := OpenFile(path, DefaultFilter)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, layers.LinkTypeEthernet, src.LinkType())

	d, err := NewDecoder(src.LinkType())
	require.NoError(t, err)

	var payloads []byte
	for {
		data, ci, err := src.ReadPacketData()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		seg, ok, err := d.Segment(data, ci)
		require.NoError(t, err)
		require.True(t, ok)
		payloads = append(payloads, seg.Payload...)
	}
	assert.Equal(t, []byte{1, 3}, payloads)
}

func TestOpenLiveValidation(t *testing.T) {
	_, err := OpenLive(Config{})
	assert.Error(t, err)

	_, err = OpenLive(Config{Engine: "netmap", Interface: "eth0"})
	assert.ErrorIs(t, err, ErrUnsupportedEngine)
}
