package capture

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// compileBPF turns a tcpdump expression into raw classic BPF instructions.
func compileBPF(linkType layers.LinkType, snapLen int, filter string) ([]bpf.RawInstruction, error) {
	insns, err := pcap.CompileBPFFilter(linkType, snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("compile bpf %q: %w", filter, err)
	}
	raw := make([]bpf.RawInstruction, len(insns))
	for i, inst := range insns {
		raw[i] = bpf.RawInstruction{
			Op: inst.Code,
			Jt: inst.Jt,
			Jf: inst.Jf,
			K:  inst.K,
		}
	}
	return raw, nil
}
