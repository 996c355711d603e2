//go:build linux

package capture

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
)

type afpacketSource struct {
	handle *afpacket.TPacket
}

func openAFPacket(cfg Config) (Source, error) {
	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, err
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(cfg.Timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("afpacket open %s: %w", cfg.Interface, err)
	}

	if cfg.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, cfg.FanoutID); err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket fanout: %w", err)
		}
	}

	if cfg.BPFFilter != "" {
		raw, err := compileBPF(layers.LinkTypeEthernet, frameSize, cfg.BPFFilter)
		if err != nil {
			tp.Close()
			return nil, err
		}
		if err := tp.SetBPF(raw); err != nil {
			tp.Close()
			return nil, fmt.Errorf("afpacket attach bpf: %w", err)
		}
	}
	return &afpacketSource{handle: tp}, nil
}

func (s *afpacketSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ReadPacketData()
	if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
		return nil, ci, ErrTimeout
	}
	return data, ci, err
}

func (s *afpacketSource) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

func (s *afpacketSource) Close() {
	s.handle.Close()
}
