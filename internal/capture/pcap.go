package capture

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

type pcapSource struct {
	handle *pcap.Handle
}

func openPcapLive(cfg Config) (Source, error) {
	inactive, err := pcap.NewInactiveHandle(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("pcap open %s: %w", cfg.Interface, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(cfg.SnapLen); err != nil {
		return nil, fmt.Errorf("pcap snaplen: %w", err)
	}
	if err := inactive.SetPromisc(cfg.Promiscuous); err != nil {
		return nil, fmt.Errorf("pcap promisc: %w", err)
	}
	if err := inactive.SetTimeout(cfg.Timeout); err != nil {
		return nil, fmt.Errorf("pcap timeout: %w", err)
	}
	if err := inactive.SetBufferSize(cfg.BufferSizeMB * 1024 * 1024); err != nil {
		return nil, fmt.Errorf("pcap buffer size: %w", err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("pcap activate %s: %w", cfg.Interface, err)
	}
	if err := applyFilter(handle, cfg.BPFFilter); err != nil {
		handle.Close()
		return nil, err
	}
	return &pcapSource{handle: handle}, nil
}

// OpenFile replays a pcap or pcapng file, optionally narrowed by a BPF filter.
// ReadPacketData returns io.EOF once the file is exhausted.
func OpenFile(path, filter string) (Source, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}
	if err := applyFilter(handle, filter); err != nil {
		handle.Close()
		return nil, err
	}
	return &pcapSource{handle: handle}, nil
}

func applyFilter(handle *pcap.Handle, filter string) error {
	if filter == "" {
		return nil
	}
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("bpf filter %q: %w", filter, err)
	}
	return nil
}

func (s *pcapSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ReadPacketData()
	if errors.Is(err, pcap.NextErrorTimeoutExpired) {
		return nil, ci, ErrTimeout
	}
	return data, ci, err
}

func (s *pcapSource) LinkType() layers.LinkType {
	return s.handle.LinkType()
}

func (s *pcapSource) Close() {
	s.handle.Close()
}
