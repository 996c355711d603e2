// Package capture reads TCP segments off a network interface or out of a capture file.
package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	EnginePcap     = "pcap"
	EngineAFPacket = "afpacket"

	// DefaultFilter selects the game traffic on its well-known port.
	DefaultFilter = "tcp port 5555"

	defaultSnapLen = 65536
	defaultTimeout = 500 * time.Millisecond
)

var (
	// ErrTimeout is returned by ReadPacketData when no packet arrived within
	// the read timeout. Callers simply read again.
	ErrTimeout = errors.New("capture: read timeout")

	ErrUnsupportedEngine = errors.New("capture: unsupported engine")
)

// Source yields raw link-layer frames.
type Source interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Close()
}

// Config selects and tunes a live capture.
type Config struct {
	Engine       string
	Interface    string
	SnapLen      int
	Promiscuous  bool
	BPFFilter    string
	Timeout      time.Duration
	BufferSizeMB int
	FanoutID     uint16
}

func (c *Config) applyDefaults() {
	if c.Engine == "" {
		c.Engine = EnginePcap
	}
	if c.SnapLen <= 0 {
		c.SnapLen = defaultSnapLen
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.BufferSizeMB <= 0 {
		c.BufferSizeMB = 8
	}
}

// OpenLive opens the interface named in cfg with the configured engine.
func OpenLive(cfg Config) (Source, error) {
	cfg.applyDefaults()
	if cfg.Interface == "" {
		return nil, fmt.Errorf("capture: interface is required")
	}
	switch cfg.Engine {
	case EnginePcap:
		return openPcapLive(cfg)
	case EngineAFPacket:
		return openAFPacket(cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedEngine, cfg.Engine)
}
