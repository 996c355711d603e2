// Package core defines core types with zero external dependencies.
package core

import (
	"net/netip"
)

// Source tells which side of the connection emitted a message.
type Source uint8

const (
	SourceClient Source = iota
	SourceServer
)

func (s Source) String() string {
	if s == SourceServer {
		return "Server"
	}
	return "Client"
}

// MarshalText renders the source as "Client" or "Server".
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StreamKey identifies one direction of a TCP connection.
type StreamKey struct {
	Src netip.AddrPort
	Dst netip.AddrPort
}

func (k StreamKey) String() string {
	return k.Src.String() + "->" + k.Dst.String()
}

// Reverse returns the key of the opposite direction.
func (k StreamKey) Reverse() StreamKey {
	return StreamKey{Src: k.Dst, Dst: k.Src}
}
