//go:build !linux

package capture

import "fmt"

func openAFPacket(cfg Config) (Source, error) {
	return nil, fmt.Errorf("%w: afpacket needs linux", ErrUnsupportedEngine)
}
