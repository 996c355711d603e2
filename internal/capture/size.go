package capture

import "fmt"

const (
	tpacketAlignment = 16
	tpacketHdrLen    = 52
	maxBlockSize     = 4 << 20
)

// recomputeSize derives an AF_PACKET ring layout for a memory budget of
// bufferMB megabytes. Frames are aligned to TPACKET_ALIGNMENT and hold
// snapLen bytes plus the header. A block is a multiple of both the page size
// and the frame size; when that would exceed 4 MiB the frame is padded to
// whole pages instead.
func recomputeSize(bufferMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if bufferMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer size must be positive, got %d MB", bufferMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		frameSize = alignUp(frameSize, pageSize)
		blockSize = frameSize
	}

	numBlocks = max((bufferMB<<20)/blockSize, 1)
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
