package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters. Prometheus collectors in
// internal/metrics aggregate across pipelines; these back Stats.
type Metrics struct {
	Packets    atomic.Uint64
	Segments   atomic.Uint64
	Malformed  atomic.Uint64
	Gaps       atomic.Uint64
	ChunkErrs  atomic.Uint64
	Flushed    atomic.Uint64
	SinkErrors atomic.Uint64
}

// Stats is a snapshot of Metrics.
type Stats struct {
	Packets    uint64
	Segments   uint64
	Malformed  uint64
	Gaps       uint64
	ChunkErrs  uint64
	Flushed    uint64
	SinkErrors uint64
}

func (m *Metrics) snapshot() Stats {
	return Stats{
		Packets:    m.Packets.Load(),
		Segments:   m.Segments.Load(),
		Malformed:  m.Malformed.Load(),
		Gaps:       m.Gaps.Load(),
		ChunkErrs:  m.ChunkErrs.Load(),
		Flushed:    m.Flushed.Load(),
		SinkErrors: m.SinkErrors.Load(),
	}
}
