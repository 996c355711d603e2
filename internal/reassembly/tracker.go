package reassembly

import (
	"time"

	"firestige.xyz/dofuswire/internal/core"
	"firestige.xyz/dofuswire/internal/metrics"
)

// DefaultIdleTimeout bounds how long a silent stream keeps its buffers.
const DefaultIdleTimeout = 2 * time.Minute

// Tracker owns the Streams of one worker, keyed by connection direction.
type Tracker struct {
	streams     map[core.StreamKey]*Stream
	idleTimeout time.Duration
	worker      string
}

// NewTracker returns a tracker evicting streams idle longer than idleTimeout.
// worker labels the tracker's metrics.
func NewTracker(idleTimeout time.Duration, worker string) *Tracker {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Tracker{
		streams:     make(map[core.StreamKey]*Stream),
		idleTimeout: idleTimeout,
		worker:      worker,
	}
}

// Stream returns the stream for key, creating it on first sight, and marks
// it seen at now.
func (t *Tracker) Stream(key core.StreamKey, now time.Time) *Stream {
	s, ok := t.streams[key]
	if !ok {
		s = NewStream(key.String())
		t.streams[key] = s
		metrics.StreamsActive.WithLabelValues(t.worker).Set(float64(len(t.streams)))
	}
	s.lastSeen = now
	return s
}

// Remove forgets key, discarding anything it buffered.
func (t *Tracker) Remove(key core.StreamKey) bool {
	if _, ok := t.streams[key]; !ok {
		return false
	}
	delete(t.streams, key)
	metrics.StreamsActive.WithLabelValues(t.worker).Set(float64(len(t.streams)))
	return true
}

// Evict drops every stream not seen for longer than the idle timeout and
// returns how many were dropped.
func (t *Tracker) Evict(now time.Time) int {
	n := 0
	for key, s := range t.streams {
		if now.Sub(s.lastSeen) <= t.idleTimeout {
			continue
		}
		state := "idle"
		if s.awaiting || len(s.carry) > 0 {
			state = "awaiting"
		}
		metrics.StreamsEvictedTotal.WithLabelValues(state).Inc()
		delete(t.streams, key)
		n++
	}
	if n > 0 {
		metrics.StreamsActive.WithLabelValues(t.worker).Set(float64(len(t.streams)))
	}
	return n
}

func (t *Tracker) Len() int { return len(t.streams) }
