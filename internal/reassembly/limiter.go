package reassembly

import "time"

// warnLimiter caps how many frame slip warnings one stream may log per
// window. A nil limiter allows everything.
type warnLimiter struct {
	current      map[string]int
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int

	suppressed int64
}

// newWarnLimiter returns nil if limiting is disabled (maxPerWindow <= 0).
func newWarnLimiter(maxPerWindow int, window time.Duration) *warnLimiter {
	if maxPerWindow <= 0 {
		return nil
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &warnLimiter{
		current:      make(map[string]int),
		windowSize:   window,
		maxPerWindow: maxPerWindow,
	}
}

// Allow reports whether another warning for key may be logged at now.
func (l *warnLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	if now.Sub(l.windowStart) >= l.windowSize {
		clear(l.current)
		l.windowStart = now
	}
	l.current[key]++
	if l.current[key] > l.maxPerWindow {
		l.suppressed++
		return false
	}
	return true
}

// Suppressed returns the number of warnings withheld so far.
func (l *warnLimiter) Suppressed() int64 {
	if l == nil {
		return 0
	}
	return l.suppressed
}
