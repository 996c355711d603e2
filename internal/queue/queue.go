// Package queue holds decoded messages between the reassembly engine and its consumer.
package queue

import "firestige.xyz/dofuswire/internal/core"

// Queue is an ordered buffer of decoded messages with two ways out: DrainAll
// empties it oldest first, PopLatest takes only the newest. A Queue is owned
// by a single goroutine.
type Queue struct {
	items []core.DecodedMessage
	hint  int
}

// New returns a queue with room for capacity messages before it grows.
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{items: make([]core.DecodedMessage, 0, capacity), hint: capacity}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int { return len(q.items) }

// Enqueue appends msg at the back.
func (q *Queue) Enqueue(msg core.DecodedMessage) {
	q.items = append(q.items, msg)
}

// DrainAll removes and returns every message, oldest first.
func (q *Queue) DrainAll() []core.DecodedMessage {
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = make([]core.DecodedMessage, 0, max(q.hint, len(out)/2))
	return out
}

// PopLatest removes and returns the most recently enqueued message.
func (q *Queue) PopLatest() (core.DecodedMessage, bool) {
	n := len(q.items)
	if n == 0 {
		return core.DecodedMessage{}, false
	}
	msg := q.items[n-1]
	q.items[n-1] = core.DecodedMessage{}
	q.items = q.items[:n-1]
	return msg, true
}
