package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"firestige.xyz/dofuswire/internal/capture"
	"firestige.xyz/dofuswire/internal/core"
	"firestige.xyz/dofuswire/internal/metrics"
	"firestige.xyz/dofuswire/internal/queue"
	"firestige.xyz/dofuswire/internal/reassembly"
)

// worker owns the framing state of its connections. Everything but the
// input channel is touched by its goroutine only.
type worker struct {
	id      int
	in      chan capture.Segment
	tracker *reassembly.Tracker
	engine  *reassembly.Engine
	queue   *queue.Queue
	reorder *capture.Reorderer

	sinks   []Sink
	metrics *Metrics
	logger  *slog.Logger

	flushInterval time.Duration
	batchSize     int
	reorderWindow time.Duration

	// latest packet timestamp seen, which drives eviction so that replays
	// age streams by capture time
	latest time.Time
}

func (p *Pipeline) newWorker(id int) *worker {
	name := strconv.Itoa(id)
	logger := p.logger.With("worker", id)
	q := queue.New(p.cfg.BatchSize)

	w := &worker{
		id:            id,
		in:            make(chan capture.Segment, p.cfg.BufferSize),
		tracker:       reassembly.NewTracker(p.cfg.IdleTimeout, name),
		engine:        reassembly.New(p.registry, q, p.cfg.Engine, reassembly.WithLogger(logger), reassembly.WithClock(p.clock)),
		queue:         q,
		sinks:         p.sinks,
		metrics:       p.metrics,
		logger:        logger,
		flushInterval: p.cfg.FlushInterval,
		batchSize:     p.cfg.BatchSize,
		reorderWindow: p.cfg.ReorderWindow,
	}
	if p.cfg.Reorder {
		w.reorder = capture.NewReorderer(w, p.cfg.MaxBufferedPages)
	}
	return w
}

func (w *worker) run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case seg, ok := <-w.in:
			if !ok {
				w.shutdown(ctx)
				return nil
			}
			w.handle(seg)
			if w.queue.Len() >= w.batchSize {
				w.flush(ctx)
			}

		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *worker) handle(seg capture.Segment) {
	if seg.Timestamp.After(w.latest) {
		w.latest = seg.Timestamp
	}

	if w.reorder != nil {
		w.reorder.Assemble(seg)
		return
	}

	if seg.SYN {
		// a new connection on a reused tuple starts framing afresh
		w.tracker.Remove(seg.Key)
	}
	if len(seg.Payload) > 0 {
		w.Payload(seg.Key, seg.Payload, seg.Timestamp)
	}
	if seg.FIN || seg.RST {
		w.Closed(seg.Key)
	}
}

// Payload feeds one in-order chunk of a stream to the engine.
func (w *worker) Payload(key core.StreamKey, payload []byte, seen time.Time) {
	s := w.tracker.Stream(key, seen)
	if err := w.engine.Submit(s, payload, key.Src.Port()); err != nil {
		w.metrics.ChunkErrs.Add(1)
		w.logger.Debug("chunk decoded with errors", "stream", s.Name(), "error", err)
	}
}

// Gap discards the framing state of a stream that lost bytes.
func (w *worker) Gap(key core.StreamKey, skipped int) {
	w.metrics.Gaps.Add(1)
	metrics.CaptureDropsTotal.WithLabelValues("gap").Inc()
	if w.tracker.Remove(key) {
		w.logger.Debug("stream lost bytes, framing reset", "stream", key.String(), "skipped", skipped)
	}
}

func (w *worker) Closed(key core.StreamKey) {
	w.tracker.Remove(key)
}

func (w *worker) tick(ctx context.Context) {
	if w.reorder != nil && !w.latest.IsZero() {
		w.reorder.FlushOlderThan(w.latest.Add(-w.reorderWindow))
	}
	w.flush(ctx)
	if !w.latest.IsZero() {
		if n := w.tracker.Evict(w.latest); n > 0 {
			w.logger.Debug("evicted idle streams", "count", n, "active", w.tracker.Len())
		}
	}
}

func (w *worker) shutdown(ctx context.Context) {
	if w.reorder != nil {
		w.reorder.FlushAll()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	w.flush(ctx)
}

// flush writes the queued messages to every sink. Once ctx is cancelled the
// worker is draining its input, and writes get a detached context bounded by
// the shutdown timeout.
func (w *worker) flush(ctx context.Context) {
	msgs := w.queue.DrainAll()
	if len(msgs) == 0 {
		return
	}
	w.metrics.Flushed.Add(uint64(len(msgs)))

	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
		defer cancel()
	}

	for _, s := range w.sinks {
		metrics.SinkBatchSize.WithLabelValues(s.Name()).Observe(float64(len(msgs)))
		if err := s.Write(ctx, msgs); err != nil {
			w.metrics.SinkErrors.Add(1)
			metrics.SinkErrorsTotal.WithLabelValues(s.Name()).Inc()
			w.logger.Error("sink write failed", "sink", s.Name(), "messages", len(msgs), "error", err)
		}
	}
}
