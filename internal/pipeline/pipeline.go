// Package pipeline moves captured segments through per-stream reassembly
// and out to sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/serialx/hashring"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/dofuswire/internal/capture"
	"firestige.xyz/dofuswire/internal/core"
	"firestige.xyz/dofuswire/internal/metrics"
	"firestige.xyz/dofuswire/internal/reassembly"
	"firestige.xyz/dofuswire/internal/registry"
)

const (
	defaultBufferSize    = 1024
	defaultBatchSize     = 512
	defaultFlushInterval = time.Second
	defaultReorderWindow = 2 * time.Second
	shutdownFlushTimeout = 5 * time.Second
)

// Sink receives batches of decoded messages. Workers call Write concurrently.
type Sink interface {
	Name() string
	Write(ctx context.Context, msgs []core.DecodedMessage) error
}

// Config contains pipeline configuration.
type Config struct {
	// Source labels capture metrics, e.g. the interface or file name.
	Source string

	Workers    int
	BufferSize int // segment channel buffer per worker
	BatchSize  int // queued messages that trigger an early flush

	FlushInterval time.Duration
	IdleTimeout   time.Duration

	// Reorder restores TCP sequence order before framing. Segments of a
	// connection picked up mid-stream are held for up to ReorderWindow.
	Reorder          bool
	ReorderWindow    time.Duration
	MaxBufferedPages int

	Engine reassembly.Config
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithClock replaces the clock used to stamp decoded messages.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// Pipeline reads one capture source and fans its segments out to workers.
// Both directions of a connection land on the same worker, so messages of a
// connection reach the sinks in wire order.
type Pipeline struct {
	cfg      Config
	registry registry.Registry
	sinks    []Sink
	logger   *slog.Logger
	clock    func() time.Time
	metrics  *Metrics

	ring  *hashring.HashRing
	nodes map[string]int
}

// New creates a pipeline decoding with reg and writing to sinks.
func New(reg registry.Registry, sinks []Sink, cfg Config, opts ...Option) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = reassembly.DefaultIdleTimeout
	}
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = defaultReorderWindow
	}
	if cfg.Source == "" {
		cfg.Source = "live"
	}

	p := &Pipeline{
		cfg:      cfg,
		registry: reg,
		sinks:    sinks,
		logger:   slog.Default(),
		clock:    time.Now,
		metrics:  &Metrics{},
		nodes:    make(map[string]int, cfg.Workers),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline", "source", cfg.Source)

	names := make([]string, cfg.Workers)
	for i := range names {
		names[i] = "worker-" + strconv.Itoa(i)
		p.nodes[names[i]] = i
	}
	p.ring = hashring.New(names)
	return p
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats { return p.metrics.snapshot() }

// Run reads src until it is exhausted or ctx is cancelled, then flushes
// what the workers still hold. It returns nil in both cases and the read
// error otherwise.
func (p *Pipeline) Run(ctx context.Context, src capture.Source) error {
	dec, err := capture.NewDecoder(src.LinkType())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	workers := make([]*worker, p.cfg.Workers)
	for i := range workers {
		workers[i] = p.newWorker(i)
		w := workers[i]
		g.Go(func() error { return w.run(gctx) })
	}

	g.Go(func() error {
		defer func() {
			for _, w := range workers {
				close(w.in)
			}
		}()
		return p.read(gctx, src, dec, workers)
	})

	p.logger.Info("pipeline started", "workers", len(workers), "reorder", p.cfg.Reorder)
	err = g.Wait()
	s := p.Stats()
	p.logger.Info("pipeline stopped",
		"packets", s.Packets, "segments", s.Segments, "flushed", s.Flushed, "sink_errors", s.SinkErrors)
	return err
}

func (p *Pipeline) read(ctx context.Context, src capture.Source, dec *capture.Decoder, workers []*worker) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		data, ci, err := src.ReadPacketData()
		switch {
		case errors.Is(err, capture.ErrTimeout):
			continue
		case errors.Is(err, io.EOF):
			p.logger.Info("capture source exhausted")
			return nil
		case err != nil:
			return fmt.Errorf("%w: %w", core.ErrSourceFailed, err)
		}

		p.metrics.Packets.Add(1)
		metrics.CapturePacketsTotal.WithLabelValues(p.cfg.Source).Inc()

		seg, ok, err := dec.Segment(data, ci)
		if err != nil {
			p.metrics.Malformed.Add(1)
			metrics.CaptureDropsTotal.WithLabelValues("malformed").Inc()
			p.logger.Debug("malformed frame", "length", len(data), "error", err)
			continue
		}
		if !ok {
			metrics.CaptureDropsTotal.WithLabelValues("no_payload").Inc()
			continue
		}
		p.metrics.Segments.Add(1)

		w := workers[p.shard(seg.Key)]
		select {
		case w.in <- seg:
		case <-ctx.Done():
			return nil
		}
	}
}

// shard picks the worker owning the connection of key.
func (p *Pipeline) shard(key core.StreamKey) int {
	if len(p.nodes) == 1 {
		return 0
	}
	node, ok := p.ring.GetNode(connectionKey(key))
	if !ok {
		return 0
	}
	return p.nodes[node]
}

// connectionKey names a connection the same way from either direction.
func connectionKey(key core.StreamKey) string {
	a, b := key.Src.String(), key.Dst.String()
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
