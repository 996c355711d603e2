package pipeline

import (
	"time"

	"firestige.xyz/dofuswire/internal/reassembly"
	"firestige.xyz/dofuswire/internal/registry"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config   Config
	registry registry.Registry
	sinks    []Sink
	opts     []Option
}

func NewBuilder(reg registry.Registry) *Builder {
	return &Builder{registry: reg}
}

// WithSource sets the label of the capture source.
func (b *Builder) WithSource(name string) *Builder {
	b.config.Source = name
	return b
}

func (b *Builder) WithWorkers(n int) *Builder {
	b.config.Workers = n
	return b
}

// WithBuffering sets the per-worker channel buffer and flush batch size.
func (b *Builder) WithBuffering(bufferSize, batchSize int) *Builder {
	b.config.BufferSize = bufferSize
	b.config.BatchSize = batchSize
	return b
}

// WithTimers sets the flush interval and the stream idle timeout.
func (b *Builder) WithTimers(flush, idle time.Duration) *Builder {
	b.config.FlushInterval = flush
	b.config.IdleTimeout = idle
	return b
}

// WithReorder enables TCP reordering with the given window.
func (b *Builder) WithReorder(window time.Duration, maxPages int) *Builder {
	b.config.Reorder = true
	b.config.ReorderWindow = window
	b.config.MaxBufferedPages = maxPages
	return b
}

func (b *Builder) WithEngine(cfg reassembly.Config) *Builder {
	b.config.Engine = cfg
	return b
}

func (b *Builder) WithSinks(sinks ...Sink) *Builder {
	b.sinks = append(b.sinks, sinks...)
	return b
}

func (b *Builder) WithOptions(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.registry, b.sinks, b.config, b.opts...)
}
