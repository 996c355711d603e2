package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"firestige.xyz/dofuswire/internal/capture"
	"firestige.xyz/dofuswire/internal/config"
	"firestige.xyz/dofuswire/internal/metrics"
	"firestige.xyz/dofuswire/internal/pipeline"
	"firestige.xyz/dofuswire/internal/reassembly"
	"firestige.xyz/dofuswire/internal/registry"
	"firestige.xyz/dofuswire/internal/sink"
)

var errNoRegistry = errors.New("no protocol description: set --registry or dofuswire.registry.path")

func loadRegistry(cfg *config.GlobalConfig) (*registry.Schema, error) {
	if cfg.Registry.Path == "" {
		return nil, errNoRegistry
	}
	return registry.Load(cfg.Registry.Path)
}

func engineConfig(dc config.DecoderConfig) reassembly.Config {
	return reassembly.Config{
		ServerPort:         dc.ServerPort,
		TLSPort:            dc.TLSPort,
		DropPartialHeaders: dc.DropPartialHeaders,
		SlipWarnLimit:      dc.SlipWarn.Limit,
		SlipWarnWindow:     dc.SlipWarn.Window,
	}
}

func sinkEntries(cfgs []config.SinkConfig) []sink.Entry {
	entries := make([]sink.Entry, 0, len(cfgs))
	for _, c := range cfgs {
		entries = append(entries, sink.Entry{Type: c.Type, Options: c.Options})
	}
	return entries
}

// runSource drives src through a pipeline until the source ends or the
// process receives SIGINT or SIGTERM.
func runSource(cfg *config.GlobalConfig, src capture.Source, name string) error {
	defer src.Close()

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	sinks, err := sink.Open(sinkEntries(cfg.Sinks))
	if err != nil {
		return fmt.Errorf("open sinks: %w", err)
	}
	defer func() {
		if err := sink.CloseAll(sinks); err != nil {
			slog.Error("closing sinks failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
	}

	b := pipeline.NewBuilder(reg).
		WithSource(name).
		WithWorkers(cfg.Decoder.Workers).
		WithBuffering(cfg.Decoder.QueueSize, cfg.Decoder.BatchSize).
		WithTimers(cfg.Decoder.FlushInterval, cfg.Decoder.IdleTimeout).
		WithEngine(engineConfig(cfg.Decoder))
	for _, s := range sinks {
		b.WithSinks(s)
	}
	if cfg.Decoder.Reorder.Enabled {
		b.WithReorder(cfg.Decoder.Reorder.Window, cfg.Decoder.Reorder.MaxBufferedPages)
	}
	p := b.Build()

	slog.Info("decoding started", "source", name, "workers", cfg.Decoder.Workers, "sinks", len(sinks))
	err = p.Run(ctx, src)

	st := p.Stats()
	slog.Info("decoding finished",
		"source", name,
		"packets", st.Packets,
		"segments", st.Segments,
		"malformed", st.Malformed,
		"gaps", st.Gaps,
		"chunk_errors", st.ChunkErrs,
		"flushed", st.Flushed,
		"sink_errors", st.SinkErrors)
	return err
}
