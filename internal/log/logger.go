// Package log implements structured logging using slog.
package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/dofuswire/internal/config"
)

// Init initializes the global logger based on configuration. The returned
// closer releases file outputs.
func Init(cfg config.LogConfig) (io.Closer, error) {
	logger, closer, err := New(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

// New builds a logger from cfg without installing it. extra writers receive
// the same output as the configured ones.
func New(cfg config.LogConfig, extra ...io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	var (
		writers []io.Writer
		closers closerList
	)
	switch cfg.Outputs.Console {
	case "", "stderr":
		writers = append(writers, os.Stderr)
	case "stdout":
		writers = append(writers, os.Stdout)
	case "none":
	default:
		return nil, nil, fmt.Errorf("unsupported console output: %s", cfg.Outputs.Console)
	}

	if cfg.Outputs.File.Enabled {
		w, err := createFileWriter(cfg.Outputs.File)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create file output: %w", err)
		}
		writers = append(writers, w)
		closers = append(closers, w)
	}
	writers = append(writers, extra...)

	multiWriter := io.MultiWriter(writers...)

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(multiWriter, opts)
	case "text", "":
		handler = slog.NewTextHandler(multiWriter, opts)
	case "pattern":
		l := logrus.New()
		l.SetOutput(multiWriter)
		l.SetLevel(toLogrusLevel(level))
		l.SetFormatter(newFormatter(cfg.Pattern, cfg.TimeLayout))
		handler = newLogrusHandler(l)
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s (must be json, text or pattern)", cfg.Format)
	}

	return slog.New(handler), closers, nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level: %s", levelStr)
	}
}

// createFileWriter creates a lumberjack file writer for log rotation.
func createFileWriter(fc config.FileOutputConfig) (*lumberjack.Logger, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.Rotation.MaxSizeMB,
		MaxBackups: fc.Rotation.MaxBackups,
		MaxAge:     fc.Rotation.MaxAgeDays,
		Compress:   fc.Rotation.Compress,
	}, nil
}

type closerList []io.Closer

func (c closerList) Close() error {
	var errs []error
	for _, cl := range c {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}
