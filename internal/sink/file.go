package sink

import (
	"context"
	"errors"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/dofuswire/internal/core"
)

const FileType = "file"

// FileConfig configures a rotated JSON lines file.
type FileConfig struct {
	Path       string `mapstructure:"path"`        // required
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // default 100
	MaxBackups int    `mapstructure:"max_backups"` // default 5
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	IncludeRaw bool   `mapstructure:"include_raw"`
}

// FileSink appends one JSON object per message.
type FileSink struct {
	includeRaw bool

	mu     sync.Mutex
	writer *lumberjack.Logger
}

func newFileSink(options map[string]any) (Sink, error) {
	cfg := FileConfig{MaxSizeMB: 100, MaxBackups: 5}
	if err := decodeOptions(options, &cfg); err != nil {
		return nil, err
	}
	return NewFileSink(cfg)
}

func NewFileSink(cfg FileConfig) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, errors.New("path is required")
	}
	return &FileSink{
		includeRaw: cfg.IncludeRaw,
		writer: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
	}, nil
}

func (s *FileSink) Name() string { return FileType }

func (s *FileSink) Write(_ context.Context, msgs []core.DecodedMessage) error {
	var buf []byte
	for _, m := range msgs {
		data, err := marshalRecord(m, s.includeRaw)
		if err != nil {
			return err
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.writer.Write(buf)
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}
