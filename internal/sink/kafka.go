package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"firestige.xyz/dofuswire/internal/core"
)

const (
	KafkaType = "kafka"

	EncodingJSON     = "json"
	EncodingProtobuf = "protobuf"

	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// KafkaConfig represents Kafka sink configuration.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`       // required
	Topic        string        `mapstructure:"topic"`         // required
	BatchSize    int           `mapstructure:"batch_size"`    // optional, default 100
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // optional, default 100ms
	Compression  string        `mapstructure:"compression"`   // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           `mapstructure:"max_attempts"`  // optional, default 3
	Encoding     string        `mapstructure:"encoding"`      // optional: json|protobuf, default json; protobuf sends integers beyond 2^53 as strings
	IncludeRaw   bool          `mapstructure:"include_raw"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each message keyed by its stream, so the messages of
// a connection direction stay on one partition.
type KafkaSink struct {
	writer messageWriter
	config KafkaConfig

	// Statistics
	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

func newKafkaSink(options map[string]any) (Sink, error) {
	cfg := KafkaConfig{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
		Encoding:     EncodingJSON,
	}
	if err := decodeOptions(options, &cfg); err != nil {
		return nil, err
	}
	return NewKafkaSink(cfg)
}

// NewKafkaSink validates cfg and creates the writer. No connection is made
// until the first write.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.Encoding != EncodingJSON && cfg.Encoding != EncodingProtobuf {
		return nil, fmt.Errorf("invalid encoding %q, must be json or protobuf", cfg.Encoding)
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
	}
	switch cfg.Compression {
	case "none", "":
	case "gzip":
		w.Compression = kafka.Gzip
	case "snappy":
		w.Compression = kafka.Snappy
	case "lz4":
		w.Compression = kafka.Lz4
	case "zstd":
		w.Compression = kafka.Zstd
	default:
		return nil, fmt.Errorf("invalid compression type: %s", cfg.Compression)
	}

	slog.Info("kafka sink created",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"encoding", cfg.Encoding,
		"compression", cfg.Compression,
	)
	return &KafkaSink{writer: w, config: cfg}, nil
}

func (s *KafkaSink) Name() string { return KafkaType }

func (s *KafkaSink) Write(ctx context.Context, msgs []core.DecodedMessage) error {
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km, err := s.message(m)
		if err != nil {
			s.errorCount.Add(1)
			return err
		}
		out = append(out, km)
	}

	if err := s.writer.WriteMessages(ctx, out...); err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}
	s.reportedCount.Add(uint64(len(out)))
	return nil
}

func (s *KafkaSink) message(m core.DecodedMessage) (kafka.Message, error) {
	value, err := encodeValue(m, s.config.Encoding, s.config.IncludeRaw)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(m.Stream),
		Value: value,
		Time:  m.Time,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(strconv.Itoa(int(m.ID)))},
			{Key: "message_name", Value: []byte(m.Name)},
			{Key: "source", Value: []byte(m.Source.String())},
		},
	}, nil
}

// encodeValue renders m as JSON, or as a protobuf Struct carrying the same
// fields. Struct numbers are doubles, so integers beyond 2^53 (VarLong
// values) are carried as decimal strings.
func encodeValue(m core.DecodedMessage, encoding string, includeRaw bool) ([]byte, error) {
	data, err := marshalRecord(m, includeRaw)
	if err != nil || encoding == EncodingJSON {
		return data, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("convert message %d to struct: %w", m.ID, err)
	}
	st, err := structpb.NewStruct(exactNumbers(fields).(map[string]any))
	if err != nil {
		return nil, fmt.Errorf("convert message %d to struct: %w", m.ID, err)
	}
	return proto.Marshal(st)
}

const maxExactDouble = 1 << 53

// exactNumbers replaces json.Number values with float64, or with their
// decimal string when a double cannot hold them exactly.
func exactNumbers(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = exactNumbers(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = exactNumbers(e)
		}
		return v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			if i > maxExactDouble || i < -maxExactDouble {
				return v.String()
			}
			return float64(i)
		}
		if _, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return v.String()
		}
		f, _ := v.Float64()
		return f
	}
	return v
}

func (s *KafkaSink) Close() error {
	err := s.writer.Close()
	slog.Info("kafka sink closed",
		"total_reported", s.reportedCount.Load(),
		"total_errors", s.errorCount.Load(),
	)
	if err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
