// Package reassembly frames protocol messages out of chunked TCP payloads.
package reassembly

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"firestige.xyz/dofuswire/internal/bytearray"
	"firestige.xyz/dofuswire/internal/codec"
	"firestige.xyz/dofuswire/internal/core"
	"firestige.xyz/dofuswire/internal/metrics"
	"firestige.xyz/dofuswire/internal/queue"
	"firestige.xyz/dofuswire/internal/registry"
)

const (
	DefaultServerPort uint16 = 5555
	DefaultTLSPort    uint16 = 443

	// UnknownName is used when a registered message carries no name.
	UnknownName = "Unknown"

	headerSize     = 2
	lengthTypeMask = 0b11
	idShift        = 2

	timestampLayout = "15:04:05"
)

// Config tunes an Engine. Zero values select the defaults.
type Config struct {
	ServerPort uint16
	TLSPort    uint16

	// DropPartialHeaders discards a header cut off at the end of a chunk
	// instead of carrying it into the next chunk of the same stream.
	DropPartialHeaders bool

	// SlipWarnLimit caps frame slip warnings per stream per SlipWarnWindow.
	// Zero logs every slip.
	SlipWarnLimit  int
	SlipWarnWindow time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used to stamp messages.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine turns chunks into DecodedMessages on its queue. It keeps no framing
// state of its own; every call names the Stream it advances. An Engine and
// its queue belong to one goroutine.
type Engine struct {
	registry registry.Registry
	queue    *queue.Queue
	clock    func() time.Time
	logger   *slog.Logger

	serverPort  uint16
	tlsPort     uint16
	dropPartial bool
	slips       *warnLimiter

	fallback *Stream
}

// New builds an engine that resolves ids through reg and appends to q.
func New(reg registry.Registry, q *queue.Queue, cfg Config, opts ...Option) *Engine {
	if cfg.ServerPort == 0 {
		cfg.ServerPort = DefaultServerPort
	}
	if cfg.TLSPort == 0 {
		cfg.TLSPort = DefaultTLSPort
	}
	e := &Engine{
		registry:    reg,
		queue:       q,
		clock:       time.Now,
		logger:      slog.Default(),
		serverPort:  cfg.ServerPort,
		tlsPort:     cfg.TLSPort,
		dropPartial: cfg.DropPartialHeaders,
		slips:       newWarnLimiter(cfg.SlipWarnLimit, cfg.SlipWarnWindow),
		fallback:    NewStream("default"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "reassembly")
	return e
}

// Queue returns the queue messages are appended to.
func (e *Engine) Queue() *queue.Queue { return e.queue }

// SubmitChunk feeds a chunk of the engine's single built-in stream. Callers
// observing several connections must use Submit with one Stream each.
func (e *Engine) SubmitChunk(chunk []byte, sourcePort uint16) error {
	return e.Submit(e.fallback, chunk, sourcePort)
}

type header struct {
	id     uint16
	length int
}

// Submit frames as many messages as chunk completes for s. Decoded messages
// are appended to the queue in wire order. The returned error joins every
// message that failed to decode; s stays usable whatever is returned.
//
// An id missing from the registry ends processing of the chunk: without a
// registered decoder the frame boundary that follows cannot be trusted.
func (e *Engine) Submit(s *Stream, chunk []byte, sourcePort uint16) error {
	data := chunk
	if len(s.carry) > 0 {
		data = append(s.carry, chunk...)
		s.carry = nil
	}
	b := bytearray.From(data)

	var errs []error
	for b.BytesAvailable() > 0 {
		if s.awaiting {
			need := s.targetLength - s.pending.Len()
			if b.BytesAvailable() < need {
				_ = b.ReadBytes(s.pending, s.pending.Len(), b.BytesAvailable())
				e.logger.Debug("split message still incomplete",
					"stream", s.name, "id", s.targetID, "have", s.pending.Len(), "want", s.targetLength)
				break
			}
			_ = b.ReadBytes(s.pending, s.pending.Len(), need)
			_ = s.pending.SetPosition(0)

			body, id, length, port := s.pending, s.targetID, s.targetLength, s.targetPort
			s.reset()
			entry, _ := e.registry.Lookup(id)
			if err := e.dispatch(s, body, header{id: id, length: length}, entry, port); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		start := b.Position()
		if e.dropPartial && b.BytesAvailable() < headerSize {
			e.logger.Debug("chunk tail too short for a header", "stream", s.name, "bytes", b.BytesAvailable())
			break
		}
		h, err := e.readHeader(b, sourcePort)
		if err != nil {
			if e.dropPartial {
				metrics.DecodeErrorsTotal.WithLabelValues(metrics.StageHeader).Inc()
				errs = append(errs, fmt.Errorf("stream %s: header: %w", s.name, err))
				break
			}
			s.carry = append([]byte(nil), data[start:]...)
			e.logger.Debug("partial header carried to next chunk", "stream", s.name, "bytes", len(s.carry))
			break
		}

		entry, ok := e.registry.Lookup(h.id)
		if !ok {
			metrics.UnknownMessagesTotal.Inc()
			e.logger.Debug("unknown message id, dropping rest of chunk",
				"stream", s.name, "id", h.id, "dropped", b.BytesAvailable())
			break
		}

		if h.length > b.BytesAvailable() {
			s.await(h.id, h.length, sourcePort)
			_ = b.ReadBytes(s.pending, 0, b.BytesAvailable())
			metrics.SplitMessagesTotal.Inc()
			e.logger.Debug("message split across chunks",
				"stream", s.name, "id", h.id, "have", s.pending.Len(), "want", h.length)
			break
		}

		if err := e.dispatch(s, b, h, entry, sourcePort); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// readHeader reads the message header at the cursor. On failure the cursor
// may have moved; the caller rewinds through its saved start.
func (e *Engine) readHeader(b *bytearray.ByteBuffer, port uint16) (header, error) {
	hi, err := b.ReadUint16()
	if err != nil {
		return header{}, err
	}
	h := header{id: hi >> idShift}

	if port != e.serverPort {
		// instance id, only sent on these connections
		if _, err := b.ReadUint32(); err != nil {
			return header{}, err
		}
	}

	switch hi & lengthTypeMask {
	case 0:
	case 1:
		n, err := b.ReadUint8()
		if err != nil {
			return header{}, err
		}
		h.length = int(n)
	case 2:
		n, err := b.ReadUint16()
		if err != nil {
			return header{}, err
		}
		h.length = int(n)
	case 3:
		if b.BytesAvailable() < 3 {
			return header{}, fmt.Errorf("%w: 24-bit length", bytearray.ErrOutOfRange)
		}
		b0, _ := b.ReadUint8()
		b1, _ := b.ReadUint8()
		b2, _ := b.ReadUint8()
		h.length = int(b0)<<16 | int(b1)<<8 | int(b2)
	}
	return h, nil
}

// dispatch decodes one complete body starting at b's cursor and leaves the
// cursor exactly h.length bytes further, whatever the decoder consumed.
func (e *Engine) dispatch(s *Stream, b *bytearray.ByteBuffer, h header, entry registry.Entry, port uint16) error {
	before := b.Position()
	end := before + h.length
	raw := append([]byte(nil), b.Bytes()[before:end]...)

	var (
		body any
		err  error
	)
	consumed := h.length
	if entry.Decode != nil {
		body, err = entry.Decode(codec.New(b))
		consumed = b.Position() - before
	}
	_ = b.SetPosition(end)

	name := entry.Name
	if name == "" {
		name = UnknownName
	}

	if err != nil {
		metrics.DecodeErrorsTotal.WithLabelValues(metrics.StageBody).Inc()
		e.logger.Warn("message body decode failed",
			"stream", s.name, "id", h.id, "name", name, "length", h.length, "error", err)
		return fmt.Errorf("stream %s: message %d (%s): %w", s.name, h.id, name, err)
	}

	now := e.clock()
	if consumed != h.length {
		metrics.FrameSlipsTotal.Inc()
		if e.slips.Allow(s.name, now) {
			e.logger.Warn("frame length mismatch, cursor realigned",
				"stream", s.name, "id", h.id, "name", name, "declared", h.length, "consumed", consumed,
				"suppressed", e.slips.Suppressed())
		}
	}

	src := core.SourceClient
	if port == e.serverPort || port == e.tlsPort {
		src = core.SourceServer
	}
	metrics.MessagesDecodedTotal.WithLabelValues(src.String()).Inc()

	e.queue.Enqueue(core.DecodedMessage{
		Source:    src,
		Timestamp: now.Format(timestampLayout),
		Time:      now,
		ID:        h.id,
		Name:      name,
		Raw:       raw,
		Body:      body,
		Stream:    s.name,
	})
	return nil
}
