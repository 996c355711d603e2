// Package sink delivers decoded messages to consoles, files and brokers.
package sink

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/dofuswire/internal/core"
)

// Sink receives batches of decoded messages. Implementations are safe for
// concurrent use.
type Sink interface {
	Name() string
	Write(ctx context.Context, msgs []core.DecodedMessage) error
	Close() error
}

// Entry configures one sink.
type Entry struct {
	Type    string         `mapstructure:"type"`
	Options map[string]any `mapstructure:"options"`
}

// Factory builds a sink from its options.
type Factory func(options map[string]any) (Sink, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		ConsoleType: newConsoleSink,
		FileType:    newFileSink,
		KafkaType:   newKafkaSink,
	}
)

// Register makes a sink type available to New. It replaces any factory
// registered under the same name.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Types lists the registered sink types.
func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the sink described by e.
func New(e Entry) (Sink, error) {
	factoriesMu.RLock()
	f, ok := factories[e.Type]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrSinkNotFound, e.Type)
	}

	s, err := f(e.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrSinkInitFailed, e.Type, err)
	}
	return s, nil
}

// Open builds every configured sink. On failure the sinks already opened
// are closed again.
func Open(entries []Entry) ([]Sink, error) {
	sinks := make([]Sink, 0, len(entries))
	for i, e := range entries {
		s, err := New(e)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("sinks[%d]: %w", i, err), CloseAll(sinks))
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// CloseAll closes every sink and joins their errors.
func CloseAll(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// decodeOptions fills cfg from a loosely typed option map, accepting
// duration strings and numbers given as floats.
func decodeOptions(options map[string]any, cfg any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(options)
}

// record is the serialized shape of a message.
type record struct {
	core.DecodedMessage
	Raw string `json:"raw,omitempty"`
}

func newRecord(m core.DecodedMessage, includeRaw bool) record {
	r := record{DecodedMessage: m}
	if includeRaw {
		r.Raw = hex.EncodeToString(m.Raw)
	}
	return r
}

func marshalRecord(m core.DecodedMessage, includeRaw bool) ([]byte, error) {
	data, err := json.Marshal(newRecord(m, includeRaw))
	if err != nil {
		return nil, fmt.Errorf("marshal message %d (%s): %w", m.ID, m.Name, err)
	}
	return data, nil
}
