package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"firestige.xyz/dofuswire/internal/core"
)

const (
	ConsoleType = "console"

	FormatText = "text"
	FormatJSON = "json"

	colorReset  = "\033[0m"
	colorServer = "\033[36m"
	colorClient = "\033[33m"
)

// ConsoleConfig represents console sink configuration.
type ConsoleConfig struct {
	Format     string `mapstructure:"format"`      // text or json, default text
	Color      string `mapstructure:"color"`       // auto, always or never, default auto
	Target     string `mapstructure:"target"`      // stdout or stderr, default stdout
	IncludeRaw bool   `mapstructure:"include_raw"` // hex body in json output
}

// ConsoleSink prints messages one per line.
type ConsoleSink struct {
	format     string
	color      bool
	includeRaw bool

	mu  sync.Mutex
	out io.Writer
}

func newConsoleSink(options map[string]any) (Sink, error) {
	cfg := ConsoleConfig{Format: FormatText, Color: "auto", Target: "stdout"}
	if err := decodeOptions(options, &cfg); err != nil {
		return nil, err
	}

	var f *os.File
	switch cfg.Target {
	case "stdout":
		f = os.Stdout
	case "stderr":
		f = os.Stderr
	default:
		return nil, fmt.Errorf("invalid target %q, must be stdout or stderr", cfg.Target)
	}

	var color bool
	switch cfg.Color {
	case "auto":
		color = term.IsTerminal(int(f.Fd()))
	case "always":
		color = true
	case "never":
	default:
		return nil, fmt.Errorf("invalid color %q, must be auto, always or never", cfg.Color)
	}

	return NewConsoleSink(f, cfg.Format, color, cfg.IncludeRaw)
}

// NewConsoleSink returns a console sink writing to out.
func NewConsoleSink(out io.Writer, format string, color, includeRaw bool) (*ConsoleSink, error) {
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("invalid format %q, must be json or text", format)
	}
	return &ConsoleSink{format: format, color: color, includeRaw: includeRaw, out: out}, nil
}

func (s *ConsoleSink) Name() string { return ConsoleType }

func (s *ConsoleSink) Write(_ context.Context, msgs []core.DecodedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := bufio.NewWriter(s.out)
	for _, m := range msgs {
		var err error
		if s.format == FormatJSON {
			err = s.writeJSON(w, m)
		} else {
			err = s.writeText(w, m)
		}
		if err != nil {
			return err
		}
	}
	return w.Flush()
}

func (s *ConsoleSink) writeJSON(w *bufio.Writer, m core.DecodedMessage) error {
	data, err := marshalRecord(m, s.includeRaw)
	if err != nil {
		return err
	}
	w.Write(data)
	return w.WriteByte('\n')
}

// writeText prints "[HH:MM:SS] Server 1234 Name {body}".
func (s *ConsoleSink) writeText(w *bufio.Writer, m core.DecodedMessage) error {
	src := m.Source.String()
	if s.color {
		c := colorClient
		if m.Source == core.SourceServer {
			c = colorServer
		}
		src = c + src + colorReset
	}

	fmt.Fprintf(w, "[%s] %s %d %s", m.Timestamp, src, m.ID, m.Name)
	if m.Body != nil {
		body, err := json.Marshal(m.Body)
		if err != nil {
			return fmt.Errorf("marshal body of %s: %w", m.Name, err)
		}
		w.WriteByte(' ')
		w.Write(body)
	}
	return w.WriteByte('\n')
}

func (s *ConsoleSink) Close() error { return nil }
