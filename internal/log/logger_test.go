package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"firestige.xyz/dofuswire/internal/config"
)

func TestParseLevelValid(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if err != nil {
				t.Errorf("parseLevel(%q) returned error: %v", tt.input, err)
			}
			if level != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestParseLevelInvalid(t *testing.T) {
	for _, input := range []string{"invalid", "trace", "fatal", ""} {
		t.Run(input, func(t *testing.T) {
			if _, err := parseLevel(input); err == nil {
				t.Errorf("parseLevel(%q) should return error, got nil", input)
			}
		})
	}
}

func newBuffered(t *testing.T, cfg config.LogConfig) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	cfg.Outputs.Console = "none"
	var buf bytes.Buffer
	logger, closer, err := New(cfg, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { closer.Close() })
	return logger, &buf
}

func TestInitInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	closer, err := Init(config.LogConfig{Level: "info", Format: "json", Outputs: config.LogOutputsConfig{Console: "none"}})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer closer.Close()

	if slog.Default() == prev {
		t.Error("Expected Init to replace the default logger")
	}
}

func TestInitWithFileOutput(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logPath := filepath.Join(t.TempDir(), "test.log")
	cfg := config.LogConfig{
		Level:  "debug",
		Format: "text",
		Outputs: config.LogOutputsConfig{
			Console: "none",
			File: config.FileOutputConfig{
				Enabled:  true,
				Path:     logPath,
				Rotation: config.RotationConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 7},
			},
		},
	}

	closer, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	slog.Info("test message", "key", "value")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Log file was not created at %s: %v", logPath, err)
	}
	if !strings.Contains(string(data), "key=value") {
		t.Errorf("Expected log line in file, got %q", data)
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
		want string
	}{
		{"invalid level", config.LogConfig{Level: "invalid", Format: "json"}, "invalid log level"},
		{"invalid format", config.LogConfig{Level: "info", Format: "xml"}, "unsupported log format"},
		{"invalid console", config.LogConfig{Level: "info", Outputs: config.LogOutputsConfig{Console: "tty"}}, "unsupported console output"},
		{
			"missing file path",
			config.LogConfig{Level: "info", Outputs: config.LogOutputsConfig{File: config.FileOutputConfig{Enabled: true}}},
			"requires 'path'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLogLevelFiltering(t *testing.T) {
	logger, buf := newBuffered(t, config.LogConfig{Level: "warn", Format: "text"})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("Messages below warn should be filtered, got %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("Expected warn and error messages, got %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	logger, buf := newBuffered(t, config.LogConfig{Level: "info", Format: "json"})
	logger.Info("frame length mismatch", "id", 6253, "declared", 12)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "frame length mismatch" || entry["id"] != float64(6253) {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestPatternFormat(t *testing.T) {
	logger, buf := newBuffered(t, config.LogConfig{
		Level:      "debug",
		Format:     "pattern",
		Pattern:    "%time [%level] <%component> %msg %field%n",
		TimeLayout: time.RFC3339,
	})

	logger.With("component", "reassembly").
		WithGroup("frame").
		Debug("message split across chunks", "id", 4417, "have", 10)

	line := buf.String()
	if !strings.Contains(line, "[DEBUG] <reassembly> message split across chunks frame.have=10 frame.id=4417\n") {
		t.Errorf("Unexpected pattern output %q", line)
	}
}

func TestPatternLevelFiltering(t *testing.T) {
	logger, buf := newBuffered(t, config.LogConfig{Level: "info", Format: "pattern"})

	logger.Debug("hidden")
	logger.Info("shown", slog.Group("stream", "name", "a->b"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Debug record should be filtered, got %q", out)
	}
	if !strings.Contains(out, "[INFO] shown stream.name=a->b") {
		t.Errorf("Unexpected output %q", out)
	}
}
