package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format names a protocol description encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the description format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// Parse decodes a protocol description without validating it.
func Parse(data []byte, format Format) (*Description, error) {
	var d Description
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse json description: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("parse yaml description: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &d); err != nil {
			return nil, fmt.Errorf("parse toml description: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	return &d, nil
}

// LoadDescription reads and parses the description at path.
func LoadDescription(path string) (*Description, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read protocol description: %w", err)
	}
	return Parse(data, format)
}

// Load reads, validates and compiles the description at path.
func Load(path string) (*Schema, error) {
	d, err := LoadDescription(path)
	if err != nil {
		return nil, err
	}
	s, err := Compile(d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Info("protocol description loaded",
		"path", path,
		"version", s.Version(),
		"messages", s.Len(),
		"types", s.TypeCount())
	return s, nil
}
