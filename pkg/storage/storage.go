// Package storage reads and writes single keyboards as .json, .syx or .mid files
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/accordionctl/pkg/keyboard"
)

// ErrUnknownFormat is returned for unrecognized extensions, contents or type tags
var ErrUnknownFormat = errors.New("unknown format")

// FormatError reports a file that does not hold a valid keyboard
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Format represents a file format
type Format string

const (
	FormatJSON    Format = "json"
	FormatSyx     Format = "syx"
	FormatMIDI    Format = "midi"
	FormatUnknown Format = "unknown"
)

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON
	case ".syx":
		return FormatSyx
	case ".mid", ".midi":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		return FormatJSON
	case len(data) >= 4 && string(data[:4]) == "MThd":
		return FormatMIDI
	case len(data) > 0 && data[0] == 0xF0:
		return FormatSyx
	default:
		return FormatUnknown
	}
}

// Marshal encodes k in the given format
func Marshal(format Format, k *keyboard.Keyboard) ([]byte, error) {
	switch format {
	case FormatJSON:
		return marshalJSON(k)
	case FormatSyx:
		return marshalSyx(k)
	case FormatMIDI:
		return marshalMIDI(k)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// Unmarshal decodes a keyboard stored in the given format
func Unmarshal(format Format, data []byte) (*keyboard.Keyboard, error) {
	switch format {
	case FormatJSON:
		return unmarshalJSON(data)
	case FormatSyx:
		return unmarshalSyx(data)
	case FormatMIDI:
		return unmarshalMIDI(data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// Load reads the keyboard stored at path. The format comes from the
// extension, or from the content when the extension is not known.
func Load(path string) (*keyboard.Keyboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyboard file: %w", err)
	}

	format := DetectFormat(path)
	if format == FormatUnknown {
		format = DetectFormatFromContent(data)
	}
	k, err := Unmarshal(format, data)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return k, nil
}

// Save writes k to path in the format given by its extension. The file is
// replaced atomically so a failed save leaves the previous content intact.
func Save(path string, k *keyboard.Keyboard) error {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return &FormatError{Path: path, Err: fmt.Errorf("%w: cannot determine format from filename", ErrUnknownFormat)}
	}
	data, err := Marshal(format, k)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// Convert rewrites the keyboard stored at inputPath into outputPath
func Convert(inputPath, outputPath string) error {
	k, err := Load(inputPath)
	if err != nil {
		return err
	}
	if err := Save(outputPath, k); err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write keyboard file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write keyboard file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write keyboard file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
