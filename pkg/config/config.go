// Package config loads and saves the accordionctl settings file
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultAPIAddr is the listen address of the REST API. Loopback only.
const DefaultAPIAddr = "localhost:8080"

// Config is the persisted settings
type Config struct {
	MIDI MIDIConfig `yaml:"midi"`
	API  APIConfig  `yaml:"api"`
	Log  LogConfig  `yaml:"log"`
}

// MIDIConfig names the ports to connect to. Empty means the first available port.
type MIDIConfig struct {
	InPort  string `yaml:"inPort"`
	OutPort string `yaml:"outPort"`
}

// APIConfig configures the REST server
type APIConfig struct {
	Addr string `yaml:"addr"`
	// Dir is the only directory API sessions may open and save keyboard
	// files in. Empty disables file access over the API.
	Dir string `yaml:"dir"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the settings used when no file exists
func Default() *Config {
	return &Config{
		API: APIConfig{Addr: DefaultAPIAddr},
		Log: LogConfig{Level: "info"},
	}
}

// configDir returns the platform-appropriate config directory
func configDir() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configHome, "accordionctl"), nil
}

// Path returns the default location of the settings file
func Path() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the settings at path, returning defaults if the file does not exist.
// An empty path means Path().
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = DefaultAPIAddr
	}
	return cfg, nil
}

// Save writes the settings to path, creating its directory.
// An empty path means Path().
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
