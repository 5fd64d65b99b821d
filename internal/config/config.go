package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = ".config/termctl"
	DefaultConfigFile = "termctl.yaml"
)

// Default returns the built-in configuration. Every loaded file is decoded
// on top of it, so a config file only needs the keys it changes.
func Default() Config {
	return Config{
		Env:              map[string]string{},
		LiveConfigReload: true,
		IPCSocket:        true,
		Window: WindowConfig{
			Opacity:      1.0,
			Decorations:  DecorationsFull,
			StartupMode:  StartupWindowed,
			Title:        "termctl",
			DynamicTitle: true,
		},
		Font: Font{
			Size:   11.25,
			Normal: FontFace{Family: "monospace", Style: "Regular"},
		},
		Colors: Colors{
			Primary: PrimaryColors{Foreground: "#d8d8d8", Background: "#181818"},
		},
		Cursor: Cursor{
			Style:           CursorBlock,
			Blinking:        BlinkOff,
			BlinkInterval:   750,
			Thickness:       0.15,
			UnfocusedHollow: true,
		},
		Scrolling: Scrolling{History: 10000, Multiplier: 3},
		Debug:     Debug{LogLevel: "warn"},
	}
}

// LoadConfig loads configuration from the specified path or default location.
// If path is empty, uses ~/.config/termctl/termctl.yaml and falls back to the
// defaults when that file does not exist.
// Supports .yaml, .yml, .json and .jsonc extensions.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return LoadConfigFromBytes(data, ext)
}

// LoadConfigFromBytes loads configuration from raw bytes
// format should be "yaml", "json" or "jsonc"
func LoadConfigFromBytes(data []byte, format string) (*Config, error) {
	switch format {
	case "yaml", "yml":
	case "json", "jsonc":
		// JSON is a subset of YAML; decoding both through yaml keeps the
		// enum checks in one place.
		data = jsonc.ToJSON(data)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s config: %w", format, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "termctl", DefaultConfigFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
}

// ShellProgram returns the program and arguments new windows run when no
// command is given.
func (c *Config) ShellProgram() (string, []string) {
	if c.Shell.Program != "" {
		return c.Shell.Program, append([]string(nil), c.Shell.Args...)
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh, nil
	}
	return "/bin/sh", nil
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
