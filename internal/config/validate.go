package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// MaxScrollbackLines is the upper bound for scrolling.history
const MaxScrollbackLines = 100000

var colorPattern = regexp.MustCompile(`^(#|0x)[0-9a-fA-F]{6}$`)

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if err := validateWindow(&c.Window); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if c.Font.Size <= 0 {
		return fmt.Errorf("font.size must be positive, got %v", c.Font.Size)
	}
	if err := validateColors(&c.Colors); err != nil {
		return fmt.Errorf("colors: %w", err)
	}
	if err := validateCursor(&c.Cursor); err != nil {
		return fmt.Errorf("cursor: %w", err)
	}

	if c.Scrolling.History < 0 || c.Scrolling.History > MaxScrollbackLines {
		return fmt.Errorf("scrolling.history must be between 0 and %d, got %d", MaxScrollbackLines, c.Scrolling.History)
	}
	if c.Scrolling.Multiplier <= 0 {
		return fmt.Errorf("scrolling.multiplier must be positive, got %d", c.Scrolling.Multiplier)
	}

	if c.Debug.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Debug.LogLevel)); err != nil {
			return fmt.Errorf("debug.log_level: %w", err)
		}
	}

	for k := range c.Env {
		if k == "" || strings.ContainsAny(k, "=\x00") {
			return fmt.Errorf("env: invalid variable name %q", k)
		}
	}

	return nil
}

func validateWindow(w *WindowConfig) error {
	if w.Opacity < 0 || w.Opacity > 1 {
		return fmt.Errorf("opacity must be between 0.0 and 1.0, got %v", w.Opacity)
	}
	if w.Padding.X < 0 || w.Padding.Y < 0 {
		return fmt.Errorf("padding cannot be negative")
	}
	if !slices.Contains(decorations, w.Decorations) {
		return fmt.Errorf("invalid decorations: %q", w.Decorations)
	}
	if !slices.Contains(startupModes, w.StartupMode) {
		return fmt.Errorf("invalid startup mode: %q", w.StartupMode)
	}
	return nil
}

func validateColors(c *Colors) error {
	colors := map[string]Color{
		"primary.foreground": c.Primary.Foreground,
		"primary.background": c.Primary.Background,
		"cursor.text":        c.Cursor.Text,
		"cursor.cursor":      c.Cursor.Cursor,
	}
	for name, value := range colors {
		if value == "" {
			continue
		}
		if !colorPattern.MatchString(string(value)) {
			return fmt.Errorf("%s: invalid color %q (expected #rrggbb or 0xrrggbb)", name, value)
		}
	}
	return nil
}

func validateCursor(c *Cursor) error {
	if !slices.Contains(cursorStyles, c.Style) {
		return fmt.Errorf("invalid style: %q", c.Style)
	}
	if !slices.Contains(blinkModes, c.Blinking) {
		return fmt.Errorf("invalid blinking mode: %q", c.Blinking)
	}
	if c.BlinkInterval < 10 {
		return fmt.Errorf("blink_interval must be at least 10ms, got %d", c.BlinkInterval)
	}
	if c.Thickness < 0 || c.Thickness > 1 {
		return fmt.Errorf("thickness must be between 0.0 and 1.0, got %v", c.Thickness)
	}
	return nil
}
