package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Shell            Program           `yaml:"shell" json:"shell"`
	WorkingDirectory string            `yaml:"working_directory" json:"working_directory"`
	Env              map[string]string `yaml:"env" json:"env"`
	LiveConfigReload bool              `yaml:"live_config_reload" json:"live_config_reload"`
	IPCSocket        bool              `yaml:"ipc_socket" json:"ipc_socket"`
	Window           WindowConfig      `yaml:"window" json:"window"`
	Font             Font              `yaml:"font" json:"font"`
	Colors           Colors            `yaml:"colors" json:"colors"`
	Cursor           Cursor            `yaml:"cursor" json:"cursor"`
	Scrolling        Scrolling         `yaml:"scrolling" json:"scrolling"`
	Mouse            Mouse             `yaml:"mouse" json:"mouse"`
	Debug            Debug             `yaml:"debug" json:"debug"`

	DrawBoldTextWithBrightColors bool `yaml:"draw_bold_text_with_bright_colors" json:"draw_bold_text_with_bright_colors"`
}

// Program is an executable plus its arguments
type Program struct {
	Program string   `yaml:"program" json:"program"`
	Args    []string `yaml:"args" json:"args"`
}

// WindowConfig contains per-window presentation settings
type WindowConfig struct {
	Opacity        float64     `yaml:"opacity" json:"opacity"`
	Padding        Delta       `yaml:"padding" json:"padding"`
	DynamicPadding bool        `yaml:"dynamic_padding" json:"dynamic_padding"`
	Decorations    Decorations `yaml:"decorations" json:"decorations"`
	StartupMode    StartupMode `yaml:"startup_mode" json:"startup_mode"`
	Title          string      `yaml:"title" json:"title"`
	DynamicTitle   bool        `yaml:"dynamic_title" json:"dynamic_title"`
}

// Delta is a change along both axes
type Delta struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Font settings
type Font struct {
	Size   float64  `yaml:"size" json:"size"`
	Normal FontFace `yaml:"normal" json:"normal"`
	Offset Delta    `yaml:"offset" json:"offset"`
}

// FontFace selects a font family and style
type FontFace struct {
	Family string `yaml:"family" json:"family"`
	Style  string `yaml:"style" json:"style"`
}

// Colors holds the color scheme
type Colors struct {
	Primary PrimaryColors `yaml:"primary" json:"primary"`
	Cursor  CursorColors  `yaml:"cursor" json:"cursor"`
}

// PrimaryColors are the default foreground and background
type PrimaryColors struct {
	Foreground Color `yaml:"foreground" json:"foreground"`
	Background Color `yaml:"background" json:"background"`
}

// CursorColors override the cursor cell colors; empty means inverted
type CursorColors struct {
	Text   Color `yaml:"text" json:"text"`
	Cursor Color `yaml:"cursor" json:"cursor"`
}

// Cursor settings
type Cursor struct {
	Style           CursorStyle `yaml:"style" json:"style"`
	Blinking        Blinking    `yaml:"blinking" json:"blinking"`
	BlinkInterval   int         `yaml:"blink_interval" json:"blink_interval"` // milliseconds
	Thickness       float64     `yaml:"thickness" json:"thickness"`           // fraction of cell width
	UnfocusedHollow bool        `yaml:"unfocused_hollow" json:"unfocused_hollow"`
}

// Scrolling settings
type Scrolling struct {
	History    int `yaml:"history" json:"history"`
	Multiplier int `yaml:"multiplier" json:"multiplier"`
}

// Mouse settings
type Mouse struct {
	HideWhenTyping bool `yaml:"hide_when_typing" json:"hide_when_typing"`
}

// Debug settings
type Debug struct {
	RenderTimer     bool   `yaml:"render_timer" json:"render_timer"`
	HighlightDamage bool   `yaml:"highlight_damage" json:"highlight_damage"`
	LogLevel        string `yaml:"log_level" json:"log_level"`
}

// Color is a "#rrggbb" or "0xrrggbb" string; empty means unset.
type Color string

// CursorStyle is the cursor shape
type CursorStyle string

const (
	CursorBlock     CursorStyle = "Block"
	CursorUnderline CursorStyle = "Underline"
	CursorBeam      CursorStyle = "Beam"
	CursorHidden    CursorStyle = "Hidden"
)

// Blinking controls cursor blinking
type Blinking string

const (
	BlinkNever  Blinking = "Never"
	BlinkOff    Blinking = "Off"
	BlinkOn     Blinking = "On"
	BlinkAlways Blinking = "Always"
)

// Decorations selects the window frame
type Decorations string

const (
	DecorationsFull        Decorations = "Full"
	DecorationsNone        Decorations = "None"
	DecorationsTransparent Decorations = "Transparent"
	DecorationsButtonless  Decorations = "Buttonless"
)

// StartupMode is the initial window state
type StartupMode string

const (
	StartupWindowed         StartupMode = "Windowed"
	StartupMaximized        StartupMode = "Maximized"
	StartupFullscreen       StartupMode = "Fullscreen"
	StartupSimpleFullscreen StartupMode = "SimpleFullscreen"
)

var (
	cursorStyles = []CursorStyle{CursorBlock, CursorUnderline, CursorBeam, CursorHidden}
	blinkModes   = []Blinking{BlinkNever, BlinkOff, BlinkOn, BlinkAlways}
	decorations  = []Decorations{DecorationsFull, DecorationsNone, DecorationsTransparent, DecorationsButtonless}
	startupModes = []StartupMode{StartupWindowed, StartupMaximized, StartupFullscreen, StartupSimpleFullscreen}
)

// unmarshalEnum decodes a scalar and checks it against the allowed values.
// Matching is case-insensitive; the canonical spelling is stored.
func unmarshalEnum[T ~string](value *yaml.Node, allowed []T, what string) (T, error) {
	if value.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("%s must be a scalar", what)
	}
	for _, a := range allowed {
		if strings.EqualFold(string(a), value.Value) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown %s %q (expected one of %v)", what, value.Value, allowed)
}

func (c *CursorStyle) UnmarshalYAML(value *yaml.Node) error {
	v, err := unmarshalEnum(value, cursorStyles, "cursor style")
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (b *Blinking) UnmarshalYAML(value *yaml.Node) error {
	v, err := unmarshalEnum(value, blinkModes, "blinking mode")
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (d *Decorations) UnmarshalYAML(value *yaml.Node) error {
	v, err := unmarshalEnum(value, decorations, "decorations")
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (s *StartupMode) UnmarshalYAML(value *yaml.Node) error {
	v, err := unmarshalEnum(value, startupModes, "startup mode")
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Clone returns a deep copy of the configuration
func (c Config) Clone() Config {
	out := c
	if c.Shell.Args != nil {
		out.Shell.Args = append([]string(nil), c.Shell.Args...)
	}
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	return out
}
