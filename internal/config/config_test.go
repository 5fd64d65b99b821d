package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestLoadConfigFromBytes(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		format   string
		check    func(t *testing.T, cfg *Config)
		hasError bool
	}{
		{
			name:   "yaml overrides keep defaults",
			format: "yaml",
			data: `
cursor:
  style: Beam
window:
  opacity: 0.9
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Cursor.Style != CursorBeam {
					t.Errorf("Cursor.Style = %q, want %q", cfg.Cursor.Style, CursorBeam)
				}
				if cfg.Window.Opacity != 0.9 {
					t.Errorf("Window.Opacity = %v, want 0.9", cfg.Window.Opacity)
				}
				if cfg.Scrolling.History != 10000 {
					t.Errorf("Scrolling.History = %d, want default 10000", cfg.Scrolling.History)
				}
			},
		},
		{
			name:   "jsonc with comments",
			format: "jsonc",
			data: `{
  // larger font for demos
  "font": {"size": 14},
  "shell": {"program": "/bin/zsh", "args": ["-l"]},
}`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Font.Size != 14 {
					t.Errorf("Font.Size = %v, want 14", cfg.Font.Size)
				}
				if cfg.Shell.Program != "/bin/zsh" || len(cfg.Shell.Args) != 1 {
					t.Errorf("Shell = %+v", cfg.Shell)
				}
			},
		},
		{
			name:   "json enum is case insensitive",
			format: "json",
			data:   `{"cursor": {"style": "underline"}}`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Cursor.Style != CursorUnderline {
					t.Errorf("Cursor.Style = %q, want %q", cfg.Cursor.Style, CursorUnderline)
				}
			},
		},
		{name: "empty yaml", format: "yaml", data: ""},
		{name: "unknown field", format: "yaml", data: "cursr:\n  style: Beam\n", hasError: true},
		{name: "unknown enum", format: "yaml", data: "cursor:\n  style: Triangle\n", hasError: true},
		{name: "opacity out of range", format: "yaml", data: "window:\n  opacity: 1.5\n", hasError: true},
		{name: "bad color", format: "yaml", data: "colors:\n  primary:\n    background: blue\n", hasError: true},
		{name: "history too large", format: "yaml", data: "scrolling:\n  history: 200000\n", hasError: true},
		{name: "bad log level", format: "yaml", data: "debug:\n  log_level: loud\n", hasError: true},
		{name: "unsupported format", format: "toml", data: "", hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfigFromBytes([]byte(tt.data), tt.format)
			if tt.hasError {
				if err == nil {
					t.Errorf("LoadConfigFromBytes() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfigFromBytes() unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadConfigDefaultPathMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Cursor.Style != CursorBlock {
		t.Errorf("expected defaults, got cursor style %q", cfg.Cursor.Style)
	}
}

func TestLoadConfigExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termctl.yml")
	if err := os.WriteFile(path, []byte("mouse:\n  hide_when_typing: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !cfg.Mouse.HideWhenTyping {
		t.Error("Mouse.HideWhenTyping should be true")
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() on missing explicit path should fail")
	}
}

func TestParseOption(t *testing.T) {
	tests := []struct {
		input    string
		expected Option
		hasError bool
	}{
		{"cursor.style=Beam", Option{Key: "cursor.style", Value: "Beam"}, false},
		{"window.title=a=b", Option{Key: "window.title", Value: "a=b"}, false},
		{" font.size =12", Option{Key: "font.size", Value: "12"}, false},
		{"env.TERM=", Option{Key: "env.TERM", Value: ""}, false},
		{"cursor.style", Option{}, true},
		{"=Beam", Option{}, true},
		{"cursor..style=Beam", Option{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOption(tt.input)
			if tt.hasError {
				if err == nil {
					t.Errorf("ParseOption(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOption(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseOption(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestKnownKey(t *testing.T) {
	tests := []struct {
		key   string
		known bool
	}{
		{"cursor.style", true},
		{"cursor", true},
		{"window.padding", true},
		{"window.padding.x", true},
		{"env.EDITOR", true},
		{"env", true},
		{"env.A.B", false},
		{"window.padding.z", false},
		{"window.opacity.alpha", false},
		{"cursor.shape", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := KnownKey(tt.key); got != tt.known {
			t.Errorf("KnownKey(%q) = %v, want %v", tt.key, got, tt.known)
		}
	}
}

func TestApplyOptions(t *testing.T) {
	base := Default()

	got, err := ApplyOptions(base, []Option{
		{Key: "cursor.style", Value: "Beam"},
		{Key: "window.padding", Value: "{x: 4, y: 2}"},
		{Key: "colors.primary.background", Value: "#000000"},
		{Key: "env.EDITOR", Value: "vim"},
		{Key: "cursor.style", Value: "underline"},
	})
	if err != nil {
		t.Fatalf("ApplyOptions() error = %v", err)
	}

	if got.Cursor.Style != CursorUnderline {
		t.Errorf("later option should win: Cursor.Style = %q", got.Cursor.Style)
	}
	if got.Window.Padding != (Delta{X: 4, Y: 2}) {
		t.Errorf("Window.Padding = %+v", got.Window.Padding)
	}
	if got.Colors.Primary.Background != "#000000" {
		t.Errorf("Colors.Primary.Background = %q", got.Colors.Primary.Background)
	}
	if got.Env["EDITOR"] != "vim" {
		t.Errorf("Env[EDITOR] = %q", got.Env["EDITOR"])
	}

	// untouched fields keep their value
	if got.Cursor.Blinking != base.Cursor.Blinking || got.Font != base.Font {
		t.Error("options must not touch unrelated fields")
	}
	// base is not modified
	if base.Cursor.Style != CursorBlock || len(base.Env) != 0 {
		t.Error("ApplyOptions modified its base")
	}
}

func TestApplyOptionsPartialStruct(t *testing.T) {
	base := Default()
	base.Window.Padding = Delta{X: 5, Y: 5}

	got, err := ApplyOptions(base, []Option{{Key: "window.padding", Value: "{y: 1}"}})
	if err != nil {
		t.Fatalf("ApplyOptions() error = %v", err)
	}
	if got.Window.Padding != (Delta{X: 5, Y: 1}) {
		t.Errorf("Window.Padding = %+v, want {5 1}", got.Window.Padding)
	}
}

func TestApplyOptionsErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		key     string
		unknown bool
	}{
		{"unknown key", []Option{{Key: "cursor.shape", Value: "Beam"}}, "cursor.shape", true},
		{"bad enum", []Option{{Key: "cursor.style", Value: "NotAShape"}}, "cursor.style", false},
		{"wrong type", []Option{{Key: "font.size", Value: "large"}}, "font.size", false},
		{"out of range", []Option{{Key: "window.opacity", Value: "2"}}, "window.opacity", false},
		{"empty number", []Option{{Key: "font.size", Value: ""}}, "font.size", false},
		{"empty enum", []Option{{Key: "cursor.style", Value: " "}}, "cursor.style", false},
		{"unknown nested field", []Option{{Key: "window.padding", Value: "{z: 1}"}}, "window.padding", false},
		{
			"first bad key wins",
			[]Option{
				{Key: "cursor.style", Value: "Beam"},
				{Key: "scrolling.history", Value: "-1"},
				{Key: "nope", Value: "1"},
			},
			"scrolling.history",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := Default()
			got, err := ApplyOptions(base, tt.opts)
			if err == nil {
				t.Fatal("ApplyOptions() expected error, got nil")
			}

			var optErr *OptionError
			if !errors.As(err, &optErr) {
				t.Fatalf("error %T is not *OptionError", err)
			}
			if optErr.Key != tt.key {
				t.Errorf("OptionError.Key = %q, want %q", optErr.Key, tt.key)
			}
			if optErr.Unknown != tt.unknown {
				t.Errorf("OptionError.Unknown = %v, want %v", optErr.Unknown, tt.unknown)
			}
			if got.Cursor.Style != base.Cursor.Style {
				t.Error("failed ApplyOptions must return the base unchanged")
			}
		})
	}
}

func TestApplyOptionsEmptyString(t *testing.T) {
	got, err := ApplyOptions(Default(), []Option{
		{Key: "window.title", Value: ""},
		{Key: "env.EDITOR", Value: ""},
	})
	if err != nil {
		t.Fatalf("ApplyOptions() error = %v", err)
	}
	if got.Window.Title != "" {
		t.Errorf("Window.Title = %q, want empty", got.Window.Title)
	}
	if v, ok := got.Env["EDITOR"]; !ok || v != "" {
		t.Errorf("Env[EDITOR] = %q, %v; want empty and set", v, ok)
	}
}

func TestApplyOptionsIdempotent(t *testing.T) {
	opts := []Option{{Key: "cursor.style", Value: "Beam"}, {Key: "font.size", Value: "13"}}

	once, err := ApplyOptions(Default(), opts)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := ApplyOptions(once, opts)
	if err != nil {
		t.Fatal(err)
	}
	if once.Cursor != twice.Cursor || once.Font != twice.Font {
		t.Errorf("applying twice changed the result: %+v vs %+v", once, twice)
	}
}

func TestMergeOptions(t *testing.T) {
	existing := []Option{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}
	got := MergeOptions(existing, []Option{{Key: "a", Value: "3"}, {Key: "c", Value: "4"}, {Key: "c", Value: "5"}})

	want := []Option{{Key: "b", Value: "2"}, {Key: "a", Value: "3"}, {Key: "c", Value: "5"}}
	if len(got) != len(want) {
		t.Fatalf("MergeOptions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MergeOptions()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if existing[0].Value != "1" {
		t.Error("MergeOptions modified its input")
	}
}

func TestSchema(t *testing.T) {
	fields := Schema()
	byKey := make(map[string]Field, len(fields))
	for _, f := range fields {
		byKey[f.Key] = f
		if !KnownKey(f.Key) {
			t.Errorf("schema key %q is not a known key", f.Key)
		}
	}

	style, ok := byKey["cursor.style"]
	if !ok {
		t.Fatal("schema is missing cursor.style")
	}
	if !strings.Contains(style.Type, "Beam") || style.Default != "Block" {
		t.Errorf("cursor.style field = %+v", style)
	}
	if _, ok := byKey["window.padding"]; ok {
		t.Error("struct prefixes must not be listed as leaves")
	}
	if byKey["scrolling.history"].Default != "10000" {
		t.Errorf("scrolling.history default = %q", byKey["scrolling.history"].Default)
	}
}

func TestClone(t *testing.T) {
	cfg := Default()
	cfg.Shell.Args = []string{"-l"}
	cfg.Env["A"] = "1"

	clone := cfg.Clone()
	clone.Shell.Args[0] = "-i"
	clone.Env["A"] = "2"

	if cfg.Shell.Args[0] != "-l" || cfg.Env["A"] != "1" {
		t.Error("Clone shares slices or maps with the original")
	}
}

func TestWatchReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termctl.yaml")
	if err := os.WriteFile(path, []byte("font:\n  size: 12\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	type result struct {
		cfg *Config
		err error
	}
	results := make(chan result, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, path, 10*time.Millisecond, func(cfg *Config, err error) {
		results <- result{cfg, err}
	})

	next := func() result {
		t.Helper()
		select {
		case r := <-results:
			return r
		case <-time.After(2 * time.Second):
			t.Fatal("no change reported")
			return result{}
		}
	}

	time.Sleep(30 * time.Millisecond)
	if err := os.WriteFile(path, []byte("font:\n  size: 18.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := next()
	if r.err != nil || r.cfg.Font.Size != 18.5 {
		t.Fatalf("got %+v, %v; want font.size 18.5", r.cfg, r.err)
	}

	if err := os.WriteFile(path, []byte("font:\n  size: -3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := next(); r.err == nil {
		t.Error("invalid config change was not reported as an error")
	}
}
