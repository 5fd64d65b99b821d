package config

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Option is one dotted-path override, e.g. "cursor.style=Beam".
type Option struct {
	Key   string
	Value string
}

func (o Option) String() string {
	return o.Key + "=" + o.Value
}

// OptionError reports which option could not be applied.
type OptionError struct {
	Key string
	// Unknown is true when the key path does not exist in the schema;
	// otherwise the value was rejected.
	Unknown bool
	Err     error
}

func (e *OptionError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("unknown config key %q", e.Key)
	}
	return fmt.Sprintf("invalid value for %q: %v", e.Key, e.Err)
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

// ParseOption splits "key.path=value" on the first '='.
func ParseOption(s string) (Option, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return Option{}, fmt.Errorf("option %q: expected key=value", s)
	}
	key = strings.TrimSpace(key)
	if err := checkKeyPath(key); err != nil {
		return Option{}, fmt.Errorf("option %q: %w", s, err)
	}
	return Option{Key: key, Value: value}, nil
}

// ParseOptions parses every argument with ParseOption.
func ParseOptions(args []string) ([]Option, error) {
	opts := make([]Option, 0, len(args))
	for _, arg := range args {
		opt, err := ParseOption(arg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

func checkKeyPath(key string) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	for _, part := range strings.Split(key, ".") {
		if part == "" {
			return fmt.Errorf("empty segment in key %q", key)
		}
	}
	return nil
}

// MergeOptions appends next to existing. An option whose key is already
// present replaces the earlier one, so the result holds each key once and
// in the order it was last set.
func MergeOptions(existing, next []Option) []Option {
	out := make([]Option, 0, len(existing)+len(next))
	out = append(out, existing...)
	for _, opt := range next {
		for i := 0; i < len(out); i++ {
			if out[i].Key == opt.Key {
				out = append(out[:i], out[i+1:]...)
				i--
			}
		}
		out = append(out, opt)
	}
	return out
}

// ApplyOptions merges opts into a copy of base, in order. Fields that no
// option names keep their value. The first failing option aborts with an
// *OptionError and base is never modified.
func ApplyOptions(base Config, opts []Option) (Config, error) {
	cfg := base.Clone()
	for _, opt := range opts {
		if err := applyOption(&cfg, opt); err != nil {
			return base, err
		}
	}
	return cfg, nil
}

// CheckOptions applies opts to the defaults and reports the first bad one.
// It lets callers reject a batch before touching any live state.
func CheckOptions(opts []Option) error {
	_, err := ApplyOptions(Default(), opts)
	return err
}

func applyOption(cfg *Config, opt Option) error {
	if err := checkKeyPath(opt.Key); err != nil || !KnownKey(opt.Key) {
		return &OptionError{Key: opt.Key, Unknown: true, Err: err}
	}

	doc, err := optionDocument(opt)
	if err != nil {
		return &OptionError{Key: opt.Key, Err: err}
	}

	// Decode into a scratch copy so a value that fails half way through a
	// nested mapping cannot leave cfg partially written.
	next := cfg.Clone()
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(&next); err != nil {
		return &OptionError{Key: opt.Key, Err: err}
	}
	if err := next.Validate(); err != nil {
		return &OptionError{Key: opt.Key, Err: err}
	}

	*cfg = next
	return nil
}

// optionDocument turns "a.b.c=v" into the YAML document {a: {b: {c: v}}}.
func optionDocument(opt Option) ([]byte, error) {
	var value yaml.Node
	if err := yaml.Unmarshal([]byte(opt.Value), &value); err != nil {
		return nil, fmt.Errorf("parse value %q: %w", opt.Value, err)
	}

	var node *yaml.Node
	switch {
	case strings.TrimSpace(opt.Value) == "":
		// An empty value is the empty string; non-string keys reject it.
		node = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ""}
	case value.Kind == 0, value.Kind == yaml.DocumentNode && len(value.Content) == 0:
		// "#1d1f21" parses as a YAML comment; take such values literally.
		node = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: opt.Value}
	case value.Kind == yaml.DocumentNode && len(value.Content) == 1:
		node = value.Content[0]
	default:
		return nil, fmt.Errorf("parse value %q: expected a single value", opt.Value)
	}

	parts := strings.Split(opt.Key, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		node = &yaml.Node{
			Kind: yaml.MappingNode,
			Tag:  "!!map",
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Tag: "!!str", Value: parts[i]},
				node,
			},
		}
	}

	out, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("encode option: %w", err)
	}
	return out, nil
}
