package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MessageKind tags which payload a Message carries.
type MessageKind string

const (
	KindCreateWindow MessageKind = "create-window"
	KindUpdateConfig MessageKind = "config"
)

// WindowID identifies a live window. Ids start at 1 and are never reused
// within one process.
type WindowID uint64

// Request is the envelope a client sends: exactly one Message.
type Request struct {
	ID      string  `cbor:"id" json:"id"`
	Message Message `cbor:"message" json:"message"`
}

// Reply is the envelope the server sends back for a Request.
type Reply struct {
	ID       string     `cbor:"id" json:"id"`
	OK       bool       `cbor:"ok" json:"ok"`
	WindowID WindowID   `cbor:"window_id,omitempty" json:"windowId,omitempty"`
	Error    *ErrorInfo `cbor:"error,omitempty" json:"error,omitempty"`
}

// Message is a tagged variant: Kind selects which pointer is populated.
type Message struct {
	Kind         MessageKind   `cbor:"kind" json:"kind"`
	CreateWindow *CreateWindow `cbor:"create_window,omitempty" json:"createWindow,omitempty"`
	UpdateConfig *UpdateConfig `cbor:"config,omitempty" json:"config,omitempty"`
}

// CreateWindow asks the server to open a new window.
type CreateWindow struct {
	Hold             bool     `cbor:"hold,omitempty" json:"hold,omitempty"`
	WorkingDirectory string   `cbor:"working_directory,omitempty" json:"workingDirectory,omitempty"`
	Command          []string `cbor:"command,omitempty" json:"command,omitempty"`
}

// UpdateConfig patches the configuration of the targeted window(s).
type UpdateConfig struct {
	Target  WindowTarget   `cbor:"target" json:"target"`
	Options []ConfigOption `cbor:"options,omitempty" json:"options,omitempty"`
	// Reset drops earlier IPC overrides before Options are applied.
	Reset bool `cbor:"reset,omitempty" json:"reset,omitempty"`
}

// WindowTarget is either All or a specific window id.
type WindowTarget struct {
	All bool     `cbor:"all,omitempty" json:"all,omitempty"`
	ID  WindowID `cbor:"id,omitempty" json:"id,omitempty"`
}

// ConfigOption is one dotted key path and its literal value text,
// e.g. {Key: "cursor.style", Value: "Beam"}.
type ConfigOption struct {
	Key   string `cbor:"key" json:"key"`
	Value string `cbor:"value" json:"value"`
}

// TargetAll addresses every live window.
func TargetAll() WindowTarget {
	return WindowTarget{All: true}
}

// TargetWindow addresses a single window.
func TargetWindow(id WindowID) WindowTarget {
	return WindowTarget{ID: id}
}

func (t WindowTarget) String() string {
	if t.All {
		return "all"
	}
	return fmt.Sprintf("%d", t.ID)
}

// NewCreateWindow wraps a CreateWindow into a Message.
func NewCreateWindow(cw CreateWindow) Message {
	return Message{Kind: KindCreateWindow, CreateWindow: &cw}
}

// NewUpdateConfig wraps an UpdateConfig into a Message.
func NewUpdateConfig(uc UpdateConfig) Message {
	return Message{Kind: KindUpdateConfig, UpdateConfig: &uc}
}

// NewRequest creates a new request envelope
func NewRequest(id string, msg Message) *Request {
	return &Request{ID: id, Message: msg}
}

// NewSuccess builds a successful reply. A zero windowID is omitted on the wire.
func NewSuccess(id string, windowID WindowID) *Reply {
	return &Reply{ID: id, OK: true, WindowID: windowID}
}

// NewFailure builds a failed reply from a structured error.
func NewFailure(id string, err *Error) *Reply {
	info := err.Info()
	return &Reply{ID: id, OK: false, Error: &info}
}

// IsError returns true if the reply carries a failure
func (r *Reply) IsError() bool {
	return !r.OK || r.Error != nil
}

// Validate checks the structural invariants of a message. It does not
// consult any server state.
func (m *Message) Validate() error {
	switch m.Kind {
	case KindCreateWindow:
		if m.CreateWindow == nil || m.UpdateConfig != nil {
			return fmt.Errorf("kind %q requires exactly the create_window payload", m.Kind)
		}
		return m.CreateWindow.Validate()
	case KindUpdateConfig:
		if m.UpdateConfig == nil || m.CreateWindow != nil {
			return fmt.Errorf("kind %q requires exactly the config payload", m.Kind)
		}
		return m.UpdateConfig.Validate()
	case "":
		return fmt.Errorf("missing message kind")
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
}

// Validate checks the CreateWindow invariants.
func (cw *CreateWindow) Validate() error {
	if cw.WorkingDirectory != "" {
		if err := ValidatePath(cw.WorkingDirectory); err != nil {
			return fmt.Errorf("working_directory: %w", err)
		}
	}
	if cw.Command != nil {
		if len(cw.Command) == 0 {
			return fmt.Errorf("command: must not be empty when present")
		}
		if strings.TrimSpace(cw.Command[0]) == "" {
			return fmt.Errorf("command: missing executable")
		}
		for i, arg := range cw.Command {
			if strings.ContainsRune(arg, 0) {
				return fmt.Errorf("command: argument %d contains NUL byte", i)
			}
		}
	}
	return nil
}

// Validate checks the UpdateConfig invariants.
func (uc *UpdateConfig) Validate() error {
	if err := uc.Target.Validate(); err != nil {
		return err
	}
	if len(uc.Options) == 0 && !uc.Reset {
		return fmt.Errorf("config: no options given")
	}
	for i, opt := range uc.Options {
		if strings.TrimSpace(opt.Key) == "" {
			return fmt.Errorf("config: option %d has an empty key", i)
		}
	}
	return nil
}

// Validate checks that exactly one addressing mode is used.
func (t WindowTarget) Validate() error {
	if t.All && t.ID != 0 {
		return fmt.Errorf("target: all windows target must not carry an id")
	}
	if !t.All && t.ID == 0 {
		return fmt.Errorf("target: missing window id")
	}
	return nil
}

// ValidatePath reports whether p is usable as a working directory on the
// wire: absolute, clean and free of NUL bytes.
func ValidatePath(p string) error {
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("malformed path: contains NUL byte")
	}
	if !filepath.IsAbs(p) {
		return fmt.Errorf("malformed path %q: not absolute", p)
	}
	if filepath.Clean(p) != p {
		return fmt.Errorf("malformed path %q: not clean", p)
	}
	return nil
}
