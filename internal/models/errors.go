package models

import "fmt"

// ErrorKind classifies a failed reply.
type ErrorKind string

const (
	ErrDecode                  ErrorKind = "DecodeError"
	ErrSpawnFailed             ErrorKind = "SpawnFailed"
	ErrInvalidWorkingDirectory ErrorKind = "InvalidWorkingDirectory"
	ErrUnknownOptionKey        ErrorKind = "UnknownOptionKey"
	ErrInvalidValueForKey      ErrorKind = "InvalidValueForKey"
	ErrInternal                ErrorKind = "Internal"
)

// ErrorInfo represents an error in a reply
type ErrorInfo struct {
	Kind    ErrorKind `cbor:"kind" json:"kind"`
	Message string    `cbor:"message" json:"message"`
	Key     string    `cbor:"key,omitempty" json:"key,omitempty"`
}

// Error is an application-level failure produced while routing a message.
type Error struct {
	Kind    ErrorKind
	Message string
	// Key is the offending option key for config failures.
	Key string
	Err error
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// Errorf creates an Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Info converts the error to its wire form.
func (e *Error) Info() ErrorInfo {
	return ErrorInfo{Kind: e.Kind, Message: e.Message, Key: e.Key}
}

func (i ErrorInfo) String() string {
	if i.Key != "" {
		return fmt.Sprintf("%s (%s): %s", i.Kind, i.Key, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}
