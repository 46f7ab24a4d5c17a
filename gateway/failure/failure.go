// Package failure defines the tagged error kinds a handler may fail with.
//
// Every error carries a Kind. The exception advisor maps kinds to client
// envelopes by exact tag, so a new kind renders as the generic server error
// until a renderer is registered for it.
package failure

import (
	"errors"
	"fmt"
)

// Kind tags an Error.
type Kind string

const (
	// KindValidation covers unknown operations and malformed payloads.
	KindValidation Kind = "VALIDATION"

	// KindRegistration covers failed identity binds and lookups.
	KindRegistration Kind = "REGISTRATION"

	// KindGroup covers join and leave failures.
	KindGroup Kind = "GROUP"

	// KindGroupExists is raised when creating a group that is already
	// present. It is a group failure in spirit but has its own tag.
	KindGroupExists Kind = "GROUP_EXISTS"

	// KindTransport covers serialize and write failures.
	KindTransport Kind = "TRANSPORT"

	// KindExternalTool covers failures of the screenshot collaborator.
	KindExternalTool Kind = "EXTERNAL_TOOL"
)

func (k Kind) String() string {
	return string(k)
}

// Error is a tagged error.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap creates an Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

// Error returns the message, followed by the cause when present.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Kind returns the tag.
func (e *Error) Kind() Kind {
	return e.kind
}

// Message returns the message without the cause.
func (e *Error) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the tag of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Registration(message string) *Error {
	return New(KindRegistration, message)
}

func Group(message string) *Error {
	return New(KindGroup, message)
}

func GroupExists(name string) *Error {
	return New(KindGroupExists, fmt.Sprintf("%s channel group already exists.", name))
}

func Transport(message string, cause error) *Error {
	return Wrap(KindTransport, message, cause)
}

func ExternalTool(message string, cause error) *Error {
	return Wrap(KindExternalTool, message, cause)
}
