// Package apperr defines the error kinds surfaced by the progression engine,
// the attempt recorder and the validator dispatcher.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react to it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidArgument
	KindInvalidState
	// KindForbidden is a business-rule rejection (e.g. streak not met),
	// not a data error.
	KindForbidden
	KindIntegrity
	KindUpstreamUnavailable
	KindUnknownConfiguration
)

var kindNames = [...]string{
	KindInternal:             "internal",
	KindNotFound:             "not_found",
	KindInvalidArgument:      "invalid_argument",
	KindInvalidState:         "invalid_state",
	KindForbidden:            "forbidden",
	KindIntegrity:            "integrity_violation",
	KindUpstreamUnavailable:  "upstream_unavailable",
	KindUnknownConfiguration: "unknown_configuration",
}

// String returns the snake_case name used in API error bodies.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is a classified error with a user-facing message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap returns an Error of the given kind that wraps cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func InvalidArgument(msg string) *Error { return New(KindInvalidArgument, msg) }

func InvalidState(msg string) *Error { return New(KindInvalidState, msg) }

func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

// KindOf reports the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
