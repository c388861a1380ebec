// Package kiterrors implements the closed error taxonomy the acquisition
// pipeline reports through: every fatal condition surfaced by msvc-kit
// carries one of the Kind values below, so a caller (or the CLI layer) can
// map it to an exit code without string-matching messages.
package kiterrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy. It is closed: do not add a case
// without also deciding its CLI exit code and retry policy.
type Kind string

const (
	Io               Kind = "io"
	Http             Kind = "http"
	ManifestParse    Kind = "manifest_parse"
	VersionNotFound  Kind = "version_not_found"
	HashMismatch     Kind = "hash_mismatch"
	Extraction       Kind = "extraction"
	Cancelled        Kind = "cancelled"
	Config           Kind = "config"
	Other            Kind = "other"
)

// Error wraps a Kind, a human message, and an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Kind-tagged error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an existing error with a Kind, preserving it as the cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Other when err does not
// carry one (e.g. a bare stdlib error escaped the pipeline uncategorized).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return Other
}

// ExitCode maps a Kind to the process exit code the CLI layer returns.
// 0 is never returned here; callers only call ExitCode on a non-nil error.
func ExitCode(kind Kind) int {
	switch kind {
	case VersionNotFound:
		return 2
	case Config:
		return 3
	case HashMismatch:
		return 4
	case Extraction:
		return 5
	case Http:
		return 6
	case Io:
		return 7
	case ManifestParse:
		return 8
	case Cancelled:
		return 130
	default:
		return 1
	}
}
