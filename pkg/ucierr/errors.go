// Package ucierr defines the structured error kinds surfaced by the core
// reconciliation packages (uci, diff, reconcile, docs, fleet). Callers such
// as the CLI inspect the Kind to choose exit codes and message formatting.
package ucierr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error by where in the reconciliation lifecycle it
// occurred.
type Kind int

const (
	// KindTransportUnavailable: connect failed or the session dropped.
	KindTransportUnavailable Kind = iota
	// KindRemoteCommandFailed: a uci or service command returned non-zero
	// during apply.
	KindRemoteCommandFailed
	// KindParseError: malformed on-device text for one package; that
	// package is skipped with a warning.
	KindParseError
	// KindDocumentError: malformed desired-state document, unresolved
	// variable, or missing referenced file.
	KindDocumentError
	// KindFleetStageFailure: a device reported KindTransportUnavailable or
	// KindRemoteCommandFailed during the fleet stage phase.
	KindFleetStageFailure
	// KindFleetCommitFailure: a per-device error during the commit phase.
	// Other devices are not rolled back once commit is dispatched.
	KindFleetCommitFailure
)

func (k Kind) String() string {
	switch k {
	case KindTransportUnavailable:
		return "transport_unavailable"
	case KindRemoteCommandFailed:
		return "remote_command_failed"
	case KindParseError:
		return "parse_error"
	case KindDocumentError:
		return "document_error"
	case KindFleetStageFailure:
		return "fleet_stage_failure"
	case KindFleetCommitFailure:
		return "fleet_commit_failure"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind alongside a human-readable
// message and an optional underlying cause.
type Error struct {
	Kind    Kind
	Device  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Device != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (device %s): %v", e.Kind, e.Message, e.Device, e.Cause)
		}
		return fmt.Sprintf("%s: %s (device %s)", e.Kind, e.Message, e.Device)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a structured error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a structured error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDevice sets the device name associated with the error.
func (e *Error) WithDevice(device string) *Error {
	e.Device = device
	return e
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error; ok is false otherwise.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
