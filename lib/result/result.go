// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

// Package result provides the typed result envelope threaded through
// every Vaultic component instead of raised errors. A Result carries
// either a value or a numeric failure code with a human-readable
// message and a breadcrumb trail of the component boundaries the
// failure crossed.
//
// The breadcrumb trail (CallStack) is a diagnostic list of component
// names, not a native stack trace. Components propagate a child
// failure unchanged except for appending their own call site, so a
// failure deep in the crypto layer arrives at the UI boundary with the
// full path it travelled.
package result

import "fmt"

// Code is a numeric failure code. Codes are stable across releases —
// they are written to the local log sink and referenced in support
// diagnostics.
type Code int

const (
	// CodeNone is the zero value, present on successful results.
	CodeNone Code = 0

	// Symmetric and asymmetric crypto failures are coded separately so
	// the log sink can distinguish a bad session key from a bad
	// envelope.
	CodeSymmetricEncryption  Code = 100
	CodeSymmetricDecryption  Code = 101
	CodeAsymmetricEncryption Code = 102
	CodeAsymmetricDecryption Code = 103
	CodeEndToEndDecryption   Code = 104
	CodeNoExportKey          Code = 105

	CodeHashMismatch     Code = 200
	CodeSaltMismatch     Code = 201
	CodeVerification     Code = 202
	CodeMissingSignature Code = 203
	CodeSignatureMakeup  Code = 204

	CodeTransaction        Code = 300
	CodeBackup             Code = 301
	CodeMissingEntity      Code = 302
	CodeMissingUser        Code = 303
	CodeDuplicateID        Code = 304
	CodeProtectedEntity    Code = 305
	CodeStoreInconsistency Code = 306

	CodeInvalidSession Code = 400
	CodeInvalidRequest Code = 401
	CodeUnknown        Code = 500
)

// Result is the uniform success-or-failure envelope. The zero value is
// a failure with no code — always construct through Ok, Err, or one of
// the propagation helpers.
type Result[T any] struct {
	// OK reports whether Value is meaningful.
	OK bool

	// Value is the payload on success; the zero value of T otherwise.
	Value T

	// Code identifies the failure category. CodeNone on success.
	Code Code

	// Message is the human-readable failure description.
	Message string

	// CallStack is the breadcrumb trail of component names the
	// failure has crossed, innermost first.
	CallStack []string

	// LogID identifies the durable log sink entry written for this
	// failure, when one was written. Surfaced to the user for
	// support correlation.
	LogID string

	// InvalidSession is set when the failure means the session is no
	// longer usable and the caller should re-authenticate.
	InvalidSession bool
}

// Ok constructs a successful result carrying value.
func Ok[T any](value T) Result[T] {
	return Result[T]{OK: true, Value: value}
}

// Err constructs a failure with a numeric code and message.
func Err[T any](code Code, message string) Result[T] {
	return Result[T]{Code: code, Message: message}
}

// Errf constructs a failure with a formatted message.
func Errf[T any](code Code, format string, args ...any) Result[T] {
	return Result[T]{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidSession constructs the failure returned when an operation
// requires an authenticated session and none is active.
func ErrInvalidSession[T any]() Result[T] {
	return Result[T]{
		Code:           CodeInvalidSession,
		Message:        "no active session",
		InvalidSession: true,
	}
}

// WrapErr converts a raw error into a failure result. Used at
// component boundaries where underlying library errors must not
// propagate as raw errors.
func WrapErr[T any](code Code, err error) Result[T] {
	return Result[T]{Code: code, Message: err.Error()}
}

// Propagate carries a failure across a type boundary, appending site
// to the breadcrumb trail. Panics if child is a success — propagating
// a success across a type boundary is always a programming error.
func Propagate[T, U any](child Result[U], site string) Result[T] {
	if child.OK {
		panic("result: Propagate called on a successful result")
	}
	return Result[T]{
		Code:           child.Code,
		Message:        child.Message,
		CallStack:      append(append([]string(nil), child.CallStack...), site),
		LogID:          child.LogID,
		InvalidSession: child.InvalidSession,
	}
}

// WithBreadcrumb returns a copy of r with site appended to the
// breadcrumb trail. No-op on success.
func (r Result[T]) WithBreadcrumb(site string) Result[T] {
	if r.OK {
		return r
	}
	r.CallStack = append(append([]string(nil), r.CallStack...), site)
	return r
}

// AppendMessage returns a copy of r with message appended to the
// existing failure message, separated by "; ". Used to aggregate
// multi-field validation failures into one result. No-op on success.
func (r Result[T]) AppendMessage(message string) Result[T] {
	if r.OK {
		return r
	}
	if r.Message == "" {
		r.Message = message
		return r
	}
	r.Message = r.Message + "; " + message
	return r
}

// WithLogID returns a copy of r carrying the durable log entry ID.
func (r Result[T]) WithLogID(logID string) Result[T] {
	r.LogID = logID
	return r
}

// String renders the result for diagnostics. Values are never
// rendered — a result may carry decrypted secrets.
func (r Result[T]) String() string {
	if r.OK {
		return "ok"
	}
	return fmt.Sprintf("code %d: %s (via %v)", r.Code, r.Message, r.CallStack)
}
