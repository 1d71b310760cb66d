package errdefs

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error into the closed set surfaced to callers
// and to telemetry.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindRateLimited         Kind = "rate_limited"
	KindSandboxSyntax       Kind = "sandbox_syntax"
	KindSandboxDenied       Kind = "sandbox_denied"
	KindSandboxComplexity   Kind = "sandbox_complexity"
	KindSandboxTimeout      Kind = "sandbox_timeout"
	KindSandboxMemory       Kind = "sandbox_memory_exceeded"
	KindSandboxRuntime      Kind = "sandbox_runtime"
	KindConnectorUnavail    Kind = "connector_unavailable"
	KindConnectorTimeout    Kind = "connector_timeout"
	KindConnectorSchema     Kind = "connector_schema_mismatch"
	KindConnectorIO         Kind = "connector_io"
	KindExecutionTimeout    Kind = "execution_timeout"
	KindCancelled           Kind = "cancelled"
	KindStorageUnavailable  Kind = "storage_unavailable"
	KindInternal            Kind = "internal"
)

// Error is the concrete error type carried across component boundaries.
// It wraps an optional cause and always carries a Kind.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error

	// RetryAfter is set for rate-limited errors only.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// NotFound creates a not-found error for a named entity.
func NotFound(entity, id string) *Error {
	return New(KindNotFound, "%s not found: %s", entity, id)
}

// Conflict creates an optimistic-concurrency conflict error.
func Conflict(entity, id string, expected, actual int) *Error {
	return New(KindConflict, "%s %s version mismatch: expected %d, have %d", entity, id, expected, actual)
}

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// RateLimited creates a rate-limit rejection with a retry hint.
func RateLimited(retryAfter time.Duration) *Error {
	e := New(KindRateLimited, "too many requests")
	e.RetryAfter = retryAfter
	return e
}

// KindOf extracts the kind from an error chain. Unclassified errors
// are reported as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func IsNotFound(err error) bool    { return IsKind(err, KindNotFound) }
func IsConflict(err error) bool    { return IsKind(err, KindConflict) }
func IsValidation(err error) bool  { return IsKind(err, KindValidation) }
func IsRateLimited(err error) bool { return IsKind(err, KindRateLimited) }
func IsCancelled(err error) bool   { return IsKind(err, KindCancelled) }

// IsSandbox reports whether err belongs to the sandbox error family.
func IsSandbox(err error) bool {
	switch KindOf(err) {
	case KindSandboxSyntax, KindSandboxDenied, KindSandboxComplexity,
		KindSandboxTimeout, KindSandboxMemory, KindSandboxRuntime:
		return true
	}
	return false
}

// IsConnector reports whether err belongs to the connector error family.
func IsConnector(err error) bool {
	switch KindOf(err) {
	case KindConnectorUnavail, KindConnectorTimeout, KindConnectorSchema, KindConnectorIO:
		return true
	}
	return false
}

// IsStorageUnavailable reports whether err is a transient storage failure
// that the runner retries with backoff.
func IsStorageUnavailable(err error) bool {
	return IsKind(err, KindStorageUnavailable)
}

// Severity maps an error kind to the audit severity recorded for it.
func Severity(kind Kind) string {
	switch kind {
	case KindValidation, KindNotFound:
		return "low"
	case KindRateLimited, KindConflict:
		return "medium"
	case KindSandboxDenied:
		return "high"
	case KindInternal:
		return "critical"
	default:
		return "medium"
	}
}
