// Package ddnserr defines the closed error taxonomy shared by every
// subsystem of the daemon: the IP source, the DNS provider, the state
// store, and the engine itself all return (or wrap) *Error so the engine
// can make a single, total decision about what to do next.
package ddnserr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an Error into one of the dispositions the engine
// understands. The set is closed; do not add a Kind without updating
// Disposition.
type Kind int

const (
	// KindConfig marks invalid user input detected by a factory. Fatal at
	// startup.
	KindConfig Kind = iota
	// KindTransient marks a network timeout, 5xx, or DNS resolution
	// failure. Retryable by the engine.
	KindTransient
	// KindAuthentication marks a 401/403 or provider auth error. Fatal
	// per-record, never retried.
	KindAuthentication
	// KindNotFound marks a zone or record that could not be discovered.
	// Fatal per-record.
	KindNotFound
	// KindRateLimited marks a provider-signalled rate limit. Retryable,
	// honouring RetryAfter when the provider supplied one.
	KindRateLimited
	// KindConflict marks a concurrent modification (HTTP 409). Retryable
	// once, then fatal.
	KindConflict
	// KindState marks a state-store read/write failure. The engine
	// continues operating in memory and logs at ERROR.
	KindState
	// KindInternal marks an unexpected, programmer-facing error. Fatal at
	// startup, logged during runtime.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransient:
		return "transient"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Disposition is the engine-level policy a Kind maps to.
type Disposition int

const (
	// DispositionFatalStartup aborts daemon startup.
	DispositionFatalStartup Disposition = iota
	// DispositionRetryable is retried up to EngineConfig.MaxRetries.
	DispositionRetryable
	// DispositionFatalPerRecord fails the current record without further
	// attempts; other records in the batch still proceed.
	DispositionFatalPerRecord
	// DispositionRetryableOnce is retried a single time, then treated as
	// DispositionFatalPerRecord.
	DispositionRetryableOnce
	// DispositionDegradeToMemory means the engine continues operating with
	// in-memory state only, logging at ERROR.
	DispositionDegradeToMemory
)

// Disposition classifies k into the policy the engine applies. It is a
// total, pure function over the closed Kind enum.
func (k Kind) Disposition() Disposition {
	switch k {
	case KindConfig, KindInternal:
		return DispositionFatalStartup
	case KindTransient, KindRateLimited:
		return DispositionRetryable
	case KindAuthentication, KindNotFound:
		return DispositionFatalPerRecord
	case KindConflict:
		return DispositionRetryableOnce
	case KindState:
		return DispositionDegradeToMemory
	default:
		return DispositionFatalStartup
	}
}

// Error is the single error type returned across subsystem boundaries.
// Message must never contain a secret (API token, raw header value); see
// internal/provider/cloudflare for the redaction discipline enforced at
// the HTTP boundary.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// RetryAfter is an optional provider-supplied delay hint, only
	// meaningful when Kind == KindRateLimited.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// RateLimited builds a KindRateLimited error carrying the provider's
// Retry-After hint, if any.
func RateLimited(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfter: retryAfter}
}

// As extracts an *Error from err using errors.As, for call sites that need
// the Kind without caring about the concrete wrapping.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, defaulting to KindInternal when err does
// not wrap an *Error. Useful at call sites that must classify arbitrary
// errors returned by a misbehaving plugin.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
