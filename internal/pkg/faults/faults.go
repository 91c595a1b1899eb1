package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it instead of
// string-matching error messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindConfiguration
	KindTransient
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindConfiguration:
		return "CONFIGURATION"
	case KindTransient:
		return "TRANSIENT"
	case KindTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Fault is an error with a kind attached.
type Fault struct {
	kind Kind
	err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("[%s] %v", f.kind, f.err)
}

func (f *Fault) Unwrap() error {
	return f.err
}

func (f *Fault) Kind() Kind {
	return f.kind
}

func New(kind Kind, format string, args ...interface{}) error {
	return &Fault{kind: kind, err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to an existing error. A nil err returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{kind: kind, err: err}
}

func NotFound(format string, args ...interface{}) error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return New(KindConflict, format, args...)
}

func Configuration(format string, args ...interface{}) error {
	return New(KindConfiguration, format, args...)
}

func Transient(format string, args ...interface{}) error {
	return New(KindTransient, format, args...)
}

func Timeout(format string, args ...interface{}) error {
	return New(KindTimeout, format, args...)
}

// KindOf extracts the kind from anywhere in the chain.
// Plain errors report KindUnknown.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.kind
	}
	return KindUnknown
}

// Retryable reports whether a retry could plausibly succeed.
// Configuration and conflict faults never benefit from a retry;
// unknown errors are treated as retryable so transient infrastructure
// failures without a kind are not silently dropped.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConfiguration, KindConflict, KindNotFound:
		return false
	default:
		return true
	}
}
